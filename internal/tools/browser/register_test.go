package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-web-agent/agent/internal/config"
	"github.com/codex-web-agent/agent/internal/tools"
)

func newTestRegistry(t *testing.T) (*tools.Registry, *FakeBridge) {
	t.Helper()
	bridge := NewFakeBridge("https://example.com", "Example", map[string]string{
		"#title": "<h1>hello</h1>",
	})
	reg := tools.NewRegistry(time.Second)
	require.NoError(t, Register(reg, bridge, config.DefaultToolsConfig()))
	return reg, bridge
}

func TestDomQuery(t *testing.T) {
	reg, _ := newTestRegistry(t)
	resp := reg.Execute(context.Background(), "dom_query", `{"selector":"#title"}`)
	require.True(t, resp.Success)
	assert.Contains(t, resp.Data, "hello")
}

func TestDomMutate(t *testing.T) {
	reg, bridge := newTestRegistry(t)
	resp := reg.Execute(context.Background(), "dom_mutate", `{"selector":"#title","op":"setText","value":"bye"}`)
	require.True(t, resp.Success)

	out, err := bridge.Query(context.Background(), "#title")
	require.NoError(t, err)
	assert.Contains(t, out, "bye")
}

func TestNavigate(t *testing.T) {
	reg, bridge := newTestRegistry(t)
	resp := reg.Execute(context.Background(), "navigate", `{"url":"https://example.com/other"}`)
	require.True(t, resp.Success)

	url, err := bridge.CurrentURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/other", url)
}

func TestStorageRoundTrip(t *testing.T) {
	reg, _ := newTestRegistry(t)
	setResp := reg.Execute(context.Background(), "storage_set", `{"key":"k","value":"v"}`)
	require.True(t, setResp.Success)

	getResp := reg.Execute(context.Background(), "storage_get", `{"key":"k"}`)
	require.True(t, getResp.Success)
	assert.Equal(t, "v", getResp.Data)
}

func TestUpdatePlan(t *testing.T) {
	reg, _ := newTestRegistry(t)
	resp := reg.Execute(context.Background(), "update_plan", `{"tasks":[{"step":"find button","status":"in_progress"}]}`)
	require.True(t, resp.Success)
	assert.Contains(t, resp.Data, "1 steps")
}

func TestToolsDisabledByConfig(t *testing.T) {
	bridge := NewFakeBridge("https://example.com", "Example", nil)
	reg := tools.NewRegistry(time.Second)
	cfg := config.ToolsConfig{EnableDOMQuery: true}
	require.NoError(t, Register(reg, bridge, cfg))

	resp := reg.Execute(context.Background(), "navigate", `{"url":"https://x"}`)
	require.False(t, resp.Success)
	assert.Equal(t, tools.ErrCodeNotFound, resp.Error.Code)
}
