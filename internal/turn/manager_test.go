package turn

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-web-agent/agent/internal/protocol"
	"github.com/codex-web-agent/agent/internal/sse"
	"github.com/codex-web-agent/agent/internal/tools"
)

// scriptedClient replays a fixed sequence of Stream calls, one per
// RunTurn iteration, so tests can exercise the model/tool loop without a
// real provider.
type scriptedClient struct {
	responses [][]sse.ResponseEvent
	calls     int
}

func (c *scriptedClient) Stream(ctx context.Context, prompt protocol.Prompt, yield func(sse.ResponseEvent) error) error {
	if c.calls >= len(c.responses) {
		return yield(sse.Completed{})
	}
	events := c.responses[c.calls]
	c.calls++
	for _, ev := range events {
		if err := yield(ev); err != nil {
			return err
		}
	}
	return nil
}

func registryWithEcho(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry(tools.DefaultTimeout)
	err := r.Register(tools.Spec{
		Name:        "echo",
		Description: "echoes its input",
		Parameters: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"text": map[string]any{"type": "string"}},
			"additionalProperties": false,
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		out, _ := json.Marshal(args)
		return string(out), nil
	})
	require.NoError(t, err)
	return r
}

func noopEmit(protocol.EventMsg) error { return nil }

func TestRunTurn_EndsOnAssistantMessage(t *testing.T) {
	client := &scriptedClient{
		responses: [][]sse.ResponseEvent{{
			sse.OutputTextDelta{Delta: "hi"},
			sse.Completed{InputTokens: 1, OutputTokens: 1, TotalTokens: 2},
		}},
	}
	m := &Manager{Client: client, Registry: registryWithEcho(t)}
	tc := Context{ApprovalPolicy: "never"}

	produced, _, err := m.RunTurn(context.Background(), tc, nil, NewState(), noopEmit, nil)
	require.NoError(t, err)
	require.Len(t, produced, 0) // no OutputItemDone items in this script, only the delta/Completed path
	assert.Equal(t, 1, client.calls)
}

func TestRunTurn_ExecutesToolCallThenStops(t *testing.T) {
	call := protocol.FunctionCallItem{CallID: "c1", Name: "echo", Arguments: `{"text":"hi"}`}
	client := &scriptedClient{
		responses: [][]sse.ResponseEvent{
			{sse.OutputItemDone{Item: call}, sse.Completed{}},
			{sse.OutputTextDelta{Delta: "done"}, sse.Completed{}},
		},
	}
	m := &Manager{Client: client, Registry: registryWithEcho(t)}
	tc := Context{ApprovalPolicy: "never"}

	produced, _, err := m.RunTurn(context.Background(), tc, nil, NewState(), noopEmit, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)

	var sawOutput bool
	for _, item := range produced {
		if out, ok := item.(protocol.FunctionCallOutputItem); ok {
			sawOutput = true
			assert.True(t, out.Success)
			assert.Equal(t, "c1", out.CallID)
		}
	}
	assert.True(t, sawOutput, "expected a function call output in produced items")
}

func TestRunTurn_AbortsOnRepeatedIdenticalToolCalls(t *testing.T) {
	call := protocol.FunctionCallItem{CallID: "c1", Name: "echo", Arguments: `{"text":"hi"}`}
	events := []sse.ResponseEvent{sse.OutputItemDone{Item: call}, sse.Completed{}}
	client := &scriptedClient{responses: [][]sse.ResponseEvent{events, events, events}}
	m := &Manager{Client: client, Registry: registryWithEcho(t)}
	tc := Context{ApprovalPolicy: "never"}

	produced, _, err := m.RunTurn(context.Background(), tc, nil, NewState(), noopEmit, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, client.calls, 3)

	found := false
	for _, item := range produced {
		if msg, ok := item.(protocol.MessageItem); ok {
			for _, c := range msg.Content {
				if c.Text != "" {
					found = true
				}
			}
		}
	}
	assert.True(t, found, "expected an explanatory assistant message after repeated tool calls")
}

func TestRunTurn_InvokesCompactHookEveryIteration(t *testing.T) {
	call := protocol.FunctionCallItem{CallID: "c1", Name: "echo", Arguments: `{"text":"hi"}`}
	client := &scriptedClient{
		responses: [][]sse.ResponseEvent{
			{sse.OutputItemDone{Item: call}, sse.Completed{}},
			{sse.OutputTextDelta{Delta: "done"}, sse.Completed{}},
		},
	}
	m := &Manager{Client: client, Registry: registryWithEcho(t)}
	tc := Context{ApprovalPolicy: "never"}

	hookCalls := 0
	hook := func(ctx context.Context, items []protocol.ResponseItem) ([]protocol.ResponseItem, bool, error) {
		hookCalls++
		return nil, false, nil
	}

	_, compactedBase, err := m.RunTurn(context.Background(), tc, nil, NewState(), noopEmit, hook)
	require.NoError(t, err)
	assert.Nil(t, compactedBase)
	assert.Equal(t, 2, hookCalls, "expected the hook to run once per loop iteration")
}

func TestRunTurn_AbortsWhenCompactHookErrors(t *testing.T) {
	client := &scriptedClient{responses: [][]sse.ResponseEvent{{sse.OutputTextDelta{Delta: "hi"}, sse.Completed{}}}}
	m := &Manager{Client: client, Registry: registryWithEcho(t)}
	tc := Context{ApprovalPolicy: "never"}

	boom := errors.New("cannot reduce context")
	hook := func(ctx context.Context, items []protocol.ResponseItem) ([]protocol.ResponseItem, bool, error) {
		return nil, false, boom
	}

	_, _, err := m.RunTurn(context.Background(), tc, nil, NewState(), noopEmit, hook)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, client.calls, "the model should never be called once compaction reports the context can't be reduced")
}

func TestRunTurn_AdoptsCompactedBase(t *testing.T) {
	client := &scriptedClient{responses: [][]sse.ResponseEvent{{sse.OutputTextDelta{Delta: "hi"}, sse.Completed{}}}}
	m := &Manager{Client: client, Registry: registryWithEcho(t)}
	tc := Context{ApprovalPolicy: "never"}

	summary := []protocol.ResponseItem{protocol.MessageItem{Role: "assistant"}}
	ran := false
	hook := func(ctx context.Context, items []protocol.ResponseItem) ([]protocol.ResponseItem, bool, error) {
		if ran {
			return nil, false, nil
		}
		ran = true
		return summary, true, nil
	}

	_, compactedBase, err := m.RunTurn(context.Background(), tc, []protocol.ResponseItem{protocol.MessageItem{Role: "user"}}, NewState(), noopEmit, hook)
	require.NoError(t, err)
	assert.Equal(t, summary, compactedBase)
}

func TestRunTurn_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &Manager{Client: &scriptedClient{}, Registry: registryWithEcho(t)}
	_, _, err := m.RunTurn(ctx, Context{ApprovalPolicy: "never"}, nil, NewState(), noopEmit, nil)
	require.Error(t, err)
	var cancelled TaskCancelled
	assert.ErrorAs(t, err, &cancelled)
}
