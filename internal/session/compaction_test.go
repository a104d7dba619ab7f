package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-web-agent/agent/internal/config"
	"github.com/codex-web-agent/agent/internal/protocol"
	"github.com/codex-web-agent/agent/internal/rollout"
	"github.com/codex-web-agent/agent/internal/sse"
	"github.com/codex-web-agent/agent/internal/turn"
)

// fakeClient streams a scripted reply (and, optionally, a scripted error)
// regardless of the prompt it's given.
type fakeClient struct {
	reply string
	err   error
}

func (c *fakeClient) Stream(ctx context.Context, prompt protocol.Prompt, yield func(sse.ResponseEvent) error) error {
	if c.reply != "" {
		if err := yield(sse.OutputTextDelta{Delta: c.reply}); err != nil {
			return err
		}
	}
	if c.err != nil {
		return c.err
	}
	return yield(sse.Completed{})
}

func TestCompact_ReplacesHistoryWithSummary(t *testing.T) {
	h := NewInMemoryHistory([]protocol.ResponseItem{userMsg("book a flight"), assistantMsg("sure, where to?")})
	client := &fakeClient{reply: "user wants to book a flight"}

	summary, err := Compact(context.Background(), client, h)
	require.NoError(t, err)
	assert.Equal(t, "user wants to book a flight", summary)

	items := h.ForPrompt()
	require.Len(t, items, 1)
	assert.Equal(t, "user wants to book a flight", items[0].(protocol.MessageItem).Content[0].Text)
}

func TestCompact_EmptyHistoryErrors(t *testing.T) {
	h := NewInMemoryHistory(nil)
	_, err := Compact(context.Background(), &fakeClient{reply: "summary"}, h)
	assert.Error(t, err)
}

func TestCompact_StreamErrorPropagates(t *testing.T) {
	h := NewInMemoryHistory([]protocol.ResponseItem{userMsg("hi")})
	_, err := Compact(context.Background(), &fakeClient{err: errors.New("provider down")}, h)
	assert.Error(t, err)
}

func TestEffectiveAutoCompactLimit(t *testing.T) {
	assert.Equal(t, 0, effectiveAutoCompactLimit(0, 100000))
	assert.Equal(t, 9000, effectiveAutoCompactLimit(20000, 10000)) // clamped to 90% of window
	assert.Equal(t, 5000, effectiveAutoCompactLimit(5000, 100000)) // configured is already tighter
}

func TestDropOldestUserTurns(t *testing.T) {
	items := []protocol.ResponseItem{}
	for i := 0; i < 5; i++ {
		items = append(items, userMsg("turn"), assistantMsg("reply"))
	}
	kept := dropOldestUserTurns(items, 2)
	assert.Equal(t, 2, turnCount(kept))

	assert.Equal(t, items, dropOldestUserTurns(items, 0))
}

// newTestSession builds a minimal Session backed by an in-memory rollout
// store, enough to exercise newCompactHook end to end.
func newTestSession(t *testing.T, client *fakeClient, autoCompactLimit, contextWindow int) *Session {
	t.Helper()
	store, err := rollout.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec, err := rollout.NewRecorder(context.Background(), store, "rollout-compact-test", "gpt-4o-mini", time.Hour, false, now)
	require.NoError(t, err)

	return &Session{
		id:       "rollout-compact-test",
		cfg:      config.SessionConfig{AutoCompactTokenLimit: autoCompactLimit, Model: config.ModelConfig{ContextWindow: contextWindow}},
		client:   client,
		recorder: rec,
	}
}

func TestCompactHook_NoopUnderLimit(t *testing.T) {
	s := newTestSession(t, &fakeClient{reply: "x"}, 100000, 128000)
	hook := newCompactHook(context.Background(), "submit-1", s, turn.NewState(), time.Now())

	newItems, ok, err := hook(context.Background(), []protocol.ResponseItem{userMsg("hi")})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, newItems)
}

func TestCompactHook_CompactsOverLimit(t *testing.T) {
	s := newTestSession(t, &fakeClient{reply: "summary"}, 100, 1000)
	hook := newCompactHook(context.Background(), "submit-1", s, turn.NewState(), time.Now())

	var items []protocol.ResponseItem
	for i := 0; i < 50; i++ {
		items = append(items, userMsg("this is a fairly long user message to accumulate tokens"))
	}
	newItems, ok, err := hook(context.Background(), items)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, newItems, 1)
	assert.Equal(t, "summary", newItems[0].(protocol.MessageItem).Content[0].Text)
}

func TestCompactHook_FallsBackToDroppingOldestTurnsOnFailure(t *testing.T) {
	s := newTestSession(t, &fakeClient{err: errors.New("down")}, 10, 100)
	hook := newCompactHook(context.Background(), "submit-1", s, turn.NewState(), time.Now())

	var items []protocol.ResponseItem
	for i := 0; i < 10; i++ {
		items = append(items, userMsg("turn"))
	}
	newItems, ok, err := hook(context.Background(), items)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.LessOrEqual(t, turnCount(newItems), 5)
}

func TestCompactHook_ReturnsErrContextStillExceededWhenFallbackInsufficient(t *testing.T) {
	s := newTestSession(t, &fakeClient{err: errors.New("down")}, 10, 100)
	hook := newCompactHook(context.Background(), "submit-1", s, turn.NewState(), time.Now())

	// A single giant item that dropping oldest turns can never shrink
	// below the limit, since there's nothing older to drop.
	huge := protocol.MessageItem{Role: "user", Content: []protocol.ContentItem{{Type: "input_text", Text: longText(2000)}}}
	_, ok, err := hook(context.Background(), []protocol.ResponseItem{huge})
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrContextStillExceeded)
}

func longText(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}
