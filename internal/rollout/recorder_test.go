package rollout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-web-agent/agent/internal/protocol"
)

func TestRecorder_RecordAndReplayResponseItems(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec, err := NewRecorder(context.Background(), store, "rollout-1", "gpt-4o-mini", time.Hour, false, now)
	require.NoError(t, err)

	msg := protocol.MessageItem{Role: "user", Content: []protocol.ContentItem{{Type: "input_text", Text: "hello"}}}
	require.NoError(t, rec.RecordResponseItem(context.Background(), msg, now))

	delta := protocol.AgentMessageDelta{Delta: "partial"}
	require.NoError(t, rec.RecordEvent(context.Background(), delta, now))

	final := protocol.AgentMessage{Message: "hello back"}
	require.NoError(t, rec.RecordEvent(context.Background(), final, now))

	items, err := rec.ReplayResponseItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, msg, items[0])
}

func TestRecorder_DeltasNeverPersisted(t *testing.T) {
	assert.False(t, ShouldPersistEvent(protocol.AgentMessageDelta{Delta: "x"}))
	assert.False(t, ShouldPersistEvent(protocol.AgentReasoningDelta{Delta: "x"}))
	assert.True(t, ShouldPersistEvent(protocol.AgentMessage{Message: "x"}))
}

func TestRecorder_CleanupExpired(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rec, err := NewRecorder(context.Background(), store, "rollout-old", "gpt-4o-mini", time.Hour, false, old)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deleted, err := rec.CleanupExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestRecorder_CleanupExpired_PermanentRolloutNeverDeleted(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rec, err := NewRecorder(context.Background(), store, "rollout-permanent", "gpt-4o-mini", 0, false, old)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deleted, err := rec.CleanupExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestListConversations_Pagination(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		now := base.Add(time.Duration(i) * time.Minute)
		rec, err := NewRecorder(context.Background(), store, idFor(i), "gpt-4o-mini", time.Hour, false, now)
		require.NoError(t, err)
		msg := protocol.MessageItem{Role: "user", Content: []protocol.ContentItem{{Type: "input_text", Text: "hi"}}}
		require.NoError(t, rec.RecordResponseItem(context.Background(), msg, now))
	}

	page1, cursor1, reachedCap1, err := ListConversations(context.Background(), store, "", 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotEmpty(t, cursor1)
	assert.False(t, reachedCap1)

	page2, _, _, err := ListConversations(context.Background(), store, cursor1, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)

	assert.NotEqual(t, page1[0].ID, page2[0].ID)
}

func TestListConversations_ExcludesRolloutsWithoutUserEvent(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = NewRecorder(context.Background(), store, "no-user-input", "gpt-4o-mini", time.Hour, false, now)
	require.NoError(t, err)

	page, _, _, err := ListConversations(context.Background(), store, "", 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func idFor(i int) string {
	return "rollout-" + string(rune('a'+i))
}
