package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codex-web-agent/agent/internal/protocol"
)

func userMsg(text string) protocol.MessageItem {
	return protocol.MessageItem{Role: "user", Content: []protocol.ContentItem{{Type: "input_text", Text: text}}}
}

func assistantMsg(text string) protocol.MessageItem {
	return protocol.MessageItem{Role: "assistant", Content: []protocol.ContentItem{{Type: "output_text", Text: text}}}
}

func TestInMemoryHistory_AddAndForPrompt(t *testing.T) {
	h := NewInMemoryHistory(nil)
	h.AddItem(userMsg("hello"))
	h.AddItem(assistantMsg("hi there"))

	items := h.ForPrompt()
	assert.Len(t, items, 2)
	assert.Equal(t, 1, h.TurnCount()) // only user messages count as turns
}

func TestInMemoryHistory_ForPromptReturnsACopy(t *testing.T) {
	h := NewInMemoryHistory([]protocol.ResponseItem{userMsg("a")})
	items := h.ForPrompt()
	items[0] = userMsg("mutated")

	assert.Equal(t, "a", h.ForPrompt()[0].(protocol.MessageItem).Content[0].Text)
}

func TestInMemoryHistory_DropOldestUserTurns(t *testing.T) {
	h := NewInMemoryHistory(nil)
	h.AddItem(userMsg("turn1"))
	h.AddItem(assistantMsg("reply1"))
	h.AddItem(userMsg("turn2"))
	h.AddItem(assistantMsg("reply2"))
	h.AddItem(userMsg("turn3"))

	dropped := h.DropOldestUserTurns(1)
	assert.Positive(t, dropped)

	items := h.ForPrompt()
	assert.Equal(t, "turn3", items[len(items)-1].(protocol.MessageItem).Content[0].Text)
}

func TestInMemoryHistory_DropOldestUserTurnsNoopWhenFewerThanKeep(t *testing.T) {
	h := NewInMemoryHistory(nil)
	h.AddItem(userMsg("only"))

	assert.Equal(t, 0, h.DropOldestUserTurns(5))
	assert.Len(t, h.ForPrompt(), 1)
}

func TestInMemoryHistory_Replace(t *testing.T) {
	h := NewInMemoryHistory([]protocol.ResponseItem{userMsg("a"), assistantMsg("b")})
	h.Replace([]protocol.ResponseItem{assistantMsg("summary")})

	items := h.ForPrompt()
	assert.Len(t, items, 1)
	assert.Equal(t, "summary", items[0].(protocol.MessageItem).Content[0].Text)
}

func TestInMemoryHistory_EstimateTokenCount(t *testing.T) {
	h := NewInMemoryHistory(nil)
	h.AddItem(userMsg("12345678")) // 8 chars -> ~2 tokens
	assert.Equal(t, 2, h.EstimateTokenCount())
}
