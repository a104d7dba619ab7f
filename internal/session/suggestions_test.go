package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codex-web-agent/agent/internal/protocol"
)

func TestGenerateSuggestion_ReturnsOkWithHistory(t *testing.T) {
	items := []protocol.ResponseItem{
		userMsg("find the checkout button"),
		protocol.FunctionCallItem{CallID: "c1", Name: "dom_query"},
		assistantMsg("found it, it's the blue button in the header"),
	}
	text, ok := GenerateSuggestion(context.Background(), &fakeClient{reply: "want me to click it?"}, items)
	assert.True(t, ok)
	assert.Equal(t, "want me to click it?", text)
}

func TestGenerateSuggestion_NoHistoryIsNotOk(t *testing.T) {
	_, ok := GenerateSuggestion(context.Background(), &fakeClient{reply: "anything"}, nil)
	assert.False(t, ok)
}

func TestGenerateSuggestion_EmptyReplyIsNotOk(t *testing.T) {
	items := []protocol.ResponseItem{userMsg("hi"), assistantMsg("hello")}
	_, ok := GenerateSuggestion(context.Background(), &fakeClient{reply: ""}, items)
	assert.False(t, ok)
}
