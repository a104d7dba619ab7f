package session

import (
	"context"
	"strings"
	"time"

	"github.com/codex-web-agent/agent/internal/model"
	"github.com/codex-web-agent/agent/internal/protocol"
	"github.com/codex-web-agent/agent/internal/sse"
)

// suggestionTimeout bounds the best-effort follow-up suggestion call; it
// never blocks a turn from completing.
const suggestionTimeout = 5 * time.Second

const suggestionInstructions = "Suggest one short, concrete follow-up the user might want to ask next, " +
	"given the exchange below. Reply with the suggestion only, no preamble, under 15 words."

// buildSuggestionInput walks history backward to find the last user message,
// the last assistant message, and a short summary of any tool calls in
// between. Returns ok=false only when history holds neither a user nor an
// assistant message.
func buildSuggestionInput(items []protocol.ResponseItem) (userMsg, assistantMsg string, toolNames []string, ok bool) {
	for i := len(items) - 1; i >= 0; i-- {
		switch it := items[i].(type) {
		case protocol.MessageItem:
			text := firstText(it.Content)
			if it.Role == "assistant" && assistantMsg == "" {
				assistantMsg = text
			} else if it.Role == "user" && userMsg == "" {
				userMsg = text
			}
		case protocol.FunctionCallItem:
			toolNames = append(toolNames, it.Name)
		}
		if userMsg != "" && assistantMsg != "" {
			break
		}
	}
	if userMsg == "" && assistantMsg == "" {
		return "", "", nil, false
	}
	return userMsg, assistantMsg, toolNames, true
}

func firstText(content []protocol.ContentItem) string {
	for _, c := range content {
		if c.Text != "" {
			return c.Text
		}
	}
	return ""
}

// GenerateSuggestion produces a best-effort follow-up suggestion from the
// tail of history using client. Errors and empty output are both reported
// as ok=false; callers should treat this as optional and never fail a turn
// over it.
func GenerateSuggestion(ctx context.Context, client model.Client, items []protocol.ResponseItem) (string, bool) {
	userMsg, assistantMsg, toolNames, ok := buildSuggestionInput(items)
	if !ok {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, suggestionTimeout)
	defer cancel()

	var sb strings.Builder
	if userMsg != "" {
		sb.WriteString("User: " + userMsg + "\n")
	}
	if len(toolNames) > 0 {
		sb.WriteString("Tools used: " + strings.Join(toolNames, ", ") + "\n")
	}
	if assistantMsg != "" {
		sb.WriteString("Assistant: " + assistantMsg + "\n")
	}

	prompt := protocol.Prompt{
		Instructions: suggestionInstructions,
		Input: []protocol.ResponseItem{protocol.MessageItem{
			Role:    "user",
			Content: []protocol.ContentItem{{Type: "input_text", Text: sb.String()}},
		}},
	}

	var out strings.Builder
	err := client.Stream(ctx, prompt, func(ev sse.ResponseEvent) error {
		if d, ok := ev.(sse.OutputTextDelta); ok {
			out.WriteString(d.Delta)
		}
		return nil
	})
	text := strings.TrimSpace(out.String())
	if err != nil || text == "" {
		return "", false
	}
	return text, true
}
