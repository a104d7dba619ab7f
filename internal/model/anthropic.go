package model

import (
	"context"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/codex-web-agent/agent/internal/protocol"
	"github.com/codex-web-agent/agent/internal/sse"
)

// AnthropicClient streams turns through Anthropic's Messages API.
type AnthropicClient struct {
	msg       sdk.MessageService
	model     string
	maxTokens int64
	policy    RetryPolicy
}

// NewAnthropicClient builds a client from an API key, default model and
// max_tokens cap (Anthropic requires max_tokens on every request).
func NewAnthropicClient(apiKey, model string, maxTokens int64) *AnthropicClient {
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{
		msg:       c.Messages,
		model:     model,
		maxTokens: maxTokens,
		policy:    DefaultRetryPolicy(),
	}
}

// Stream issues a Messages.NewStreaming request and normalizes each
// sdk.MessageStreamEventUnion into sse.ResponseEvent.
func (c *AnthropicClient) Stream(ctx context.Context, prompt protocol.Prompt, yield func(sse.ResponseEvent) error) error {
	params, err := c.buildParams(prompt)
	if err != nil {
		return Fatal{Cause: err}
	}

	return RunWithRetry(ctx, c.policy, func(ctx context.Context) error {
		stream := c.msg.NewStreaming(ctx, *params)
		defer stream.Close()

		var accumulated sdk.Message
		for stream.Next() {
			event := stream.Current()
			if err := accumulated.Accumulate(event); err != nil {
				return Fatal{Cause: err}
			}
			events, err := decodeAnthropicEvent(event, &accumulated)
			if err != nil {
				return Fatal{Cause: err}
			}
			for _, ev := range events {
				if err := yield(ev); err != nil {
					return Fatal{Cause: err}
				}
			}
		}
		if err := stream.Err(); err != nil {
			return classifyAnthropicError(err)
		}
		return nil
	})
}

func (c *AnthropicClient) buildParams(prompt protocol.Prompt) (*sdk.MessageNewParams, error) {
	messages, system, err := encodeAnthropicMessages(prompt.Input)
	if err != nil {
		return nil, err
	}
	if prompt.Instructions != "" {
		system = append([]sdk.TextBlockParam{{Text: prompt.Instructions}}, system...)
	}
	params := &sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(prompt.Tools) > 0 {
		params.Tools = encodeAnthropicTools(prompt.Tools)
	}
	return params, nil
}

func encodeAnthropicMessages(items []protocol.ResponseItem) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	var messages []sdk.MessageParam
	var system []sdk.TextBlockParam

	for _, item := range items {
		switch it := item.(type) {
		case protocol.MessageItem:
			if it.Role == "system" || it.Role == "developer" {
				for _, c := range it.Content {
					if c.Text != "" {
						system = append(system, sdk.TextBlockParam{Text: c.Text})
					}
				}
				continue
			}
			var blocks []sdk.ContentBlockParamUnion
			for _, c := range it.Content {
				if c.Text != "" {
					blocks = append(blocks, sdk.NewTextBlock(c.Text))
				}
			}
			if len(blocks) == 0 {
				continue
			}
			switch it.Role {
			case "user":
				messages = append(messages, sdk.NewUserMessage(blocks...))
			case "assistant":
				messages = append(messages, sdk.NewAssistantMessage(blocks...))
			default:
				return nil, nil, errors.New("anthropic: unsupported message role " + it.Role)
			}
		case protocol.FunctionCallItem:
			messages = append(messages, sdk.NewAssistantMessage(sdk.NewToolUseBlock(it.CallID, it.Arguments, it.Name)))
		case protocol.FunctionCallOutputItem:
			messages = append(messages, sdk.NewUserMessage(sdk.NewToolResultBlock(it.CallID, it.Output, !it.Success)))
		}
	}
	if len(messages) == 0 {
		return nil, nil, errors.New("anthropic: at least one user/assistant message is required")
	}
	return messages, system, nil
}

func encodeAnthropicTools(specs []protocol.ToolSpec) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		out = append(out, sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{
			Properties: s.Parameters["properties"],
		}, s.Name))
	}
	return out
}

func decodeAnthropicEvent(event sdk.MessageStreamEventUnion, acc *sdk.Message) ([]sse.ResponseEvent, error) {
	switch event.Type {
	case "message_start":
		return []sse.ResponseEvent{sse.Created{ResponseID: event.Message.ID}}, nil
	case "content_block_delta":
		delta := event.Delta
		switch delta.Type {
		case "text_delta":
			return []sse.ResponseEvent{sse.OutputTextDelta{Delta: delta.Text}}, nil
		case "thinking_delta":
			return []sse.ResponseEvent{sse.ReasoningSummaryDelta{Delta: delta.Thinking}}, nil
		}
		return nil, nil
	case "message_delta":
		return nil, nil
	case "message_stop":
		items, err := accumulatedToItems(acc)
		if err != nil {
			return nil, err
		}
		events := make([]sse.ResponseEvent, 0, len(items)+1)
		for _, it := range items {
			events = append(events, sse.OutputItemDone{Item: it})
		}
		events = append(events, sse.Completed{
			ResponseID:   acc.ID,
			InputTokens:  int(acc.Usage.InputTokens),
			OutputTokens: int(acc.Usage.OutputTokens),
			TotalTokens:  int(acc.Usage.InputTokens + acc.Usage.OutputTokens),
		})
		return events, nil
	default:
		return nil, nil
	}
}

func accumulatedToItems(acc *sdk.Message) ([]protocol.ResponseItem, error) {
	var items []protocol.ResponseItem
	var textParts []protocol.ContentItem

	for _, block := range acc.Content {
		switch b := block.AsAny().(type) {
		case sdk.TextBlock:
			textParts = append(textParts, protocol.ContentItem{Type: "output_text", Text: b.Text})
		case sdk.ToolUseBlock:
			args, err := b.Input.MarshalJSON()
			if err != nil {
				return nil, err
			}
			items = append(items, protocol.FunctionCallItem{CallID: b.ID, Name: b.Name, Arguments: string(args)})
		}
	}
	if len(textParts) > 0 {
		items = append([]protocol.ResponseItem{protocol.MessageItem{Role: "assistant", Content: textParts}}, items...)
	}
	return items, nil
}

func classifyAnthropicError(err error) StreamAttemptError {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return ClassifyHTTPStatus(apiErr.StatusCode, 0, err)
	}
	return RetryableTransportError{Cause: err}
}
