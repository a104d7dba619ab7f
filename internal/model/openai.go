package model

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"github.com/codex-web-agent/agent/internal/protocol"
	"github.com/codex-web-agent/agent/internal/sse"
)

// OpenAIClient streams turns through OpenAI's Responses API.
type OpenAIClient struct {
	client openai.Client
	model  string
	policy RetryPolicy

	// auth, if set, backs an OAuth2-authenticated session (e.g. a ChatGPT
	// plan login) instead of a static API key. A 401 mid-stream triggers a
	// forced refresh before the request is retried.
	auth *AuthManager
}

// NewOpenAIClient builds a client from an API key and default model name.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		policy: DefaultRetryPolicy(),
	}
}

// WithAuthManager switches the client to authenticate each request with a
// bearer token sourced from auth rather than the static API key baked into
// the client at construction time.
func (c *OpenAIClient) WithAuthManager(auth *AuthManager) *OpenAIClient {
	c.auth = auth
	return c
}

// Stream issues a Responses API streaming request and normalizes every SSE
// frame into sse.ResponseEvent, retrying the whole attempt on transient
// failures per RunWithRetry.
func (c *OpenAIClient) Stream(ctx context.Context, prompt protocol.Prompt, yield func(sse.ResponseEvent) error) error {
	params := c.buildParams(prompt)

	return RunWithRetry(ctx, c.policy, func(ctx context.Context) error {
		reqOpts, err := c.requestOptions(ctx)
		if err != nil {
			return Fatal{Cause: err}
		}

		stream := c.client.Responses.NewStreaming(ctx, params, reqOpts...)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			events, err := decodeOpenAIEvent(chunk)
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
			return c.classifyError(ctx, err)
		}
		return nil
	})
}

// requestOptions builds the per-attempt request options needed when
// authenticating via AuthManager instead of a static API key.
func (c *OpenAIClient) requestOptions(ctx context.Context) ([]option.RequestOption, error) {
	if c.auth == nil {
		return nil, nil
	}
	tok, err := c.auth.Token(ctx)
	if err != nil {
		return nil, err
	}
	return []option.RequestOption{option.WithHeader("Authorization", "Bearer "+tok.AccessToken)}, nil
}

// shouldStore implements the Azure Responses API store gate: Azure OpenAI
// resources require store=true to retain per-input item IDs across turns
// (the item IDs a follow-up turn references), while the standard OpenAI
// endpoint defaults to not storing.
func shouldStore(prompt protocol.Prompt) bool {
	return strings.Contains(prompt.BaseURL, "azure.com") && prompt.WireAPI == "Responses"
}

func (c *OpenAIClient) buildParams(prompt protocol.Prompt) responses.ResponseNewParams {
	params := responses.ResponseNewParams{
		Model:        c.model,
		Instructions: openai.String(prompt.Instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: encodeInputItems(prompt.Input),
		},
		Store:             openai.Bool(shouldStore(prompt)),
		ParallelToolCalls: openai.Bool(false),
		ToolChoice: responses.ResponseNewParamsToolChoiceUnion{
			OfToolChoiceMode: openai.String("auto"),
		},
		Include: []responses.ResponseIncludable{
			responses.ResponseIncludableReasoningEncryptedContent,
		},
	}
	if len(prompt.Tools) > 0 {
		params.Tools = encodeOpenAITools(prompt.Tools)
	}
	if prompt.PromptCacheKey != "" {
		params.PromptCacheKey = openai.String(prompt.PromptCacheKey)
	}
	if prompt.ReasoningEffort != "" {
		params.Reasoning = responses.ReasoningParam{
			Effort: responses.ReasoningEffort(prompt.ReasoningEffort),
		}
		if prompt.ReasoningSummary != "" {
			params.Reasoning.Summary = responses.ReasoningSummary(prompt.ReasoningSummary)
		}
	}
	if prompt.OutputSchema != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   "output",
					Schema: prompt.OutputSchema,
					Strict: openai.Bool(true),
				},
			},
		}
	}
	return params
}

func encodeInputItems(items []protocol.ResponseItem) responses.ResponseInputParam {
	var out responses.ResponseInputParam
	for _, item := range items {
		switch it := item.(type) {
		case protocol.MessageItem:
			out = append(out, responses.ResponseInputItemParamOfMessage(joinContentText(it.Content), responses.EasyInputMessageRole(it.Role)))
		case protocol.FunctionCallItem:
			out = append(out, responses.ResponseInputItemParamOfFunctionCall(it.Arguments, it.CallID, it.Name))
		case protocol.FunctionCallOutputItem:
			out = append(out, responses.ResponseInputItemParamOfFunctionCallOutput(it.CallID, it.Output))
		}
	}
	return out
}

func joinContentText(content []protocol.ContentItem) string {
	var s string
	for _, c := range content {
		s += c.Text
	}
	return s
}

func encodeOpenAITools(specs []protocol.ToolSpec) []responses.ToolUnionParam {
	out := make([]responses.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		out = append(out, responses.ToolParamOfFunction(s.Name, s.Parameters, true))
		_ = s.Description // not sent: only name, parameters and strict reach the function tool param
	}
	return out
}

// decodeOpenAIEvent translates one Responses API SSE event into zero or
// more normalized ResponseEvents.
func decodeOpenAIEvent(event responses.ResponseStreamEventUnion) ([]sse.ResponseEvent, error) {
	switch event.Type {
	case "response.created":
		return []sse.ResponseEvent{sse.Created{ResponseID: event.Response.ID}}, nil
	case "response.output_text.delta":
		return []sse.ResponseEvent{sse.OutputTextDelta{Delta: event.Delta}}, nil
	case "response.reasoning_summary_text.delta":
		return []sse.ResponseEvent{sse.ReasoningSummaryDelta{Delta: event.Delta}}, nil
	case "response.output_item.done":
		item, err := decodeOutputItem(event.Item)
		if err != nil {
			return nil, err
		}
		return []sse.ResponseEvent{sse.OutputItemDone{Item: item}}, nil
	case "response.completed":
		usage := event.Response.Usage
		return []sse.ResponseEvent{sse.Completed{
			ResponseID:   event.Response.ID,
			InputTokens:  int(usage.InputTokens),
			OutputTokens: int(usage.OutputTokens),
			TotalTokens:  int(usage.TotalTokens),
		}}, nil
	case "error":
		return []sse.ResponseEvent{sse.StreamError{Message: event.Message, Code: string(event.Code)}}, nil
	default:
		return nil, nil
	}
}

func decodeOutputItem(item responses.ResponseOutputItemUnion) (protocol.ResponseItem, error) {
	switch item.Type {
	case "message":
		var content []protocol.ContentItem
		for _, c := range item.Content {
			content = append(content, protocol.ContentItem{Type: "output_text", Text: c.Text})
		}
		return protocol.MessageItem{Role: "assistant", Content: content}, nil
	case "function_call":
		return protocol.FunctionCallItem{CallID: item.CallID, Name: item.Name, Arguments: item.Arguments}, nil
	case "reasoning":
		var summary string
		for _, s := range item.Summary {
			summary += s.Text
		}
		return protocol.ReasoningItem{Summary: summary}, nil
	default:
		return nil, errors.New("openai: unrecognized output item type " + item.Type)
	}
}

func (c *OpenAIClient) classifyError(ctx context.Context, err error) StreamAttemptError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		classified := ClassifyHTTPStatus(apiErr.StatusCode, 0, err)
		if apiErr.StatusCode == 401 && c.auth != nil {
			// Best-effort: force a refresh now so the retried attempt picks
			// up a fresh token via requestOptions. If the refresh itself
			// fails, the retry will simply hit another 401 and eventually
			// exhaust the retry budget.
			_, _ = c.auth.RefreshToken(ctx)
		}
		return classified
	}
	return RetryableTransportError{Cause: err}
}
