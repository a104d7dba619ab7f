// Package sse normalizes provider-specific streaming payloads (OpenAI
// Responses API SSE, Anthropic Messages API SSE) into one provider-agnostic
// ResponseEvent union that the rest of the agent consumes.
package sse

import "github.com/codex-web-agent/agent/internal/protocol"

// ResponseEvent is the tagged union of events produced while streaming a
// single model response.
type ResponseEvent interface {
	responseEvent()
	Kind() string
}

// Created marks the start of a response stream.
type Created struct {
	ResponseID string
}

func (Created) responseEvent() {}
func (Created) Kind() string    { return "created" }

// OutputTextDelta is a streamed fragment of the assistant's visible text.
type OutputTextDelta struct {
	Delta string
}

func (OutputTextDelta) responseEvent() {}
func (OutputTextDelta) Kind() string    { return "output_text_delta" }

// ReasoningSummaryDelta is a streamed fragment of reasoning summary text.
type ReasoningSummaryDelta struct {
	Delta string
}

func (ReasoningSummaryDelta) responseEvent() {}
func (ReasoningSummaryDelta) Kind() string    { return "reasoning_summary_delta" }

// OutputItemDone is emitted once a complete output item (message,
// reasoning block, or function call) has finished streaming.
type OutputItemDone struct {
	Item protocol.ResponseItem
}

func (OutputItemDone) responseEvent() {}
func (OutputItemDone) Kind() string    { return "output_item_done" }

// RateLimits reports provider rate-limit headroom observed on the stream.
type RateLimits struct {
	RequestsRemaining int
	TokensRemaining   int
}

func (RateLimits) responseEvent() {}
func (RateLimits) Kind() string    { return "rate_limits" }

// Completed marks the end of a successful response stream, carrying final
// usage totals.
type Completed struct {
	ResponseID   string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

func (Completed) responseEvent() {}
func (Completed) Kind() string    { return "completed" }

// StreamError carries a provider-reported error encountered mid-stream.
// The model package decides whether this is retryable.
type StreamError struct {
	Message string
	Code    string
}

func (StreamError) responseEvent() {}
func (StreamError) Kind() string    { return "error" }
