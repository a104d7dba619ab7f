// Package turn holds the per-turn configuration snapshot and the
// in-flight turn state a session tracks while a task is running.
package turn

import (
	"github.com/codex-web-agent/agent/internal/config"
	"github.com/codex-web-agent/agent/internal/protocol"
)

// Context is the immutable configuration in effect for one turn: the
// resolved model/approval policy, plus whatever the client overrode via
// UserTurn. A session's persistent Context is cloned and adjusted per
// turn rather than mutated in place, so a turn's behavior can never leak
// into the next one.
type Context struct {
	Model          string
	Provider       string
	ApprovalPolicy string
	Instructions   string
	Tools          []protocol.ToolSpec

	BaseURL          string
	WireAPI          string
	ReasoningEffort  string
	ReasoningSummary string

	// ConversationID identifies the session across turns, passed through to
	// the provider as a prompt cache key so repeated turns in the same
	// conversation can reuse cached prefix computation.
	ConversationID string

	// ShowRawAgentReasoning gates whether the model's reasoning summary is
	// surfaced on the event stream and persisted to the rollout.
	ShowRawAgentReasoning bool
}

// NewContext builds the persistent (session-level) turn context from a
// resolved session configuration.
func NewContext(cfg config.SessionConfig, instructions string, tools []protocol.ToolSpec, conversationID string) Context {
	return Context{
		Model:                 cfg.Model.Model,
		Provider:              cfg.Model.Provider,
		ApprovalPolicy:        cfg.ApprovalPolicy,
		Instructions:          instructions,
		Tools:                 tools,
		BaseURL:               cfg.Model.BaseURL,
		WireAPI:               cfg.Model.WireAPI,
		ReasoningEffort:       cfg.Model.ReasoningEffort,
		ReasoningSummary:      cfg.Model.ReasoningSummary,
		ConversationID:        conversationID,
		ShowRawAgentReasoning: cfg.ShowRawAgentReasoning,
	}
}

// WithOverrides returns a copy of c with any non-empty fields from
// overrides applied, for a single UserTurn submission. The receiver is
// never mutated.
func (c Context) WithOverrides(overrides protocol.TurnConfig) Context {
	out := c
	if overrides.Model != "" {
		out.Model = overrides.Model
	}
	if overrides.ApprovalPolicy != "" {
		out.ApprovalPolicy = overrides.ApprovalPolicy
	}
	if overrides.Summary != "" {
		out.ReasoningSummary = overrides.Summary
	}
	return out
}
