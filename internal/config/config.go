// Package config resolves session and turn configuration from defaults,
// provider/model profiles, and client overrides.
package config

import "time"

// ModelConfig configures the LLM request parameters for a turn.
type ModelConfig struct {
	Provider      string  `json:"provider"` // "openai" | "anthropic"
	Model         string  `json:"model"`
	Temperature   float64 `json:"temperature"`
	MaxTokens     int     `json:"max_tokens"`
	ContextWindow int     `json:"context_window"`

	// BaseURL overrides the provider's default API endpoint, e.g. an Azure
	// OpenAI resource URL. Empty means the provider client's own default.
	BaseURL string `json:"base_url,omitempty"`
	// WireAPI names the request shape. The OpenAI client always builds a
	// Responses API request and always sends include (and prompt_cache_key
	// when set); this value only gates store=true for Azure endpoints (see
	// model.shouldStore). There is no chat-completions path, so "Chat"
	// changes nothing beyond that gate.
	WireAPI string `json:"wire_api,omitempty"`

	// ReasoningEffort requests a reasoning budget from models that support
	// it ("low" | "medium" | "high"). Empty omits the field entirely.
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
	// ReasoningSummary requests a reasoning summary style ("auto" |
	// "concise" | "detailed"). Empty omits the field entirely.
	ReasoningSummary string `json:"reasoning_summary,omitempty"`
}

// DefaultModelConfig returns sensible defaults for a fresh session.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		Temperature:   0.3,
		MaxTokens:     4096,
		ContextWindow: 128000,
		WireAPI:       "Responses",
	}
}

// ToolsConfig controls which built-in browser tools are registered.
type ToolsConfig struct {
	EnableDOMQuery    bool `json:"enable_dom_query"`
	EnableDOMMutate   bool `json:"enable_dom_mutate"`
	EnableNavigate    bool `json:"enable_navigate"`
	EnableFetch       bool `json:"enable_fetch"`
	EnableStorage     bool `json:"enable_storage"`
	EnableUpdatePlan  bool `json:"enable_update_plan"`
}

// DefaultToolsConfig enables the full read/write tool surface.
func DefaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		EnableDOMQuery:   true,
		EnableDOMMutate:  true,
		EnableNavigate:   true,
		EnableFetch:      true,
		EnableStorage:    true,
		EnableUpdatePlan: true,
	}
}

// RolloutConfig controls persistence behavior.
type RolloutConfig struct {
	// Path names a sqlite database file. Nothing in this module reads it
	// (the commands pass their own path to rollout.Open), and rollout.Open
	// does not map an empty path to ":memory:".
	Path string `json:"path"`
	// TTL, counted from a rollout's creation, after which it is eligible for
	// cleanup; zero or less makes new rollouts permanent.
	TTL time.Duration `json:"ttl"`
}

// DefaultRolloutConfig keeps rollouts for 30 days by default.
func DefaultRolloutConfig() RolloutConfig {
	return RolloutConfig{
		Path: "rollouts.db",
		TTL:  30 * 24 * time.Hour,
	}
}

// SessionConfig is the fully resolved configuration for a session, built by
// merging SessionConfiguration input with profile-resolved overrides.
type SessionConfig struct {
	BaseInstructions      string `json:"base_instructions,omitempty"`
	DeveloperInstructions string `json:"developer_instructions,omitempty"`
	UserInstructions      string `json:"user_instructions,omitempty"`

	Model   ModelConfig   `json:"model"`
	Tools   ToolsConfig   `json:"tools"`
	Rollout RolloutConfig `json:"rollout"`

	ApprovalPolicy string `json:"approval_policy"` // "never" | "unless-trusted" | "on-failure"
	SessionSource  string `json:"session_source,omitempty"`

	// AutoCompactTokenLimit is the configured token threshold that triggers
	// proactive history compaction; it's clamped to 90% of the model's
	// context window at evaluation time, never used verbatim. Zero disables
	// proactive compaction.
	AutoCompactTokenLimit int `json:"auto_compact_token_limit,omitempty"`

	// DisableSuggestions turns off the post-turn follow-up suggestion hook.
	DisableSuggestions bool `json:"disable_suggestions,omitempty"`

	// ShowRawAgentReasoning controls whether the model's raw reasoning
	// summary is surfaced to the client (as AgentReasoningDelta/
	// AgentReasoning events) and persisted to the rollout (as a
	// ReasoningItem). False by default: reasoning is internal to the model
	// loop unless a client has explicitly opted in to seeing it.
	ShowRawAgentReasoning bool `json:"show_raw_agent_reasoning,omitempty"`
}

// DefaultSessionConfig returns a session configuration with no overrides
// applied.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Model:                 DefaultModelConfig(),
		Tools:                 DefaultToolsConfig(),
		Rollout:               DefaultRolloutConfig(),
		ApprovalPolicy:        "unless-trusted",
		AutoCompactTokenLimit: 100000,
	}
}
