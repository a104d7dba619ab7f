package protocol

import "encoding/json"

// EventMsg is the tagged union of messages emitted on a session's event
// stream. Every event the agent produces, visible or internal, is offered to
// the rollout recorder before it reaches a subscriber; the recorder persists
// only the kinds rollout.ShouldPersistEvent selects (streaming deltas are
// not stored).
type EventMsg interface {
	msg()
	Kind() string
}

// Event pairs a submission id (the id of the Submission that triggered it,
// or "" for session-level events) with its payload.
type Event struct {
	ID  string   `json:"id"`
	Msg EventMsg `json:"msg"`
}

// MarshalJSON flattens Event into {"id", "kind", "msg"}, adding the
// discriminant that EventMsg's Kind() carries in Go but that plain struct
// marshaling would otherwise drop — the wasm bridge and any other wire
// consumer need it to dispatch on the payload shape.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID   string   `json:"id"`
		Kind string   `json:"kind"`
		Msg  EventMsg `json:"msg"`
	}{ID: e.ID, Kind: e.Msg.Kind(), Msg: e.Msg})
}

// TaskStarted announces that a new task has begun running for a submission.
type TaskStarted struct {
	ModelContextWindow int `json:"model_context_window,omitempty"`
}

func (TaskStarted) msg()          {}
func (TaskStarted) Kind() string { return "task_started" }

// TaskComplete announces that the task finished (normally, not due to
// interruption or error).
type TaskComplete struct {
	LastAgentMessage string `json:"last_agent_message,omitempty"`
}

func (TaskComplete) msg()          {}
func (TaskComplete) Kind() string { return "task_complete" }

// TaskFailed announces that the task ended because it encountered an
// unrecoverable error (model stream failure, tool registry panic, a
// compaction that could not bring history back under budget). Every
// TaskStarted is paired with exactly one of TaskComplete, TaskFailed, or
// TurnAborted.
type TaskFailed struct {
	Message string `json:"message"`
}

func (TaskFailed) msg()          {}
func (TaskFailed) Kind() string { return "task_failed" }

// TurnAborted announces that the task ended because it was interrupted
// before completing, rather than failing or finishing normally.
type TurnAborted struct {
	Reason string `json:"reason"`
}

func (TurnAborted) msg()          {}
func (TurnAborted) Kind() string { return "turn_aborted" }

// AgentMessageDelta is a streamed fragment of the assistant's visible reply.
// Never persisted on its own; only the accumulated AgentMessage is.
type AgentMessageDelta struct {
	Delta string `json:"delta"`
}

func (AgentMessageDelta) msg()          {}
func (AgentMessageDelta) Kind() string { return "agent_message_delta" }

// AgentMessage is the accumulated, terminal assistant message for a turn.
type AgentMessage struct {
	Message string `json:"message"`
}

func (AgentMessage) msg()          {}
func (AgentMessage) Kind() string { return "agent_message" }

// AgentReasoningDelta streams a fragment of the model's reasoning summary.
type AgentReasoningDelta struct {
	Delta string `json:"delta"`
}

func (AgentReasoningDelta) msg()          {}
func (AgentReasoningDelta) Kind() string { return "agent_reasoning_delta" }

// AgentReasoning is the accumulated reasoning summary for a turn.
type AgentReasoning struct {
	Text string `json:"text"`
}

func (AgentReasoning) msg()          {}
func (AgentReasoning) Kind() string { return "agent_reasoning" }

// ExecApprovalRequest asks the client to approve a tool invocation before
// it runs. The session blocks the current tool call on a matching
// ExecApproval submission.
type ExecApprovalRequest struct {
	ApprovalID string         `json:"approval_id"`
	ToolName   string         `json:"tool_name"`
	Arguments  map[string]any `json:"arguments"`
	Reason     string         `json:"reason,omitempty"`
}

func (ExecApprovalRequest) msg()          {}
func (ExecApprovalRequest) Kind() string { return "exec_approval_request" }

// ApplyPatchApprovalRequest asks the client to approve a page-mutation
// (DOM write, storage write) before it runs.
type ApplyPatchApprovalRequest struct {
	ApprovalID string `json:"approval_id"`
	Summary    string `json:"summary"`
}

func (ApplyPatchApprovalRequest) msg()          {}
func (ApplyPatchApprovalRequest) Kind() string { return "apply_patch_approval_request" }

// ToolCallBegin announces a tool invocation is starting.
type ToolCallBegin struct {
	CallID    string         `json:"call_id"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

func (ToolCallBegin) msg()          {}
func (ToolCallBegin) Kind() string { return "tool_call_begin" }

// ToolCallEnd announces a tool invocation finished, successfully or not.
type ToolCallEnd struct {
	CallID   string `json:"call_id"`
	Success  bool   `json:"success"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
	Duration int64  `json:"duration_ms"`
}

func (ToolCallEnd) msg()          {}
func (ToolCallEnd) Kind() string { return "tool_call_end" }

// PlanUpdate reports the agent's current self-tracked task list, surfaced by
// the update_plan tool.
type PlanUpdate struct {
	Tasks []PlanItem `json:"tasks"`
}

func (PlanUpdate) msg()          {}
func (PlanUpdate) Kind() string { return "plan_update" }

// PlanItem is one entry in a PlanUpdate.
type PlanItem struct {
	Step   string `json:"step"`
	Status string `json:"status"` // pending | in_progress | completed
}

// TokenCount reports cumulative token usage for the current turn/session.
type TokenCount struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
	ContextWindow int `json:"context_window,omitempty"`
}

func (TokenCount) msg()          {}
func (TokenCount) Kind() string { return "token_count" }

// CompactionStarted/CompactionComplete bracket an automatic or requested
// history compaction.
type CompactionStarted struct{}

func (CompactionStarted) msg()          {}
func (CompactionStarted) Kind() string { return "compaction_started" }

type CompactionComplete struct {
	Summary string `json:"summary"`
}

func (CompactionComplete) msg()          {}
func (CompactionComplete) Kind() string { return "compaction_complete" }

// Error surfaces a fatal or user-visible error for the submission.
type Error struct {
	Message string `json:"message"`
}

func (Error) msg()          {}
func (Error) Kind() string { return "error" }

// SessionConfigured is emitted once, at session start, echoing the
// resolved configuration back to the client.
type SessionConfigured struct {
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
}

func (SessionConfigured) msg()          {}
func (SessionConfigured) Kind() string { return "session_configured" }

// Notification carries an out-of-band, non-essential hint to the client —
// currently only used for a post-turn follow-up suggestion. Clients may
// ignore any Category they don't recognize.
type Notification struct {
	Category string `json:"kind"`
	Message  string `json:"message"`
}

func (Notification) msg()          {}
func (Notification) Kind() string { return "notification" }

// ShutdownComplete acknowledges a Shutdown submission.
type ShutdownComplete struct{}

func (ShutdownComplete) msg()          {}
func (ShutdownComplete) Kind() string { return "shutdown_complete" }
