package rollout

import "github.com/codex-web-agent/agent/internal/protocol"

// ShouldPersistEvent implements the frozen persistence policy table:
// which EventMsg kinds are written to the rollout store versus only ever
// delivered live to subscribers. Deltas are never persisted — only the
// terminal item they accumulate into is — since replaying a rollout only
// needs the final value.
func ShouldPersistEvent(msg protocol.EventMsg) bool {
	switch msg.(type) {
	case protocol.AgentMessageDelta, protocol.AgentReasoningDelta:
		return false
	case protocol.TaskStarted,
		protocol.TaskComplete,
		protocol.TaskFailed,
		protocol.TurnAborted,
		protocol.AgentMessage,
		protocol.AgentReasoning,
		protocol.ToolCallBegin,
		protocol.ToolCallEnd,
		protocol.PlanUpdate,
		protocol.TokenCount,
		protocol.CompactionStarted,
		protocol.CompactionComplete,
		protocol.Error,
		protocol.SessionConfigured,
		protocol.ShutdownComplete:
		return true
	case protocol.ExecApprovalRequest, protocol.ApplyPatchApprovalRequest:
		// Approval prompts are ephemeral UI state, not conversation history;
		// the eventual exec/patch approval decision is recorded via the
		// resulting tool_call_end instead.
		return false
	default:
		return false
	}
}

// ShouldPersistResponseItem reports whether a ResponseItem belongs in the
// rollout. Every item that will be replayed back to the model on a future
// turn is persisted; deltas don't reach this layer at all since they are
// never wrapped as ResponseItem.
func ShouldPersistResponseItem(item protocol.ResponseItem) bool {
	switch item.(type) {
	case protocol.MessageItem, protocol.ReasoningItem, protocol.FunctionCallItem, protocol.FunctionCallOutputItem:
		return true
	default:
		return false
	}
}
