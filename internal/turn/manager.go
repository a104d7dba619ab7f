package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codex-web-agent/agent/internal/model"
	"github.com/codex-web-agent/agent/internal/protocol"
	"github.com/codex-web-agent/agent/internal/sse"
	"github.com/codex-web-agent/agent/internal/tools"
)

// MaxIterationsPerTurn bounds how many model-call/tool-call rounds a single
// turn may run before it's forcibly ended, mirroring the harness's
// max-iterations safeguard against runaway loops.
const MaxIterationsPerTurn = 50

// Emitter publishes one EventMsg for the turn. Implementations are
// expected to persist the event (per the rollout persistence policy)
// before it becomes visible to any subscriber — RunTurn never publishes
// out of order, so the emitter alone is responsible for that invariant.
type Emitter func(protocol.EventMsg) error

// CompactHook is invoked at the start of every RunTurn loop iteration with
// the full item list built up so far (the turn's starting history plus
// everything produced this turn). If ok is true, newItems is the replacement
// for that entire list — typically a single summary message — that RunTurn
// adopts and continues from; the hook is responsible for anything that
// needs to happen alongside the swap (persisting it, emitting
// CompactionStarted/CompactionComplete). err is non-nil only when
// compaction could not bring the conversation back under budget, in which
// case RunTurn aborts the turn.
type CompactHook func(ctx context.Context, items []protocol.ResponseItem) (newItems []protocol.ResponseItem, ok bool, err error)

// Manager assembles prompts, streams them through a model.Client, and
// dispatches any resulting tool calls through a tools.Registry, looping
// until the model produces a turn-ending message or MaxIterationsPerTurn
// is reached.
type Manager struct {
	Client   model.Client
	Registry *tools.Registry
	Log      *slog.Logger
}

func (m *Manager) logger() *slog.Logger {
	if m.Log != nil {
		return m.Log
	}
	return slog.Default()
}

// RunTurn executes one turn: it repeatedly calls the model, executes any
// requested tool calls (gating mutating ones on approval), and feeds their
// outputs back, until the model stops requesting tools. It returns the
// ResponseItems to append to session history, plus — only when compact
// swapped the turn's base history for a compaction summary mid-turn — the
// replacement base the caller must adopt in place of the history it
// passed in, instead of appending to it.
func (m *Manager) RunTurn(ctx context.Context, tc Context, history []protocol.ResponseItem, state *State, emit Emitter, compact CompactHook) ([]protocol.ResponseItem, []protocol.ResponseItem, error) {
	var produced []protocol.ResponseItem
	var compactedBase []protocol.ResponseItem
	var lastToolKey string
	repeatCount := 0

	for iteration := 0; iteration < MaxIterationsPerTurn; iteration++ {
		if err := ctx.Err(); err != nil {
			return produced, compactedBase, TaskCancelled{Cause: err}
		}

		if compact != nil {
			full := append(append([]protocol.ResponseItem{}, history...), produced...)
			newItems, ok, cerr := compact(ctx, full)
			if cerr != nil {
				return produced, compactedBase, cerr
			}
			if ok {
				history = newItems
				produced = nil
				compactedBase = newItems
			}
		}

		state.SetPhase(PhaseModelCalling)
		prompt := protocol.Prompt{
			Instructions:     tc.Instructions,
			Input:            append(append([]protocol.ResponseItem{}, history...), produced...),
			Tools:            tc.Tools,
			BaseURL:          tc.BaseURL,
			WireAPI:          tc.WireAPI,
			ReasoningEffort:  tc.ReasoningEffort,
			ReasoningSummary: tc.ReasoningSummary,
			PromptCacheKey:   tc.ConversationID,
		}

		items, err := m.streamOnce(ctx, tc, prompt, emit)
		if err != nil {
			return produced, compactedBase, err
		}
		produced = append(produced, items...)

		calls := extractFunctionCalls(items)
		if len(calls) == 0 {
			return produced, compactedBase, nil
		}

		key := toolCallKey(calls)
		if key == lastToolKey {
			repeatCount++
		} else {
			repeatCount = 0
			lastToolKey = key
		}
		if repeatCount >= 2 {
			m.logger().Warn("turn aborted: repeated identical tool calls", "tool_call_key", key)
			produced = append(produced, protocol.MessageItem{
				Role: "assistant",
				Content: []protocol.ContentItem{{
					Type: "output_text",
					Text: "Turn ended: detected repeated identical tool calls. Please try a different approach.",
				}},
			})
			return produced, compactedBase, nil
		}

		state.SetPhase(PhaseToolExecuting)
		outputs, err := m.executeCalls(ctx, tc.ApprovalPolicy, calls, state, emit)
		if err != nil {
			return produced, compactedBase, err
		}
		produced = append(produced, outputs...)
	}

	m.logger().Warn("turn reached max iterations", "max_iterations", MaxIterationsPerTurn)
	produced = append(produced, protocol.MessageItem{
		Role: "assistant",
		Content: []protocol.ContentItem{{
			Type: "output_text",
			Text: fmt.Sprintf("Turn ended: reached maximum of %d iterations without completing.", MaxIterationsPerTurn),
		}},
	})
	return produced, compactedBase, nil
}

// streamOnce drives a single model.Client.Stream call, accumulating
// deltas and translating terminal ResponseEvents into EventMsgs and
// ResponseItems.
func (m *Manager) streamOnce(ctx context.Context, tc Context, prompt protocol.Prompt, emit Emitter) ([]protocol.ResponseItem, error) {
	var items []protocol.ResponseItem
	var messageBuf string
	var reasoningBuf string

	err := m.Client.Stream(ctx, prompt, func(ev sse.ResponseEvent) error {
		switch e := ev.(type) {
		case sse.OutputTextDelta:
			messageBuf += e.Delta
			return emit(protocol.AgentMessageDelta{Delta: e.Delta})
		case sse.ReasoningSummaryDelta:
			reasoningBuf += e.Delta
			if !tc.ShowRawAgentReasoning {
				return nil
			}
			return emit(protocol.AgentReasoningDelta{Delta: e.Delta})
		case sse.OutputItemDone:
			items = append(items, e.Item)
			return nil
		case sse.Completed:
			if messageBuf != "" {
				if err := emit(protocol.AgentMessage{Message: messageBuf}); err != nil {
					return err
				}
			}
			if reasoningBuf != "" && tc.ShowRawAgentReasoning {
				if err := emit(protocol.AgentReasoning{Text: reasoningBuf}); err != nil {
					return err
				}
			}
			return emit(protocol.TokenCount{
				InputTokens:  e.InputTokens,
				OutputTokens: e.OutputTokens,
				TotalTokens:  e.TotalTokens,
			})
		case sse.StreamError:
			return fmt.Errorf("model stream error: %s", e.Message)
		default:
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func extractFunctionCalls(items []protocol.ResponseItem) []protocol.FunctionCallItem {
	var calls []protocol.FunctionCallItem
	for _, it := range items {
		if fc, ok := it.(protocol.FunctionCallItem); ok {
			calls = append(calls, fc)
		}
	}
	return calls
}

func toolCallKey(calls []protocol.FunctionCallItem) string {
	key := ""
	for _, c := range calls {
		key += c.Name + ":" + c.Arguments + "|"
	}
	return key
}

// mutatingTools names tools whose calls require approval under the
// "unless-trusted" policy. dom_query and fetch are read-only and always
// auto-approved.
var mutatingTools = map[string]bool{
	"dom_mutate":  true,
	"navigate":    true,
	"storage_set": true,
}

// executeCalls runs a batch of tool calls from a single model turn. Calls
// that never mutate page state (or don't need approval under the active
// policy) run concurrently, per the provider profiles' own guidance to
// prefer parallel tool calls for independent operations; calls gated on
// approval run one at a time, in the order the model issued them, so the
// approval prompts a user sees never arrive out of order.
func (m *Manager) executeCalls(ctx context.Context, approvalPolicy string, calls []protocol.FunctionCallItem, state *State, emit Emitter) ([]protocol.ResponseItem, error) {
	results := make([]protocol.FunctionCallOutputItem, len(calls))
	durations := make([]time.Duration, len(calls))
	toolErrs := make([]string, len(calls))

	for _, call := range calls {
		if err := emit(protocol.ToolCallBegin{CallID: call.CallID, ToolName: call.Name, Arguments: decodeArgsForDisplay(call.Arguments)}); err != nil {
			return nil, err
		}
		state.BeginTool(call.CallID)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		if mutatingTools[call.Name] && requiresApproval(approvalPolicy) {
			continue // handled sequentially below
		}
		group.Go(func() error {
			resp := m.Registry.Execute(groupCtx, call.Name, call.Arguments)
			state.EndTool(call.CallID)
			results[i], durations[i], toolErrs[i] = responseToOutput(call.CallID, resp)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	for i, call := range calls {
		if !(mutatingTools[call.Name] && requiresApproval(approvalPolicy)) {
			continue
		}

		decision, err := requestApproval(ctx, state, call, emit)
		if err != nil {
			state.EndTool(call.CallID)
			return nil, err
		}
		if decision == protocol.DecisionDenied || decision == protocol.DecisionAbort {
			results[i] = protocol.FunctionCallOutputItem{CallID: call.CallID, Output: "denied by user", Success: false}
			toolErrs[i] = "denied"
			state.EndTool(call.CallID)
			continue
		}

		resp := m.Registry.Execute(ctx, call.Name, call.Arguments)
		state.EndTool(call.CallID)
		results[i], durations[i], toolErrs[i] = responseToOutput(call.CallID, resp)
	}

	outputs := make([]protocol.ResponseItem, len(calls))
	for i, call := range calls {
		outputs[i] = results[i]
		endEvt := protocol.ToolCallEnd{
			CallID:   call.CallID,
			Success:  results[i].Success,
			Output:   results[i].Output,
			Error:    toolErrs[i],
			Duration: durations[i].Milliseconds(),
		}
		if err := emit(endEvt); err != nil {
			return outputs, err
		}
	}
	return outputs, nil
}

func responseToOutput(callID string, resp tools.ExecutionResponse) (protocol.FunctionCallOutputItem, time.Duration, string) {
	out := protocol.FunctionCallOutputItem{CallID: callID, Success: resp.Success}
	errMsg := ""
	if resp.Success {
		out.Output = resp.Data
	} else {
		out.Output = resp.Error.Error()
		errMsg = resp.Error.Error()
	}
	return out, resp.Duration, errMsg
}

func decodeArgsForDisplay(raw string) map[string]any {
	var m map[string]any
	_ = json.Unmarshal([]byte(raw), &m)
	return m
}

// requiresApproval consults the turn's approval policy. "never" runs
// full-auto; "on-failure" only escalates after a tool already failed once
// (handled by the registry's own retry-free contract, so treated as auto
// here); anything else ("unless-trusted", "" default) requires a round
// trip for mutating tools.
func requiresApproval(approvalPolicy string) bool {
	switch approvalPolicy {
	case "never", "on-failure":
		return false
	default:
		return true
	}
}

func requestApproval(ctx context.Context, state *State, call protocol.FunctionCallItem, emit Emitter) (protocol.Decision, error) {
	resolver := state.Approvals().Request(call.CallID)
	if err := emit(protocol.ExecApprovalRequest{
		ApprovalID: call.CallID,
		ToolName:   call.Name,
		Arguments:  decodeArgsForDisplay(call.Arguments),
	}); err != nil {
		return protocol.DecisionAbort, err
	}
	state.SetPhase(PhaseApprovalPending)
	decision := resolver.Wait(ctx)
	state.SetPhase(PhaseToolExecuting)
	return decision, nil
}
