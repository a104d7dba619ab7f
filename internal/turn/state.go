package turn

import (
	"sync"

	"github.com/codex-web-agent/agent/internal/approval"
)

// Phase tracks what the active turn is currently doing, surfaced to the
// client so a popup UI can show the right spinner/affordance.
type Phase string

const (
	PhaseWaitingForInput Phase = "waiting_for_input"
	PhaseModelCalling    Phase = "model_calling"
	PhaseToolExecuting   Phase = "tool_executing"
	PhaseApprovalPending Phase = "approval_pending"
	PhaseCompacting      Phase = "compacting"
)

// State is the mutable, in-flight state of the turn currently running for
// a session: which phase it's in, which tool calls are outstanding, and
// the approval coordinator gating any mutating tool call.
type State struct {
	mu sync.Mutex

	phase         Phase
	toolsInFlight map[string]struct{}
	approvals     *approval.Coordinator
}

// NewState starts a fresh turn state with its own approval coordinator.
func NewState() *State {
	return &State{
		phase:         PhaseWaitingForInput,
		toolsInFlight: make(map[string]struct{}),
		approvals:     approval.NewCoordinator(),
	}
}

// SetPhase updates the turn's current phase.
func (s *State) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

// Phase returns the turn's current phase.
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// BeginTool marks callID as in flight.
func (s *State) BeginTool(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolsInFlight[callID] = struct{}{}
}

// EndTool clears callID from the in-flight set.
func (s *State) EndTool(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.toolsInFlight, callID)
}

// ToolsInFlight lists the call IDs currently executing.
func (s *State) ToolsInFlight() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.toolsInFlight))
	for id := range s.toolsInFlight {
		out = append(out, id)
	}
	return out
}

// Approvals returns the turn's approval coordinator.
func (s *State) Approvals() *approval.Coordinator {
	return s.approvals
}

// ActiveTurn tracks the currently running task for a session, keyed by the
// submission ID that started it, and exposes a Cancel function to
// interrupt it.
type ActiveTurn struct {
	mu         sync.Mutex
	submitID   string
	state      *State
	cancelFunc func()
}

// Start registers submitID as the active turn, canceling whatever turn was
// previously active (there is at most one running task per session).
func (a *ActiveTurn) Start(submitID string, state *State, cancel func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.submitID = submitID
	a.state = state
	a.cancelFunc = cancel
}

// Clear removes the active turn once it finishes, but only if submitID
// still matches (a stale Clear from an already-superseded turn is a
// no-op).
func (a *ActiveTurn) Clear(submitID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.submitID != submitID {
		return
	}
	a.submitID = ""
	a.state = nil
	a.cancelFunc = nil
}

// Cancel interrupts whatever turn is currently active, if any.
func (a *ActiveTurn) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	if a.state != nil {
		a.state.approvals.AbortAll()
	}
}

// Current returns the currently active turn's state, or nil if no turn is
// running.
func (a *ActiveTurn) Current() *State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}
