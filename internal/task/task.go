// Package task defines the SessionTask dispatch: the thin mapping from a
// client-issued Op that starts work (UserInput, UserTurn, Compact) to the
// session-level call that actually runs it. The per-turn model/tool loop
// itself lives in turn.Manager; a SessionTask's job is only to know which
// Session method to invoke and with what arguments.
package task

import (
	"context"
	"time"

	"github.com/codex-web-agent/agent/internal/protocol"
	"github.com/codex-web-agent/agent/internal/session"
)

// SessionTask is one unit of work an Agent runs against a Session in
// response to a Submission.
type SessionTask interface {
	Run(ctx context.Context, sess *session.Session, submitID string, now time.Time) error
}

// RegularTask runs one ordinary turn: feed items into history, loop the
// model/tool cycle via the session's turn.Manager, and emit TaskComplete.
type RegularTask struct {
	Items     []protocol.InputItem
	Overrides protocol.TurnConfig
}

func (t RegularTask) Run(ctx context.Context, sess *session.Session, submitID string, now time.Time) error {
	return sess.RunTurn(ctx, submitID, t.Items, t.Overrides, now)
}

// CompactTask forces a history compaction regardless of the auto-compact
// threshold, used to service an explicit protocol.Compact submission.
type CompactTask struct{}

func (t CompactTask) Run(ctx context.Context, sess *session.Session, submitID string, now time.Time) error {
	return sess.ForceCompact(ctx, submitID, now)
}

// FromOp maps a client Op to the SessionTask that services it. ok is false
// for Ops that don't start a task (approvals, interrupt, shutdown), which
// the agent's dispatch loop handles directly against session/turn state
// instead.
func FromOp(op protocol.Op) (SessionTask, bool) {
	switch o := op.(type) {
	case protocol.UserInput:
		return RegularTask{Items: o.Items}, true
	case protocol.UserTurn:
		return RegularTask{Items: o.Items, Overrides: o.Overrides}, true
	case protocol.Compact:
		return CompactTask{}, true
	default:
		return nil, false
	}
}
