// Package agent implements the submission-queue/event-queue loop: a single
// dedicated goroutine consumes Submissions from a FIFO buffered channel of
// 256 slots (not unbounded: Submit blocks while it is full) and
// dispatches each to the owning Session, while every Event a Session
// produces fans out to subscribers registered with Subscribe.
package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codex-web-agent/agent/internal/protocol"
	"github.com/codex-web-agent/agent/internal/session"
	"github.com/codex-web-agent/agent/internal/task"
)

// Agent owns one Session and the single goroutine that serializes every
// Submission against it, mirroring the harness's one-task-at-a-time
// session loop without any workflow-engine scaffolding underneath.
type Agent struct {
	sess *session.Session
	now  func() time.Time
	log  *slog.Logger

	submissions chan protocol.Submission
	done        chan struct{}
	wg          sync.WaitGroup

	mu        sync.Mutex
	listeners []session.Listener
}

// New starts an Agent wrapping sess. Call Run in its own goroutine to begin
// consuming submissions; Submit is safe to call before or after Run starts
// (the channel buffers up to 256 submissions until Run drains it).
func New(sess *session.Session, now func() time.Time) *Agent {
	a := &Agent{
		sess:        sess,
		now:         now,
		log:         slog.Default(),
		submissions: make(chan protocol.Submission, 256),
		done:        make(chan struct{}),
	}
	sess.Subscribe(func(evt protocol.Event) {
		a.mu.Lock()
		listeners := append([]session.Listener{}, a.listeners...)
		a.mu.Unlock()
		for _, l := range listeners {
			l(evt)
		}
	})
	return a
}

// Subscribe registers a listener for every event the agent's session
// produces, across all submissions.
func (a *Agent) Subscribe(l session.Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, l)
}

// Submit enqueues sub for processing. It never blocks the caller on the
// submission actually running; submissions drain strictly in FIFO order.
// It does block while all 256 buffer slots are full, and once Run has
// returned, sub may be dropped without being processed.
func (a *Agent) Submit(sub protocol.Submission) {
	select {
	case a.submissions <- sub:
	case <-a.done:
	}
}

// Run drains the submission queue until ctx is canceled or a Shutdown
// submission is processed. It should be called exactly once, typically in
// its own goroutine.
func (a *Agent) Run(ctx context.Context) {
	defer close(a.done)
	defer a.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-a.submissions:
			if a.dispatch(ctx, sub) {
				return
			}
		}
	}
}

// dispatch handles one submission, returning true if the agent should stop
// after it (a processed Shutdown).
func (a *Agent) dispatch(ctx context.Context, sub protocol.Submission) bool {
	now := a.now()

	if t, ok := task.FromOp(sub.Op); ok {
		// A task must not run on this loop's own goroutine: it may block
		// deep inside an approval wait (turn.Manager.executeCalls ->
		// requestApproval -> resolver.Wait), and only this loop can dequeue
		// the ExecApproval/PatchApproval/Interrupt submission that resolves
		// it. Run it on its own goroutine instead, tracked by wg so Run
		// doesn't return out from under an in-flight task.
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := t.Run(ctx, a.sess, sub.ID, now); err != nil {
				// Run has already emitted a protocol.Error event for a failed
				// turn or compaction, or TurnAborted for an interrupted turn;
				// an error from the rollout recorder comes back without any
				// event. Log for operators and let the loop continue.
				a.log.Warn("task run returned an error", "submission_id", sub.ID, "error", err)
			}
		}()
		return false
	}

	switch op := sub.Op.(type) {
	case protocol.ExecApproval:
		a.sess.ResolveApproval(op.ApprovalID, op.Decision)

	case protocol.PatchApproval:
		a.sess.ResolveApproval(op.ApprovalID, op.Decision)

	case protocol.Interrupt:
		a.sess.Interrupt()

	case protocol.Shutdown:
		a.log.Info("shutdown requested", "submission_id", sub.ID)
		a.sess.Interrupt()
		return true

	default:
		// Unrecognized Op: nothing to dispatch.
	}
	return false
}
