// Package approval implements one-shot, promise-like resolution of
// approval requests: the turn manager blocks a tool call on a pending
// Resolver until a matching submission.ExecApproval/PatchApproval arrives.
package approval

import (
	"context"
	"sync"

	"github.com/codex-web-agent/agent/internal/protocol"
)

// Resolver is a single-delivery slot: exactly one call to Resolve succeeds;
// every later call is a no-op, and Wait unblocks on whichever comes first.
type Resolver struct {
	once   sync.Once
	done   chan struct{}
	result protocol.Decision
}

func newResolver() *Resolver {
	return &Resolver{done: make(chan struct{})}
}

// Resolve delivers decision to the single waiter, if one hasn't already
// been delivered.
func (r *Resolver) Resolve(decision protocol.Decision) {
	r.once.Do(func() {
		r.result = decision
		close(r.done)
	})
}

// Wait blocks until Resolve is called or ctx is canceled, whichever first.
// A canceled context resolves as protocol.DecisionAbort.
func (r *Resolver) Wait(ctx context.Context) protocol.Decision {
	select {
	case <-r.done:
		return r.result
	case <-ctx.Done():
		return protocol.DecisionAbort
	}
}

// Coordinator tracks pending approval requests keyed by approval ID,
// analogous to the turn state's map of in-flight tool-call approvals.
type Coordinator struct {
	mu       sync.Mutex
	pending  map[string]*Resolver
}

// NewCoordinator builds an empty Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{pending: make(map[string]*Resolver)}
}

// Request registers a new pending approval under id and returns its
// Resolver. If id was already pending, the prior Resolver is resolved as
// DecisionAbort before being replaced, so no waiter is ever leaked.
func (c *Coordinator) Request(id string) *Resolver {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prior, ok := c.pending[id]; ok {
		prior.Resolve(protocol.DecisionAbort)
	}
	r := newResolver()
	c.pending[id] = r
	return r
}

// Resolve delivers decision to the pending approval registered under id,
// if any, and removes it from the pending set.
func (c *Coordinator) Resolve(id string, decision protocol.Decision) bool {
	c.mu.Lock()
	r, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	r.Resolve(decision)
	return true
}

// AbortAll resolves every pending approval as DecisionAbort, used when a
// turn is interrupted or the session shuts down.
func (c *Coordinator) AbortAll() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*Resolver)
	c.mu.Unlock()

	for _, r := range pending {
		r.Resolve(protocol.DecisionAbort)
	}
}
