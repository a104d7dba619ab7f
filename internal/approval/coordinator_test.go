package approval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-web-agent/agent/internal/protocol"
)

func TestCoordinator_RequestThenResolve(t *testing.T) {
	c := NewCoordinator()
	r := c.Request("call-1")

	go func() {
		time.Sleep(5 * time.Millisecond)
		ok := c.Resolve("call-1", protocol.DecisionApproved)
		assert.True(t, ok)
	}()

	decision := r.Wait(context.Background())
	assert.Equal(t, protocol.DecisionApproved, decision)
}

func TestCoordinator_ResolveUnknownIDReturnsFalse(t *testing.T) {
	c := NewCoordinator()
	ok := c.Resolve("nonexistent", protocol.DecisionApproved)
	assert.False(t, ok)
}

func TestCoordinator_DuplicateRequestAbortsPrior(t *testing.T) {
	c := NewCoordinator()
	first := c.Request("call-1")
	second := c.Request("call-1")

	firstDecision := first.Wait(context.Background())
	assert.Equal(t, protocol.DecisionAbort, firstDecision)

	ok := c.Resolve("call-1", protocol.DecisionApproved)
	require.True(t, ok)
	assert.Equal(t, protocol.DecisionApproved, second.Wait(context.Background()))
}

func TestCoordinator_AbortAll(t *testing.T) {
	c := NewCoordinator()
	r1 := c.Request("call-1")
	r2 := c.Request("call-2")

	c.AbortAll()

	assert.Equal(t, protocol.DecisionAbort, r1.Wait(context.Background()))
	assert.Equal(t, protocol.DecisionAbort, r2.Wait(context.Background()))
}

func TestResolver_WaitRespectsContextCancel(t *testing.T) {
	c := NewCoordinator()
	r := c.Request("call-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, protocol.DecisionAbort, r.Wait(ctx))
}
