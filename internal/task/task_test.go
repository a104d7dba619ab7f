package task

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codex-web-agent/agent/internal/protocol"
)

func TestFromOp_MapsKnownOps(t *testing.T) {
	cases := []struct {
		name string
		op   protocol.Op
		want any
	}{
		{"user input", protocol.UserInput{}, RegularTask{}},
		{"user turn", protocol.UserTurn{}, RegularTask{}},
		{"compact", protocol.Compact{}, CompactTask{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := FromOp(c.op)
			assert.True(t, ok)
			assert.IsType(t, c.want, got)
		})
	}
}

func TestFromOp_UnknownOpReturnsFalse(t *testing.T) {
	_, ok := FromOp(protocol.Interrupt{})
	assert.False(t, ok)
}
