package pingpong

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/netround/internal/round"
	"github.com/vk/netround/internal/round/roundtest"
)

var bindings = map[string]string{"Ping": PingProgram, "Pong": PongProgram}

func TestPingPong(t *testing.T) {
	out := roundtest.Run(t,
		roundtest.Pair("Ping", "Pong", 0, nil),
		map[string]string{"Ping": "count: 3\n", "Pong": "count: 3\n"},
		bindings, &Module{},
	)
	require.Nil(t, out.Failure)

	// Nodes without coordinates are 1 km apart: 5 us each way.
	assert.Equal(t, map[string]any{
		"exchanges": 3,
		"rtt_ns":    []int64{10000, 10000, 10000},
	}, out.Outputs["Ping"])
	assert.Equal(t, map[string]any{"echoed": 3, "last_ns": int64(25000)}, out.Outputs["Pong"])
	assert.Equal(t, int64(30000), out.VirtualTime.Nanoseconds())
}

func TestPingPong_PongExpectsMore(t *testing.T) {
	out := roundtest.Run(t,
		roundtest.Pair("Ping", "Pong", 0, nil),
		map[string]string{"Ping": "count: 1\n", "Pong": "count: 2\n"},
		bindings, &Module{},
	)
	require.NotNil(t, out.Failure)
	assert.Equal(t, round.KindExecution, out.Failure.Kind)
	assert.Nil(t, out.Outputs)
}
