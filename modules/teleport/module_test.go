package teleport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/netround/internal/round"
	"github.com/vk/netround/internal/round/roundtest"
)

var bindings = map[string]string{"Sender": SenderProgram, "Receiver": ReceiverProgram}

func TestTeleport(t *testing.T) {
	tests := []struct {
		state string
		basis string
		want  int
	}{
		{state: "0", basis: "Z", want: 0},
		{state: "1", basis: "Z", want: 1},
		{state: "+", basis: "X", want: 0},
		{state: "-", basis: "X", want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.state, func(t *testing.T) {
			out := roundtest.Run(t,
				roundtest.Pair("Sender", "Receiver", 3, roundtest.Lossless),
				map[string]string{
					"Sender":   "state: \"" + tc.state + "\"\n",
					"Receiver": "basis: " + tc.basis + "\n",
				},
				bindings, &Module{},
			)
			require.Nil(t, out.Failure)
			assert.Equal(t, round.StateCompleted, out.State)
			assert.Equal(t, map[string]any{"lost": false, "measurement": tc.want}, out.Outputs["Receiver"])
		})
	}
}

func TestTeleport_InvalidInput(t *testing.T) {
	out := roundtest.Run(t,
		roundtest.Pair("Sender", "Receiver", 3, roundtest.Lossless),
		map[string]string{"Sender": "state: \"?\"\n"},
		bindings, &Module{},
	)
	require.NotNil(t, out.Failure)
	assert.Equal(t, round.KindExecution, out.Failure.Kind)
	assert.Contains(t, out.Failure.Message, `unsupported state "?"`)
}

func TestTeleport_UnknownField(t *testing.T) {
	out := roundtest.Run(t,
		roundtest.Pair("Sender", "Receiver", 3, roundtest.Lossless),
		map[string]string{"Sender": "colour: blue\n"},
		bindings, &Module{},
	)
	require.NotNil(t, out.Failure)
	assert.Equal(t, round.KindLoad, out.Failure.Kind)
}
