package network

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/netround/internal/noise"
	"github.com/vk/netround/internal/simclock"
	"github.com/vk/netround/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

var (
	delft     = &Coordinates{Latitude: 52.0116, Longitude: 4.3571}
	amsterdam = &Coordinates{Latitude: 52.3676, Longitude: 4.9041}
)

func fixedSources(v float64) Option {
	return WithSources(func(string) noise.Source { return constSource(v) })
}

func twoNodeDescriptor(channelParams noise.Params) *Descriptor {
	return &Descriptor{
		Roles: map[string]string{"Sender": "n1", "Receiver": "n2"},
		Nodes: []NodeTemplate{
			{Slug: "n1", Qubits: 2, Coordinates: delft},
			{Slug: "n2", Qubits: 2, Coordinates: amsterdam},
		},
		Channels: []ChannelTemplate{{Slug: "n1-n2", Parameters: channelParams}},
	}
}

// runRoles drives each role function on its own goroutine against clock.
func runRoles(t *testing.T, clock *simclock.Clock, roles ...func() error) []error {
	t.Helper()
	errs := make([]error, len(roles))
	var wg sync.WaitGroup
	for i, fn := range roles {
		clock.Attach()
		wg.Add(1)
		go func(i int, fn func() error) {
			defer wg.Done()
			defer clock.Detach()
			errs[i] = fn()
		}(i, fn)
	}
	require.NoError(t, clock.Drain())
	wg.Wait()
	return errs
}

func TestBuild_FullyConnected(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	d := &Descriptor{
		Roles: map[string]string{"alice": "a", "bob": "b", "charlie": "c", "dave": "d"},
		Nodes: []NodeTemplate{{Slug: "a"}, {Slug: "b"}, {Slug: "c"}, {Slug: "d"}},
		Channels: []ChannelTemplate{
			{Slug: "a-b"},
			{Slug: "d-c"},
			{Slug: "x-y"},
		},
	}

	topo, err := Build(ctx, simclock.New(), d, fixedSources(0))
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob", "charlie", "dave"}, topo.Roles())
	assert.Len(t, topo.Links(), 6, "C(4,2) classical links")
	assert.Equal(t, 2, topo.QuantumLinks())

	ab, ok := topo.Link("bob", "alice")
	require.True(t, ok)
	assert.True(t, ab.Quantum())
	assert.Equal(t, "a-b", ab.ChannelSlug)

	cd, ok := topo.Link("charlie", "dave")
	require.True(t, ok)
	assert.True(t, cd.Quantum(), "channel slug matches in either order")

	ac, ok := topo.Link("alice", "charlie")
	require.True(t, ok)
	assert.False(t, ac.Quantum())

	alice, ok := topo.Node("alice")
	require.True(t, ok)
	assert.Equal(t, []string{"clink_bob", "clink_charlie", "clink_dave", "qlink_bob"}, alice.PortNames())

	p, err := alice.Port("qlink_bob")
	require.NoError(t, err)
	assert.Equal(t, Quantum, p.Kind())
	assert.Equal(t, "bob", p.Peer())

	_, err = alice.Port("qlink_charlie")
	assert.ErrorIs(t, err, ErrUnknownPort)

	assert.Equal(t, map[string]string{"alice": "a", "bob": "b", "charlie": "c", "dave": "d"}, topo.RoleTable())
}

func TestBuild_TemplateResolution(t *testing.T) {
	ctx, _ := testutil.NewContext(t)

	_, err := Build(ctx, simclock.New(), &Descriptor{
		Roles: map[string]string{"alice": "missing"},
		Nodes: []NodeTemplate{{Slug: "a"}},
	})
	assert.ErrorIs(t, err, ErrNoTemplate)

	_, err = Build(ctx, simclock.New(), &Descriptor{
		Roles: map[string]string{"alice": "a"},
		Nodes: []NodeTemplate{{Slug: "a"}, {Slug: "a"}},
	})
	assert.ErrorIs(t, err, ErrAmbiguousTemplate)

	_, err = Build(ctx, simclock.New(), &Descriptor{})
	assert.ErrorIs(t, err, ErrNoRoles)

	_, err = Build(ctx, simclock.New(), &Descriptor{
		Roles: map[string]string{"alice": "a"},
		Nodes: []NodeTemplate{{Slug: "a", Qubits: -1}},
	})
	assert.Error(t, err)
}

func TestBuild_MalformedNoiseFallsBack(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	d := &Descriptor{
		Roles: map[string]string{"alice": "a"},
		Nodes: []NodeTemplate{{
			Slug:   "a",
			Qubits: 1,
			Parameters: noise.Params{
				noise.ParamDepolarRate: cty.StringVal("very noisy"),
				noise.ParamDetectorEff: cty.ListVal([]cty.Value{cty.NumberIntVal(1)}),
			},
		}},
	}

	topo, err := Build(ctx, simclock.New(), d)
	require.NoError(t, err)

	n, _ := topo.Node("alice")
	assert.Zero(t, n.Memory().Noise().Rate)
	assert.Equal(t, noise.PerfectDetector, n.Detector())
	assert.Equal(t, 1, n.Memory().Size())
}

func TestBuild_Distances(t *testing.T) {
	ctx, _ := testutil.NewContext(t)

	topo, err := Build(ctx, simclock.New(), twoNodeDescriptor(nil))
	require.NoError(t, err)
	l, _ := topo.Link("Sender", "Receiver")
	assert.True(t, l.Measured)
	assert.InDelta(t, Distance(*delft, *amsterdam), l.Distance, 1e-9)

	d := twoNodeDescriptor(nil)
	d.Nodes[1].Coordinates = nil
	topo, err = Build(ctx, simclock.New(), d)
	require.NoError(t, err)
	l, _ = topo.Link("Sender", "Receiver")
	assert.False(t, l.Measured)
	assert.Equal(t, DefaultDistance, l.Distance)
}

func TestDistance(t *testing.T) {
	ab := Distance(*delft, *amsterdam)
	assert.Equal(t, ab, Distance(*amsterdam, *delft))
	assert.InDelta(t, 54.38, ab, 0.01)
	assert.Zero(t, Distance(*delft, *delft))
	assert.InDelta(t, 111.195, Distance(Coordinates{}, Coordinates{Longitude: 1}), 1e-3)
}

func TestClassicalChannel_OrderAndDelay(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	clock := simclock.New()
	topo, err := Build(ctx, clock, twoNodeDescriptor(nil), fixedSources(0))
	require.NoError(t, err)

	sender, _ := topo.Node("Sender")
	receiver, _ := topo.Node("Receiver")
	l, _ := topo.Link("Sender", "Receiver")
	delay := PropagationDelay(l.Distance)

	var got []any
	var arrivals []time.Duration
	errs := runRoles(t, clock,
		func() error {
			for i := 0; i < 3; i++ {
				if err := sender.SendClassical("Receiver", i); err != nil {
					return err
				}
			}
			return nil
		},
		func() error {
			for i := 0; i < 3; i++ {
				msg, err := receiver.ReceiveClassical("Sender")
				if err != nil {
					return err
				}
				got = append(got, msg)
				arrivals = append(arrivals, receiver.Now())
			}
			return nil
		},
	)

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, []any{0, 1, 2}, got)
	for _, at := range arrivals {
		assert.Equal(t, delay, at)
	}
}

func TestReceive_NothingSent(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	clock := simclock.New()
	topo, err := Build(ctx, clock, twoNodeDescriptor(nil), fixedSources(0))
	require.NoError(t, err)
	receiver, _ := topo.Node("Receiver")

	errs := runRoles(t, clock, func() error {
		_, err := receiver.ReceiveClassical("Sender")
		return err
	})

	assert.ErrorIs(t, errs[0], simclock.ErrSimulationEnded)
	_, err = receiver.ReceiveClassical("Nobody")
	assert.ErrorIs(t, err, ErrUnknownPeer)
}

func TestQuantumChannel_DeliversEntanglement(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	clock := simclock.New()
	topo, err := Build(ctx, clock, twoNodeDescriptor(noise.Params{
		noise.ParamLossLength: cty.NumberIntVal(0),
	}), fixedSources(0.3))
	require.NoError(t, err)

	sender, _ := topo.Node("Sender")
	receiver, _ := topo.Node("Receiver")

	var local, remote int
	errs := runRoles(t, clock,
		func() error {
			steps := []struct {
				op  Op
				pos []int
			}{
				{OpInit, []int{0}}, {OpInit, []int{1}}, {OpH, []int{0}}, {OpCNOT, []int{0, 1}},
			}
			for _, s := range steps {
				if _, err := sender.Execute(s.op, s.pos...); err != nil {
					return err
				}
			}
			if err := sender.SendQubit("Receiver", 1); err != nil {
				return err
			}
			if _, err := sender.ReceiveClassical("Receiver"); err != nil {
				return err
			}
			var err error
			local, err = sender.Execute(OpMeasure, 0)
			return err
		},
		func() error {
			lost, err := receiver.ReceiveQubit("Sender", 0)
			if err != nil {
				return err
			}
			if lost {
				t.Error("qubit lost on a lossless channel")
			}
			remote, err = receiver.Execute(OpMeasure, 0)
			if err != nil {
				return err
			}
			return receiver.SendClassical("Sender", "done")
		},
	)

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, local, remote, "Phi+ halves agree in Z")
}

func TestQuantumChannel_Loss(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	clock := simclock.New()
	topo, err := Build(ctx, clock, twoNodeDescriptor(noise.Params{
		noise.ParamLossInit: cty.NumberIntVal(1),
	}), fixedSources(0.5))
	require.NoError(t, err)

	sender, _ := topo.Node("Sender")
	receiver, _ := topo.Node("Receiver")

	var lost bool
	errs := runRoles(t, clock,
		func() error {
			if _, err := sender.Execute(OpInit, 0); err != nil {
				return err
			}
			return sender.SendQubit("Receiver", 0)
		},
		func() error {
			var err error
			lost, err = receiver.ReceiveQubit("Sender", 1)
			return err
		},
	)

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.True(t, lost)
	assert.Equal(t, []int{0, 1}, receiver.Memory().Free())
	assert.Equal(t, []int{0, 1}, sender.Memory().Free())
}

func TestExecute(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	clock := simclock.New()
	topo, err := Build(ctx, clock, twoNodeDescriptor(nil), fixedSources(0))
	require.NoError(t, err)
	n, _ := topo.Node("Sender")

	var elapsed time.Duration
	errs := runRoles(t, clock, func() error {
		if _, err := n.Execute(OpH, 0); err == nil {
			t.Error("H on an empty position must fail")
		}
		if _, err := n.Execute(OpCNOT, 0); err == nil {
			t.Error("CNOT with one position must fail")
		}
		if _, err := n.Execute("TOFFOLI", 0); err == nil {
			t.Error("unsupported op must fail")
		}
		if _, err := n.Execute(OpInit, 5); err == nil {
			t.Error("out of range position must fail")
		}
		if _, err := n.Execute(OpInit, 0); err != nil {
			return err
		}
		if _, err := n.Execute(OpX, 0); err != nil {
			return err
		}
		out, err := n.Execute(OpMeasure, 0)
		if err != nil {
			return err
		}
		if out != 1 {
			t.Errorf("X|0> measured %d, want 1", out)
		}
		elapsed = n.Now()
		return nil
	})

	require.NoError(t, errs[0])
	assert.Equal(t, 11*time.Nanosecond, elapsed, "INIT 3 + X 1 + MEASURE 7")

	in, ok := n.Instruction(OpMeasureBell)
	require.True(t, ok)
	assert.False(t, in.Parallel)
	in, _ = n.Instruction(OpCNOT)
	assert.True(t, in.Parallel)
	assert.Len(t, n.Instructions(), 9)
}
