// Package qkd implements entanglement-based key distribution: Alice shares
// Bell pairs with Bob, both measure in random bases, and the positions where
// the bases agree form the sifted key.
package qkd

import (
	"context"
	"fmt"

	"github.com/vk/netround/internal/ctxlog"
	"github.com/vk/netround/internal/network"
	"github.com/vk/netround/internal/noise"
	"github.com/vk/netround/internal/registry"
)

const (
	AliceProgram = "qkd.alice"
	BobProgram   = "qkd.bob"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input is the parameter document of both roles.
type Input struct {
	Pairs int    `yaml:"pairs"`
	Peer  string `yaml:"peer"`
}

// report is what Bob discloses after measuring.
type report struct {
	Bases []int
	Lost  []bool
}

// measureIn measures pos in the Z basis for 0 and the X basis for 1.
func measureIn(n *network.Node, basis, pos int) (int, error) {
	if basis == 1 {
		return n.Execute(network.OpMeasureX, pos)
	}
	return n.Execute(network.OpMeasure, pos)
}

func sift(bits, mine, theirs []int, lost []bool) []int {
	key := []int{}
	for i := range bits {
		if lost[i] || mine[i] != theirs[i] {
			continue
		}
		key = append(key, bits[i])
	}
	return key
}

// OnRunAlice creates the pairs, measures her halves and sifts.
func OnRunAlice(ctx context.Context, in *Input, rc *registry.RoleContext) (any, error) {
	peer := in.Peer
	if peer == "" {
		peer = "Bob"
	}
	if in.Pairs <= 0 {
		return nil, fmt.Errorf("pairs must be positive, got %d", in.Pairs)
	}
	n := rc.Node
	src := noise.NewStream(fmt.Sprintf("qkd/%s/%d", rc.Role, rc.Round))

	bases := make([]int, in.Pairs)
	bits := make([]int, in.Pairs)
	for i := range bases {
		for _, step := range []struct {
			op  network.Op
			pos []int
		}{
			{network.OpInit, []int{0}},
			{network.OpH, []int{0}},
			{network.OpInit, []int{1}},
			{network.OpCNOT, []int{0, 1}},
		} {
			if _, err := n.Execute(step.op, step.pos...); err != nil {
				return nil, err
			}
		}
		if err := n.SendQubit(peer, 1); err != nil {
			return nil, err
		}
		rc.Logger.Quantum("SEND_QUBIT", "Pair half sent.", rc.Role, peer)

		bases[i] = noise.Intn(src, 2)
		bit, err := measureIn(n, bases[i], 0)
		if err != nil {
			return nil, err
		}
		bits[i] = bit
		rc.Logger.Node("MEASURE", fmt.Sprintf("Pair %d measured in basis %d.", i, bases[i]), bit)
	}

	if err := n.SendClassical(peer, bases); err != nil {
		return nil, err
	}
	rc.Logger.Classical("SEND_BASES", "Bases disclosed.", rc.Role, peer, bases)

	v, err := n.ReceiveClassical(peer)
	if err != nil {
		return nil, err
	}
	r, ok := v.(report)
	if !ok {
		return nil, fmt.Errorf("unexpected report %v", v)
	}
	rc.Logger.Classical("RECV_REPORT", "Report received.", peer, rc.Role, r.Bases)

	key := sift(bits, bases, r.Bases, r.Lost)
	ctxlog.FromContext(ctx).Debug("Key sifted.", "pairs", in.Pairs, "key_length", len(key))
	return map[string]any{"pairs": in.Pairs, "key": key}, nil
}

// OnRunBob receives the pair halves, measures them and discloses his bases.
func OnRunBob(ctx context.Context, in *Input, rc *registry.RoleContext) (any, error) {
	peer := in.Peer
	if peer == "" {
		peer = "Alice"
	}
	if in.Pairs <= 0 {
		return nil, fmt.Errorf("pairs must be positive, got %d", in.Pairs)
	}
	n := rc.Node
	src := noise.NewStream(fmt.Sprintf("qkd/%s/%d", rc.Role, rc.Round))

	r := report{Bases: make([]int, in.Pairs), Lost: make([]bool, in.Pairs)}
	bits := make([]int, in.Pairs)
	lost := 0
	for i := range bits {
		gone, err := n.ReceiveQubit(peer, 0)
		if err != nil {
			return nil, err
		}
		r.Bases[i] = noise.Intn(src, 2)
		if gone {
			r.Lost[i] = true
			lost++
			rc.Logger.Quantum("RECV_QUBIT", "Pair half lost.", peer, rc.Role)
			continue
		}
		rc.Logger.Quantum("RECV_QUBIT", "Pair half received.", peer, rc.Role)

		bit, err := measureIn(n, r.Bases[i], 0)
		if err != nil {
			return nil, err
		}
		if _, err := n.Memory().Pop(0); err != nil {
			return nil, err
		}
		bits[i] = bit
		rc.Logger.Node("MEASURE", fmt.Sprintf("Pair %d measured in basis %d.", i, r.Bases[i]), bit)
	}

	v, err := n.ReceiveClassical(peer)
	if err != nil {
		return nil, err
	}
	aliceBases, ok := v.([]int)
	if !ok {
		return nil, fmt.Errorf("unexpected bases %v", v)
	}
	rc.Logger.Classical("RECV_BASES", "Bases received.", peer, rc.Role, aliceBases)

	if err := n.SendClassical(peer, r); err != nil {
		return nil, err
	}
	rc.Logger.Classical("SEND_REPORT", "Report sent.", rc.Role, peer, r.Bases)

	key := sift(bits, r.Bases, aliceBases, r.Lost)
	ctxlog.FromContext(ctx).Debug("Key sifted.", "pairs", in.Pairs, "lost", lost, "key_length", len(key))
	return map[string]any{"lost": lost, "key": key}, nil
}

// Register registers the programs with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterProgram(registry.Typed(AliceProgram, OnRunAlice))
	r.RegisterProgram(registry.Typed(BobProgram, OnRunBob))
}
