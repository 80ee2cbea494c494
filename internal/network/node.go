package network

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/vk/netround/internal/noise"
	"github.com/vk/netround/internal/simclock"
)

// ErrUnsupportedOp is returned for an operation outside the node's set.
var ErrUnsupportedOp = errors.New("unsupported operation")

// Node is the simulated device a role runs on.
type Node struct {
	role        string
	slug        string
	coordinates *Coordinates

	clock        *simclock.Clock
	memory       *Memory
	instructions map[Op]Instruction
	detector     noise.Detector
	rng          noise.Source
	ids          *atomic.Uint64

	// detectorFree is when the shared detector finishes its current
	// measurement.
	detectorFree time.Duration

	ports map[string]*Port
}

// Role returns the role the node was built for.
func (n *Node) Role() string { return n.role }

// Slug returns the physical node identity, the template slug.
func (n *Node) Slug() string { return n.slug }

// Coordinates returns the node location, or nil.
func (n *Node) Coordinates() *Coordinates { return n.coordinates }

// Memory returns the node's qubit memory.
func (n *Node) Memory() *Memory { return n.memory }

// Detector returns the Bell-state measurement noise model.
func (n *Node) Detector() noise.Detector { return n.detector }

// Now returns the current virtual time.
func (n *Node) Now() time.Duration { return n.clock.Now() }

// Sleep waits d of virtual time.
func (n *Node) Sleep(d time.Duration) error { return n.clock.Sleep(d) }

// Instruction returns the definition of op.
func (n *Node) Instruction(op Op) (Instruction, bool) {
	in, ok := n.instructions[op]
	return in, ok
}

// Instructions returns the operation set sorted by name.
func (n *Node) Instructions() []Instruction {
	out := make([]Instruction, 0, len(n.instructions))
	for _, in := range n.instructions {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Op < out[j].Op })
	return out
}

// Execute runs op on the given memory positions and returns its classical
// outcome, which is zero for non-measurement operations. The call takes the
// operation's duration in virtual time; operations that are not parallel
// also wait for the shared detector.
func (n *Node) Execute(op Op, positions ...int) (int, error) {
	in, ok := n.instructions[op]
	if !ok {
		return 0, fmt.Errorf("node %s: %w: %s", n.role, ErrUnsupportedOp, op)
	}
	if len(positions) != in.Arity {
		return 0, fmt.Errorf("node %s: %s acts on %d positions, got %d", n.role, op, in.Arity, len(positions))
	}
	if in.Arity == 2 && positions[0] == positions[1] {
		return 0, fmt.Errorf("node %s: %s needs two distinct positions, got %d twice", n.role, op, positions[0])
	}
	for _, pos := range positions {
		if err := n.memory.check(pos); err != nil {
			return 0, fmt.Errorf("node %s: %s: %w", n.role, op, err)
		}
		if op != OpInit && n.memory.slots[pos] == nil {
			return 0, fmt.Errorf("node %s: %s: %w: %d", n.role, op, ErrPositionEmpty, pos)
		}
	}

	now := n.clock.Now()
	start := now
	if !in.Parallel {
		if n.detectorFree > start {
			start = n.detectorFree
		}
		n.detectorFree = start + in.Duration
	}
	if err := n.clock.Sleep(start - now + in.Duration); err != nil {
		return 0, fmt.Errorf("node %s: %s: %w", n.role, op, err)
	}
	return n.apply(op, positions)
}

func (n *Node) apply(op Op, positions []int) (int, error) {
	if op == OpInit {
		q := n.memory.slots[positions[0]]
		if q == nil {
			q = &Qubit{id: n.ids.Add(1)}
			n.memory.slots[positions[0]] = q
		}
		q.reset()
		q.stored = n.clock.Now()
		return 0, nil
	}

	qs := make([]*Qubit, len(positions))
	for i, pos := range positions {
		q, err := n.memory.take(pos)
		if err != nil {
			return 0, fmt.Errorf("node %s: %s: %w", n.role, op, err)
		}
		qs[i] = q
	}

	switch op {
	case OpH:
		qs[0].applyH()
	case OpX:
		qs[0].applyX()
	case OpZ:
		qs[0].applyZ()
	case OpS:
		qs[0].applyS()
	case OpCNOT:
		applyCNOT(qs[0], qs[1])
	case OpMeasure:
		return measure(qs[0], BasisZ, n.rng), nil
	case OpMeasureX:
		return measure(qs[0], BasisX, n.rng), nil
	case OpMeasureBell:
		return n.detector.Apply(measureBell(qs[0], qs[1], n.rng), n.rng), nil
	}
	return 0, nil
}

// Port returns the port with the given name, e.g. "qlink_Bob".
func (n *Node) Port(name string) (*Port, error) {
	p, ok := n.ports[name]
	if !ok {
		return nil, fmt.Errorf("node %s: %w: %s", n.role, ErrUnknownPort, name)
	}
	return p, nil
}

// PortNames returns the node's port names in sorted order.
func (n *Node) PortNames() []string {
	names := make([]string, 0, len(n.ports))
	for name := range n.ports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (n *Node) port(kind PortKind, peer string) (*Port, error) {
	p, ok := n.ports[portName(kind, peer)]
	if !ok {
		return nil, fmt.Errorf("node %s: %w: %s (%s)", n.role, ErrUnknownPeer, peer, kind)
	}
	return p, nil
}

// SendClassical sends msg to peer over the classical link.
func (n *Node) SendClassical(peer string, msg any) error {
	p, err := n.port(Classical, peer)
	if err != nil {
		return err
	}
	return p.Send(msg)
}

// ReceiveClassical waits for the next classical message from peer.
func (n *Node) ReceiveClassical(peer string) (any, error) {
	p, err := n.port(Classical, peer)
	if err != nil {
		return nil, err
	}
	return p.Receive()
}

// SendQubit removes the qubit at pos from memory and sends it to peer.
func (n *Node) SendQubit(peer string, pos int) error {
	p, err := n.port(Quantum, peer)
	if err != nil {
		return err
	}
	q, err := n.memory.Pop(pos)
	if err != nil {
		return fmt.Errorf("node %s: %w", n.role, err)
	}
	return p.Send(q)
}

// ReceiveQubit waits for the next qubit from peer and stores it at pos.
// lost is true when the qubit did not survive the fibre; pos stays empty.
func (n *Node) ReceiveQubit(peer string, pos int) (lost bool, err error) {
	p, err := n.port(Quantum, peer)
	if err != nil {
		return false, err
	}
	if err := n.memory.check(pos); err != nil {
		return false, fmt.Errorf("node %s: %w", n.role, err)
	}
	v, err := p.Receive()
	if err != nil {
		return false, err
	}
	q, _ := v.(*Qubit)
	if q == nil {
		return true, nil
	}
	if err := n.memory.Put(pos, q); err != nil {
		return false, fmt.Errorf("node %s: %w", n.role, err)
	}
	return false, nil
}
