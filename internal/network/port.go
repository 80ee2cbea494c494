package network

import (
	"errors"
	"fmt"
)

// PortKind distinguishes quantum and classical ports.
type PortKind int

const (
	Classical PortKind = iota
	Quantum
)

func (k PortKind) String() string {
	if k == Quantum {
		return "quantum"
	}
	return "classical"
}

// Port name prefixes. A node's port towards peer P is named prefix+P.
const (
	QuantumPortPrefix   = "qlink_"
	ClassicalPortPrefix = "clink_"
)

var (
	// ErrUnknownPeer is returned when a node has no link to the named peer.
	ErrUnknownPeer = errors.New("no link to peer")
	// ErrUnknownPort is returned by Node.Port for a name the node lacks.
	ErrUnknownPort = errors.New("unknown port")
	// ErrNotQubit is returned when a quantum port is handed something other
	// than a qubit.
	ErrNotQubit = errors.New("quantum ports only carry qubits")
)

// Port is a node's end of a link towards one peer. Each port has one
// outgoing and one incoming directional channel. A port is read by its own
// node's role task only.
type Port struct {
	name string
	kind PortKind
	peer string
	out  *channel
	in   *channel
}

func portName(kind PortKind, peer string) string {
	if kind == Quantum {
		return QuantumPortPrefix + peer
	}
	return ClassicalPortPrefix + peer
}

// Name returns the port name, e.g. "clink_Receiver".
func (p *Port) Name() string { return p.name }

// Kind returns whether the port is quantum or classical.
func (p *Port) Kind() PortKind { return p.kind }

// Peer returns the role at the other end.
func (p *Port) Peer() string { return p.peer }

// Send transmits v to the peer. Quantum ports take a *Qubit.
func (p *Port) Send(v any) error {
	if p.kind == Quantum {
		if q, ok := v.(*Qubit); !ok || q == nil {
			return fmt.Errorf("port %s: %w, got %T", p.name, ErrNotQubit, v)
		}
	}
	return p.out.send(v)
}

// Receive waits in virtual time for the next item from the peer. On a
// quantum port a lost qubit is received as nil.
func (p *Port) Receive() (any, error) {
	return p.in.receive()
}
