// Package teleport implements one-qubit quantum teleportation between a
// Sender and a Receiver role.
package teleport

import (
	"context"
	"fmt"

	"github.com/vk/netround/internal/ctxlog"
	"github.com/vk/netround/internal/network"
	"github.com/vk/netround/internal/registry"
)

const (
	SenderProgram   = "teleport.sender"
	ReceiverProgram = "teleport.receiver"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// SenderInput is the parameter document of the sending role.
type SenderInput struct {
	// State is one of "0", "1", "+" or "-".
	State string `yaml:"state"`
	Peer  string `yaml:"peer"`
}

// ReceiverInput is the parameter document of the receiving role.
type ReceiverInput struct {
	// Basis is "Z" or "X". Empty measures in Z.
	Basis string `yaml:"basis"`
	Peer  string `yaml:"peer"`
}

const (
	posState = 0
	posHalf  = 1
	posSent  = 2
)

// prepare puts the qubit at pos into the requested single-qubit state.
func prepare(n *network.Node, pos int, state string) error {
	var ops []network.Op
	switch state {
	case "", "0":
	case "1":
		ops = []network.Op{network.OpX}
	case "+":
		ops = []network.Op{network.OpH}
	case "-":
		ops = []network.Op{network.OpX, network.OpH}
	default:
		return fmt.Errorf("unsupported state %q", state)
	}
	if _, err := n.Execute(network.OpInit, pos); err != nil {
		return err
	}
	for _, op := range ops {
		if _, err := n.Execute(op, pos); err != nil {
			return err
		}
	}
	return nil
}

// OnRunSender prepares the state, shares a Bell pair with the peer,
// performs the Bell-state measurement and sends its outcome.
func OnRunSender(ctx context.Context, in *SenderInput, rc *registry.RoleContext) (any, error) {
	logger := ctxlog.FromContext(ctx)
	peer := in.Peer
	if peer == "" {
		peer = "Receiver"
	}
	n := rc.Node

	if err := prepare(n, posState, in.State); err != nil {
		return nil, err
	}
	rc.Logger.Node("PREPARE", "State prepared.", in.State)

	if err := prepare(n, posHalf, "+"); err != nil {
		return nil, err
	}
	if _, err := n.Execute(network.OpInit, posSent); err != nil {
		return nil, err
	}
	if _, err := n.Execute(network.OpCNOT, posHalf, posSent); err != nil {
		return nil, err
	}
	rc.Logger.Node("EPR", "Bell pair created.", nil)

	if err := n.SendQubit(peer, posSent); err != nil {
		return nil, err
	}
	rc.Logger.Quantum("SEND_QUBIT", "Half of the Bell pair sent.", rc.Role, peer)

	m, err := n.Execute(network.OpMeasureBell, posState, posHalf)
	if err != nil {
		return nil, err
	}
	rc.Logger.Node("MEASURE_BELL", "Bell-state measurement done.", m)

	if err := n.SendClassical(peer, m); err != nil {
		return nil, err
	}
	rc.Logger.Classical("SEND", "Corrections sent.", rc.Role, peer, m)
	logger.Debug("Teleportation sent.", "state", in.State, "bsm", m)

	return map[string]any{"bsm": m}, nil
}

// OnRunReceiver applies the corrections to the received qubit and measures
// it.
func OnRunReceiver(ctx context.Context, in *ReceiverInput, rc *registry.RoleContext) (any, error) {
	peer := in.Peer
	if peer == "" {
		peer = "Sender"
	}
	op := network.OpMeasure
	switch in.Basis {
	case "", "Z":
	case "X":
		op = network.OpMeasureX
	default:
		return nil, fmt.Errorf("unsupported basis %q", in.Basis)
	}
	n := rc.Node

	lost, err := n.ReceiveQubit(peer, 0)
	if err != nil {
		return nil, err
	}
	if lost {
		rc.Logger.Quantum("RECV_QUBIT", "Qubit lost in fibre.", peer, rc.Role)
	} else {
		rc.Logger.Quantum("RECV_QUBIT", "Qubit received.", peer, rc.Role)
	}

	v, err := n.ReceiveClassical(peer)
	if err != nil {
		return nil, err
	}
	m, ok := v.(int)
	if !ok {
		return nil, fmt.Errorf("unexpected correction message %v", v)
	}
	rc.Logger.Classical("RECV", "Corrections received.", peer, rc.Role, m)
	if lost {
		return map[string]any{"lost": true}, nil
	}

	if m&1 == 1 {
		if _, err := n.Execute(network.OpX, 0); err != nil {
			return nil, err
		}
	}
	if m&2 == 2 {
		if _, err := n.Execute(network.OpZ, 0); err != nil {
			return nil, err
		}
	}
	result, err := n.Execute(op, 0)
	if err != nil {
		return nil, err
	}
	rc.Logger.Node(string(op), "Teleported qubit measured.", result)
	ctxlog.FromContext(ctx).Debug("Teleportation received.", "bsm", m, "result", result)

	return map[string]any{"lost": false, "measurement": result}, nil
}

// Register registers the programs with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterProgram(registry.Typed(SenderProgram, OnRunSender))
	r.RegisterProgram(registry.Typed(ReceiverProgram, OnRunReceiver))
}
