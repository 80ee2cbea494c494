// Package pingpong bounces classical messages between two roles and reports
// the virtual round-trip time.
package pingpong

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/netround/internal/registry"
)

const (
	PingProgram = "pingpong.ping"
	PongProgram = "pingpong.pong"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input is the parameter document of both roles.
type Input struct {
	Count int    `yaml:"count"`
	Peer  string `yaml:"peer"`
}

func (in *Input) count() int {
	if in.Count <= 0 {
		return 1
	}
	return in.Count
}

// OnRunPing sends Count numbered pings and waits for each echo.
func OnRunPing(_ context.Context, in *Input, rc *registry.RoleContext) (any, error) {
	peer := in.Peer
	if peer == "" {
		peer = "Pong"
	}
	var rtts []int64
	for i := 0; i < in.count(); i++ {
		sent := rc.Node.Now()
		if err := rc.Node.SendClassical(peer, i); err != nil {
			return nil, err
		}
		rc.Logger.Classical("PING", "Ping sent.", rc.Role, peer, i)

		v, err := rc.Node.ReceiveClassical(peer)
		if err != nil {
			return nil, err
		}
		if v != i {
			return nil, fmt.Errorf("ping %d answered with %v", i, v)
		}
		rtt := rc.Node.Now() - sent
		rc.Logger.Classical("PONG", "Echo received.", peer, rc.Role, v)
		rc.Logger.Node("RTT", "Round trip measured.", rtt.Nanoseconds())
		rtts = append(rtts, rtt.Nanoseconds())
	}
	return map[string]any{"exchanges": len(rtts), "rtt_ns": rtts}, nil
}

// OnRunPong echoes Count messages back to the peer.
func OnRunPong(_ context.Context, in *Input, rc *registry.RoleContext) (any, error) {
	peer := in.Peer
	if peer == "" {
		peer = "Ping"
	}
	var last time.Duration
	for i := 0; i < in.count(); i++ {
		v, err := rc.Node.ReceiveClassical(peer)
		if err != nil {
			return nil, err
		}
		rc.Logger.Classical("PING", "Ping received.", peer, rc.Role, v)
		if err := rc.Node.SendClassical(peer, v); err != nil {
			return nil, err
		}
		rc.Logger.Classical("PONG", "Echo sent.", rc.Role, peer, v)
		last = rc.Node.Now()
	}
	return map[string]any{"echoed": in.count(), "last_ns": last.Nanoseconds()}, nil
}

// Register registers the programs with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterProgram(registry.Typed(PingProgram, OnRunPing))
	r.RegisterProgram(registry.Typed(PongProgram, OnRunPong))
}
