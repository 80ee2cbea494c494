// Package asset loads the inputs of an experiment from disk: the network
// asset describing roles, node templates and channel templates, and one
// parameter document per role.
package asset

import (
	"context"

	"github.com/vk/netround/internal/network"
)

// TopologyProvider supplies the network descriptor a round is built from.
type TopologyProvider interface {
	Network(ctx context.Context) (*network.Descriptor, error)
}

// InputProvider supplies the raw parameter document of a role.
type InputProvider interface {
	Document(ctx context.Context, role string) ([]byte, error)
}

// Asset is a loaded network asset.
type Asset struct {
	Network *network.Descriptor
	// Programs maps roles to the program names they explicitly bind.
	Programs map[string]string
	// Commands maps roles to external simulator command lines.
	Commands map[string][]string
}

// StaticTopology serves a descriptor built in memory.
type StaticTopology struct {
	Descriptor *network.Descriptor
}

// Network implements TopologyProvider.
func (s StaticTopology) Network(context.Context) (*network.Descriptor, error) {
	return s.Descriptor, nil
}
