// Package roundtest runs single rounds against in-memory fixtures for the
// tests of role program modules.
package roundtest

import (
	"path/filepath"
	"testing"

	"github.com/vk/netround/internal/asset"
	"github.com/vk/netround/internal/network"
	"github.com/vk/netround/internal/noise"
	"github.com/vk/netround/internal/registry"
	"github.com/vk/netround/internal/round"
	"github.com/vk/netround/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

// Lossless are channel parameters of a fibre that never loses a qubit.
var Lossless = noise.Params{noise.ParamLossLength: cty.NumberIntVal(0)}

// Pair describes two roles on nodes n1 and n2 joined by one channel.
func Pair(a, b string, qubits int, channel noise.Params) *network.Descriptor {
	return &network.Descriptor{
		Roles: map[string]string{a: "n1", b: "n2"},
		Nodes: []network.NodeTemplate{
			{Slug: "n1", Qubits: qubits},
			{Slug: "n2", Qubits: qubits},
		},
		Channels: []network.ChannelTemplate{{Slug: "n1-n2", Parameters: channel}},
	}
}

// Run executes one round of d with the programs registered by modules.
// bindings map roles to program names.
func Run(t *testing.T, d *network.Descriptor, inputs map[string]string, bindings map[string]string, modules ...registry.Module) *round.Outcome {
	t.Helper()
	ctx, _ := testutil.NewContext(t)

	reg := registry.New()
	for _, m := range modules {
		m.Register(reg)
	}
	for role, program := range bindings {
		reg.Bind(role, program)
	}
	docs := asset.StaticInputs{}
	for role, doc := range inputs {
		docs[role] = []byte(doc)
	}

	root := filepath.Join(t.TempDir(), round.OutputDir)
	e := round.New(root, asset.StaticTopology{Descriptor: d}, docs, reg)
	return e.Run(ctx, 1)
}
