package network

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/vk/netround/internal/ctxlog"
	"github.com/vk/netround/internal/noise"
	"github.com/vk/netround/internal/simclock"
)

var (
	// ErrNoRoles is returned when the descriptor maps no roles.
	ErrNoRoles = errors.New("network declares no roles")
	// ErrNoTemplate is returned when a role references an unknown node slug.
	ErrNoTemplate = errors.New("no node template matches slug")
	// ErrAmbiguousTemplate is returned when more than one node template
	// carries the referenced slug.
	ErrAmbiguousTemplate = errors.New("more than one node template matches slug")
)

// NodeTemplate is a catalog entry describing a physical node.
type NodeTemplate struct {
	Slug        string
	Qubits      int
	Coordinates *Coordinates
	Parameters  noise.Params
}

// ChannelTemplate is a catalog entry describing a quantum channel. Its slug
// names the two node slugs it connects, "<a>-<b>" in either order.
type ChannelTemplate struct {
	Slug       string
	Parameters noise.Params
}

// Descriptor is everything needed to build a round's topology.
type Descriptor struct {
	// Roles maps each role to the slug of its node template.
	Roles    map[string]string
	Nodes    []NodeTemplate
	Channels []ChannelTemplate
}

// Link connects two roles. Every link is classical; it is also quantum when
// a channel template matched the pair.
type Link struct {
	// A and B are the two roles, A < B.
	A, B string
	// Distance is the length used for both channel kinds, in km.
	Distance float64
	// Measured is false when the distance is DefaultDistance because a node
	// has no coordinates.
	Measured bool
	// ChannelSlug is the matching channel template, empty if none.
	ChannelSlug string
	// Loss is shared by both quantum directions; nil without a quantum
	// channel.
	Loss *noise.FibreLoss
}

// Quantum reports whether the link carries a quantum channel.
func (l *Link) Quantum() bool { return l.Loss != nil }

// Topology is the fully connected network of one round. It is immutable
// once built; only qubit memories and channel queues change state.
type Topology struct {
	roles []string
	nodes map[string]*Node
	links []*Link
}

// Roles returns the role names in sorted order.
func (t *Topology) Roles() []string {
	return append([]string(nil), t.roles...)
}

// Node returns the node of role.
func (t *Topology) Node(role string) (*Node, bool) {
	n, ok := t.nodes[role]
	return n, ok
}

// Links returns every link, ordered by role pair.
func (t *Topology) Links() []*Link {
	return append([]*Link(nil), t.links...)
}

// Link returns the link between two roles in either order.
func (t *Topology) Link(a, b string) (*Link, bool) {
	if a > b {
		a, b = b, a
	}
	for _, l := range t.links {
		if l.A == a && l.B == b {
			return l, true
		}
	}
	return nil, false
}

// QuantumLinks counts the links carrying a quantum channel.
func (t *Topology) QuantumLinks() int {
	count := 0
	for _, l := range t.links {
		if l.Quantum() {
			count++
		}
	}
	return count
}

// RoleTable maps each role to its physical node identity.
func (t *Topology) RoleTable() map[string]string {
	table := make(map[string]string, len(t.nodes))
	for role, n := range t.nodes {
		table[role] = n.slug
	}
	return table
}

// Option configures Build.
type Option func(*builder)

// WithSources replaces the random stream factory. Streams are requested per
// node and per quantum channel direction.
func WithSources(fn func(name string) noise.Source) Option {
	return func(b *builder) {
		if fn != nil {
			b.source = fn
		}
	}
}

type builder struct {
	clock  *simclock.Clock
	source func(name string) noise.Source
	ids    atomic.Uint64
}

// Build constructs the topology described by d on clock. It fails before
// anything is simulated when a role cannot be resolved to exactly one node
// template. Malformed noise parameters never fail the build.
func Build(ctx context.Context, clock *simclock.Clock, d *Descriptor, opts ...Option) (*Topology, error) {
	logger := ctxlog.FromContext(ctx)
	if d == nil || len(d.Roles) == 0 {
		return nil, ErrNoRoles
	}

	b := &builder{clock: clock, source: noise.NewStream}
	for _, opt := range opts {
		opt(b)
	}

	t := &Topology{nodes: make(map[string]*Node, len(d.Roles))}
	for role := range d.Roles {
		t.roles = append(t.roles, role)
	}
	sort.Strings(t.roles)

	templates := make(map[string]NodeTemplate, len(t.roles))
	for _, role := range t.roles {
		tmpl, err := resolveTemplate(d.Nodes, d.Roles[role])
		if err != nil {
			return nil, fmt.Errorf("role %q: %w", role, err)
		}
		if tmpl.Qubits < 0 {
			return nil, fmt.Errorf("role %q: node template %q has negative qubit count %d", role, tmpl.Slug, tmpl.Qubits)
		}
		templates[role] = tmpl
		t.nodes[role] = b.node(ctx, role, tmpl)
		logger.Debug("Node built.", "role", role, "node", tmpl.Slug, "qubits", tmpl.Qubits)
	}

	for i, a := range t.roles {
		for _, c := range t.roles[i+1:] {
			t.links = append(t.links, b.link(ctx, t.nodes[a], t.nodes[c], templates[a], templates[c], d.Channels))
		}
	}

	logger.Info("Network topology built.",
		"nodes", len(t.nodes),
		"classical_links", len(t.links),
		"quantum_links", t.QuantumLinks(),
	)
	return t, nil
}

func resolveTemplate(catalog []NodeTemplate, slug string) (NodeTemplate, error) {
	var found []NodeTemplate
	for _, tmpl := range catalog {
		if tmpl.Slug == slug {
			found = append(found, tmpl)
		}
	}
	switch len(found) {
	case 0:
		return NodeTemplate{}, fmt.Errorf("%w %q", ErrNoTemplate, slug)
	case 1:
		return found[0], nil
	default:
		return NodeTemplate{}, fmt.Errorf("%w %q (%d)", ErrAmbiguousTemplate, slug, len(found))
	}
}

func (b *builder) node(ctx context.Context, role string, tmpl NodeTemplate) *Node {
	logger := ctxlog.FromContext(ctx)

	depolar, reason := noise.ResolveDepolar(tmpl.Parameters)
	if reason != nil {
		logger.Debug("Using perfect qubit memory.", "role", role, "node", tmpl.Slug, "reason", reason)
	}
	detector, reason := noise.ResolveDetector(tmpl.Parameters)
	if reason != nil {
		logger.Debug("Using perfect detector.", "role", role, "node", tmpl.Slug, "reason", reason)
	}

	rng := b.source("node/" + role)
	instructions := make(map[Op]Instruction)
	for _, in := range DefaultInstructions() {
		instructions[in.Op] = in
	}

	var coords *Coordinates
	if tmpl.Coordinates != nil {
		c := *tmpl.Coordinates
		coords = &c
	}

	return &Node{
		role:         role,
		slug:         tmpl.Slug,
		coordinates:  coords,
		clock:        b.clock,
		memory:       newMemory(tmpl.Qubits, depolar, rng, b.clock.Now),
		instructions: instructions,
		detector:     detector,
		rng:          rng,
		ids:          &b.ids,
		ports:        make(map[string]*Port),
	}
}

func (b *builder) link(ctx context.Context, x, y *Node, tx, ty NodeTemplate, channels []ChannelTemplate) *Link {
	logger := ctxlog.FromContext(ctx)

	l := &Link{A: x.role, B: y.role, Distance: DefaultDistance}
	if tx.Coordinates != nil && ty.Coordinates != nil {
		l.Distance = Distance(*tx.Coordinates, *ty.Coordinates)
		l.Measured = true
	}

	for _, ch := range channels {
		if ch.Slug != tx.Slug+"-"+ty.Slug && ch.Slug != ty.Slug+"-"+tx.Slug {
			continue
		}
		loss, reason := noise.ResolveFibreLoss(ch.Parameters)
		if reason != nil {
			logger.Warn("Malformed fibre loss parameters, using defaults.", "channel", ch.Slug, "reason", reason)
		}
		l.ChannelSlug = ch.Slug
		l.Loss = &loss
		b.connect(Quantum, x, y, l)
		break
	}
	b.connect(Classical, x, y, l)

	logger.Debug("Link built.",
		"a", l.A, "b", l.B,
		"distance_km", l.Distance,
		"quantum", l.Quantum(),
		"channel", l.ChannelSlug,
	)
	return l
}

// connect creates both directions of one link kind and the ports on x and y.
func (b *builder) connect(kind PortKind, x, y *Node, l *Link) {
	xy := newChannel(fmt.Sprintf("%s[%s to %s]", kind, x.role, y.role), b.clock, l.Distance)
	yx := newChannel(fmt.Sprintf("%s[%s to %s]", kind, y.role, x.role), b.clock, l.Distance)
	if kind == Quantum {
		xy.loss, xy.rng = l.Loss, b.source("qchannel/"+x.role+"/"+y.role)
		yx.loss, yx.rng = l.Loss, b.source("qchannel/"+y.role+"/"+x.role)
	}
	x.ports[portName(kind, y.role)] = &Port{name: portName(kind, y.role), kind: kind, peer: y.role, out: xy, in: yx}
	y.ports[portName(kind, x.role)] = &Port{name: portName(kind, x.role), kind: kind, peer: x.role, out: yx, in: xy}
}
