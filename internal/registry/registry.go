package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/vk/netround/internal/network"
	"github.com/vk/netround/internal/roundlog"
)

// ErrProgramNotFound is returned when a role resolves to no program.
var ErrProgramNotFound = errors.New("program not found")

// Module is the interface that all program modules must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// RoleContext is everything a role program gets injected for one round.
type RoleContext struct {
	Role   string
	Round  int
	Node   *network.Node
	Logger *roundlog.Logger
}

// Func is the entry point of a role program. input is the value produced
// by the program's Decode.
type Func func(ctx context.Context, input any, rc *RoleContext) (any, error)

// Program is a resolvable role program.
type Program struct {
	Name string
	// Decode turns the role's raw parameter document into the program input.
	// It runs before any role starts.
	Decode func(doc []byte) (any, error)
	Run    Func
}

// Loader resolves the program of a role.
type Loader interface {
	Resolve(role string) (*Program, error)
}

// Registry holds the programs and role bindings of a single application
// instance.
type Registry struct {
	mu       sync.RWMutex
	programs map[string]*Program
	bindings map[string]string
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		programs: make(map[string]*Program),
		bindings: make(map[string]string),
	}
}

// RegisterProgram adds p under p.Name. Registering a name twice is a
// programming error and panics.
func (r *Registry) RegisterProgram(p *Program) {
	if p == nil || p.Name == "" || p.Run == nil {
		panic("registry: program needs a name and a Run function")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.programs[p.Name]; exists {
		panic(fmt.Sprintf("program with name '%s' already registered", p.Name))
	}
	slog.Debug("Registering program.", "name", p.Name)
	r.programs[p.Name] = p
}

// Bind makes role resolve to the named program.
func (r *Registry) Bind(role, program string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[role] = program
}

// Resolve implements Loader.
func (r *Registry) Resolve(role string) (*Program, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name := role
	if bound, ok := r.bindings[role]; ok {
		name = bound
	}
	p, ok := r.programs[name]
	if !ok {
		return nil, fmt.Errorf("%w: role %q (program %q)", ErrProgramNotFound, role, name)
	}
	return p, nil
}

// Programs returns the registered program names in sorted order.
func (r *Registry) Programs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.programs))
	for name := range r.programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the program registered under name.
func (r *Registry) Lookup(name string) (*Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[name]
	return p, ok
}
