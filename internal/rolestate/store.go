package rolestate

import (
	"sort"
	"sync"
)

// Status is the execution status of a role.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Failure is the first error observed in a round.
type Failure struct {
	Role string
	Err  error
}

// Store holds role state for one round.
type Store struct {
	states  sync.Map // role -> Status
	outputs sync.Map // role -> any
	errors  sync.Map // role -> error

	mu    sync.Mutex
	first *Failure
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// SetStatus updates the status of role.
func (s *Store) SetStatus(role string, status Status) {
	s.states.Store(role, status)
}

// Status returns the status of role, StatusPending if never set.
func (s *Store) Status(role string) Status {
	v, ok := s.states.Load(role)
	if !ok {
		return StatusPending
	}
	return v.(Status)
}

// Complete records the output of role and marks it completed.
func (s *Store) Complete(role string, output any) {
	s.outputs.Store(role, output)
	s.SetStatus(role, StatusCompleted)
}

// Output returns the recorded output of role.
func (s *Store) Output(role string) (any, bool) {
	return s.outputs.Load(role)
}

// Fail records err for role and marks it failed. It reports whether this is
// the first failure of the round.
func (s *Store) Fail(role string, err error) bool {
	s.errors.Store(role, err)
	s.SetStatus(role, StatusFailed)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.first != nil {
		return false
	}
	s.first = &Failure{Role: role, Err: err}
	return true
}

// Error returns the recorded error of role.
func (s *Store) Error(role string) error {
	v, ok := s.errors.Load(role)
	if !ok {
		return nil
	}
	return v.(error)
}

// FirstFailure returns the first failure recorded, or nil.
func (s *Store) FirstFailure() *Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.first == nil {
		return nil
	}
	f := *s.first
	return &f
}

// Outputs returns the outputs of every completed role.
func (s *Store) Outputs() map[string]any {
	out := make(map[string]any)
	s.outputs.Range(func(k, v any) bool {
		out[k.(string)] = v
		return true
	})
	return out
}

// Roles returns every role with a status, sorted.
func (s *Store) Roles() []string {
	var roles []string
	s.states.Range(func(k, _ any) bool {
		roles = append(roles, k.(string))
		return true
	})
	sort.Strings(roles)
	return roles
}
