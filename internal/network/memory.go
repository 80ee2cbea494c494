package network

import (
	"errors"
	"fmt"
	"time"

	"github.com/vk/netround/internal/noise"
)

var (
	// ErrPositionOutOfRange is returned for a memory position the node does
	// not have.
	ErrPositionOutOfRange = errors.New("memory position out of range")
	// ErrPositionEmpty is returned when an operation needs a qubit at an
	// empty position.
	ErrPositionEmpty = errors.New("memory position is empty")
	// ErrPositionInUse is returned when writing to an occupied position.
	ErrPositionInUse = errors.New("memory position in use")
)

// Memory is a node's set of qubit slots. Stored qubits depolarize with the
// node's memory noise model while they sit in a slot.
type Memory struct {
	slots []*Qubit
	noise noise.Depolar
	rng   noise.Source
	now   func() time.Duration
}

func newMemory(size int, m noise.Depolar, rng noise.Source, now func() time.Duration) *Memory {
	return &Memory{slots: make([]*Qubit, size), noise: m, rng: rng, now: now}
}

// Size returns the number of positions.
func (m *Memory) Size() int { return len(m.slots) }

// Noise returns the memory noise model.
func (m *Memory) Noise() noise.Depolar { return m.noise }

// Free returns the empty positions in ascending order.
func (m *Memory) Free() []int {
	var free []int
	for i, q := range m.slots {
		if q == nil {
			free = append(free, i)
		}
	}
	return free
}

func (m *Memory) check(pos int) error {
	if pos < 0 || pos >= len(m.slots) {
		return fmt.Errorf("%w: %d (size %d)", ErrPositionOutOfRange, pos, len(m.slots))
	}
	return nil
}

// Put writes q into an empty position.
func (m *Memory) Put(pos int, q *Qubit) error {
	if err := m.check(pos); err != nil {
		return err
	}
	if m.slots[pos] != nil {
		return fmt.Errorf("%w: %d", ErrPositionInUse, pos)
	}
	if q == nil {
		return fmt.Errorf("cannot store a lost qubit at position %d", pos)
	}
	q.stored = m.now()
	m.slots[pos] = q
	return nil
}

// Peek returns the qubit at pos without removing it, or nil.
func (m *Memory) Peek(pos int) (*Qubit, error) {
	if err := m.check(pos); err != nil {
		return nil, err
	}
	q := m.slots[pos]
	if q != nil {
		m.age(q)
	}
	return q, nil
}

// Pop removes and returns the qubit at pos.
func (m *Memory) Pop(pos int) (*Qubit, error) {
	q, err := m.take(pos)
	if err != nil {
		return nil, err
	}
	m.slots[pos] = nil
	return q, nil
}

// take returns the aged qubit at pos, failing when the slot is empty.
func (m *Memory) take(pos int) (*Qubit, error) {
	if err := m.check(pos); err != nil {
		return nil, err
	}
	q := m.slots[pos]
	if q == nil {
		return nil, fmt.Errorf("%w: %d", ErrPositionEmpty, pos)
	}
	m.age(q)
	return q, nil
}

// age applies memory noise for the time q has been stored since it was last
// touched.
func (m *Memory) age(q *Qubit) {
	now := m.now()
	p := m.noise.Probability(now - q.stored)
	q.stored = now
	if p > 0 && m.rng.RandU01() < p {
		q.depolarize()
	}
}
