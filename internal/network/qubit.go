package network

import (
	"time"

	"github.com/vk/netround/internal/noise"
)

// Basis is the measurement basis a product-state qubit is an eigenstate of.
type Basis int

const (
	BasisZ Basis = iota
	BasisX
	BasisY
)

func (b Basis) String() string {
	switch b {
	case BasisX:
		return "X"
	case BasisY:
		return "Y"
	default:
		return "Z"
	}
}

// Bell state indices. Bit 0 is the bit flip, bit 1 the phase flip.
const (
	BellPhiPlus  = 0
	BellPsiPlus  = 1
	BellPhiMinus = 2
	BellPsiMinus = 3
)

// pair is the shared state of two maximally entangled qubits.
type pair struct {
	a, b *Qubit
	bell int
}

func (p *pair) partner(q *Qubit) *Qubit {
	if p.a == q {
		return p.b
	}
	return p.a
}

// Qubit is a tracked quantum state. Only stabilizer states reachable with
// the supported instruction set are tracked exactly: eigenstates of Z, X and
// Y and two-qubit Bell pairs. Anything else degrades to a maximally mixed
// state, whose measurements are uniformly random.
type Qubit struct {
	id     uint64
	basis  Basis
	value  int
	mixed  bool
	pair   *pair
	stored time.Duration
}

// ID returns the identifier the qubit was created with.
func (q *Qubit) ID() uint64 { return q.id }

// Entangled reports whether q is half of a tracked Bell pair.
func (q *Qubit) Entangled() bool { return q.pair != nil }

// Partner returns the other half of q's Bell pair, if any.
func (q *Qubit) Partner() *Qubit {
	if q.pair == nil {
		return nil
	}
	return q.pair.partner(q)
}

// BellIndex returns the Bell state index of q's pair, or -1.
func (q *Qubit) BellIndex() int {
	if q.pair == nil {
		return -1
	}
	return q.pair.bell
}

// State returns the basis and eigenvalue of a product-state qubit. ok is
// false for entangled or mixed qubits.
func (q *Qubit) State() (basis Basis, value int, ok bool) {
	if q.pair != nil || q.mixed {
		return 0, 0, false
	}
	return q.basis, q.value, true
}

func (q *Qubit) reset() {
	q.breakPair()
	q.basis, q.value, q.mixed = BasisZ, 0, false
}

// breakPair turns both halves of q's pair into mixed states.
func (q *Qubit) breakPair() {
	if q.pair == nil {
		return
	}
	p := q.pair.partner(q)
	p.pair, p.mixed = nil, true
	q.pair, q.mixed = nil, true
}

func (q *Qubit) depolarize() {
	q.breakPair()
	q.mixed = true
}

func (q *Qubit) applyX() {
	switch {
	case q.pair != nil:
		q.pair.bell ^= 1
	case q.mixed:
	case q.basis == BasisZ, q.basis == BasisY:
		q.value ^= 1
	}
}

func (q *Qubit) applyZ() {
	switch {
	case q.pair != nil:
		q.pair.bell ^= 2
	case q.mixed:
	case q.basis == BasisX, q.basis == BasisY:
		q.value ^= 1
	}
}

func (q *Qubit) applyH() {
	switch {
	case q.pair != nil:
		q.breakPair()
	case q.mixed:
	case q.basis == BasisZ:
		q.basis = BasisX
	case q.basis == BasisX:
		q.basis = BasisZ
	case q.basis == BasisY:
		q.value ^= 1
	}
}

func (q *Qubit) applyS() {
	switch {
	case q.pair != nil:
		q.breakPair()
	case q.mixed:
	case q.basis == BasisX:
		q.basis = BasisY
	case q.basis == BasisY:
		q.basis, q.value = BasisX, q.value^1
	}
}

// applyCNOT applies a controlled-X from control onto target.
func applyCNOT(control, target *Qubit) {
	cb, cv, cok := control.State()
	tb, tv, tok := target.State()
	switch {
	case cok && cb == BasisZ:
		if cv == 1 {
			target.applyX()
		}
	case cok && cb == BasisX && tok && tb == BasisZ:
		p := &pair{a: control, b: target, bell: tv | cv<<1}
		control.pair, target.pair = p, p
	case cok && cb == BasisX && tok && tb == BasisX:
		control.value ^= tv
	default:
		control.depolarize()
		target.depolarize()
	}
}

// measure collapses q in basis b and returns the outcome.
func measure(q *Qubit, b Basis, src noise.Source) int {
	switch {
	case q.pair != nil:
		p := q.pair
		partner := p.partner(q)
		out := noise.Intn(src, 2)
		q.pair, partner.pair = nil, nil
		q.basis, q.value = b, out
		partner.basis = b
		switch b {
		case BasisZ:
			partner.value = out ^ (p.bell & 1)
		case BasisX:
			partner.value = out ^ (p.bell >> 1)
		default:
			partner.mixed = true
		}
		return out
	case q.mixed || q.basis != b:
		q.mixed = false
		q.basis, q.value = b, noise.Intn(src, 2)
		return q.value
	default:
		return q.value
	}
}

// measureBell performs a Bell-state measurement on q1 and q2 and returns the
// ideal outcome index. States held by partners are swapped or teleported.
func measureBell(q1, q2 *Qubit, src noise.Source) int {
	switch {
	case q1.pair != nil && q1.pair == q2.pair:
		m := q1.pair.bell
		q1.pair, q2.pair = nil, nil
		q1.mixed, q2.mixed = true, true
		return m
	case q1.pair != nil && q2.pair != nil:
		m := noise.Intn(src, 4)
		r1, r2 := q1.Partner(), q2.Partner()
		p := &pair{a: r1, b: r2, bell: m ^ q1.pair.bell ^ q2.pair.bell}
		r1.pair, r2.pair = p, p
		q1.pair, q2.pair = nil, nil
		q1.mixed, q2.mixed = true, true
		return m
	case q2.pair != nil && q1.pair == nil:
		return teleport(q1, q2, src)
	case q1.pair != nil && q2.pair == nil:
		return teleport(q2, q1, src)
	default:
		q1.depolarize()
		q2.depolarize()
		return noise.Intn(src, 4)
	}
}

// teleport moves the state of state onto the partner of half.
func teleport(state, half *Qubit, src noise.Source) int {
	m := noise.Intn(src, 4)
	remote := half.Partner()
	s := m ^ half.pair.bell
	half.pair, remote.pair = nil, nil
	if state.mixed {
		remote.mixed = true
	} else {
		remote.mixed = false
		remote.basis = state.basis
		remote.value = state.value
		if remote.basis != BasisX && s&1 == 1 {
			remote.value ^= 1
		}
		if remote.basis != BasisZ && s&2 == 2 {
			remote.value ^= 1
		}
	}
	state.mixed, half.mixed = true, true
	return m
}
