// Package simclock provides the discrete-event virtual clock shared by every
// role task of a round.
//
// The clock wraps an evtm.EventManager. Role tasks run on their own
// goroutines, but the clock only processes an event once every attached task
// is either parked on a Waiter or finished. Event handlers therefore never
// race with role code, and everything a handler touches (channel queues,
// qubit memories) needs no extra locking.
package simclock

import (
	"errors"
	"sync"
	"time"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// DefaultHorizon bounds how far Drain advances virtual time.
const DefaultHorizon = 24 * time.Hour

var (
	// ErrAlreadyDrained is returned when Drain is issued more than once.
	ErrAlreadyDrained = errors.New("simclock: drain already issued")
	// ErrSimulationEnded is returned to tasks still waiting when the event
	// queue runs empty or the horizon is reached.
	ErrSimulationEnded = errors.New("simclock: simulation ended while task was waiting")
	// ErrClockStopped is returned to waiting or scheduling tasks after Stop.
	ErrClockStopped = errors.New("simclock: clock stopped")
)

type phase int

const (
	phaseSubmitting phase = iota
	phaseDraining
	phaseDrained
	phaseStopped
)

// Clock is the virtual time authority for one round. It must not be reused
// across rounds.
type Clock struct {
	mgr     *evtm.EventManager
	horizon time.Duration

	mu        sync.Mutex
	quiet     *sync.Cond
	now       time.Duration
	phase     phase
	runnable  int
	parked    map[*Waiter]struct{}
	processed int
}

// Option configures a Clock.
type Option func(*Clock)

// WithHorizon sets the maximum virtual time Drain advances to.
func WithHorizon(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.horizon = d
		}
	}
}

// New creates a clock at virtual time zero.
func New(opts ...Option) *Clock {
	c := &Clock{
		mgr:     evtm.New(),
		horizon: DefaultHorizon,
		parked:  make(map[*Waiter]struct{}),
	}
	c.quiet = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the current virtual time.
func (c *Clock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Processed returns the number of events handled so far.
func (c *Clock) Processed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed
}

// Attach registers a task that is about to start running against the clock.
// It must be called before the task goroutine is started.
func (c *Clock) Attach() {
	c.mu.Lock()
	c.runnable++
	c.mu.Unlock()
}

// Detach marks an attached task as finished.
func (c *Clock) Detach() {
	c.mu.Lock()
	c.runnable--
	if c.runnable <= 0 {
		c.quiet.Broadcast()
	}
	c.mu.Unlock()
}

// event is the payload handed to the event manager.
type event struct {
	at time.Duration
	fn func()
}

// Schedule arranges for fn to run at Now()+delay. fn runs on the draining
// goroutine while all tasks are parked; it must not block.
func (c *Clock) Schedule(delay time.Duration, fn func()) error {
	if delay < 0 {
		delay = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.phase {
	case phaseDrained:
		return ErrSimulationEnded
	case phaseStopped:
		return ErrClockStopped
	}
	ev := &event{at: c.now + delay, fn: fn}
	c.mgr.Schedule(c, ev, c.handle, vrtime.SecondsToTime(delay.Seconds()))
	return nil
}

// handle is the evtm handler for every event scheduled through the clock.
func (c *Clock) handle(_ *evtm.EventManager, _ any, data any) any {
	ev := data.(*event)

	c.mu.Lock()
	if c.phase == phaseStopped {
		c.mu.Unlock()
		return nil
	}
	if ev.at > c.now {
		c.now = ev.at
	}
	c.processed++
	c.mu.Unlock()

	ev.fn()
	c.settle()
	return nil
}

// settle blocks until every attached task is parked or finished.
func (c *Clock) settle() {
	c.mu.Lock()
	for c.runnable > 0 && c.phase != phaseStopped {
		c.quiet.Wait()
	}
	c.mu.Unlock()
}

// Drain waits until every attached task has reached its first suspension
// point, then processes events until the queue is empty or the horizon is
// reached. Tasks still parked afterwards are released with
// ErrSimulationEnded. Drain may be issued once per clock.
func (c *Clock) Drain() error {
	c.mu.Lock()
	if c.phase != phaseSubmitting {
		c.mu.Unlock()
		return ErrAlreadyDrained
	}
	c.phase = phaseDraining
	c.mu.Unlock()

	c.settle()

	c.mu.Lock()
	stopped := c.phase == phaseStopped
	c.mu.Unlock()
	if !stopped {
		c.mgr.Run(c.horizon.Seconds())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == phaseDraining {
		c.phase = phaseDrained
	}
	c.releaseLocked(ErrSimulationEnded)
	return nil
}

// Stop abandons the clock. Parked tasks are released with ErrClockStopped
// and no further events are processed.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = phaseStopped
	c.releaseLocked(ErrClockStopped)
	c.quiet.Broadcast()
}

func (c *Clock) releaseLocked(err error) {
	for w := range c.parked {
		delete(c.parked, w)
		c.runnable++
		w.woken = true
		w.ch <- err
	}
}
