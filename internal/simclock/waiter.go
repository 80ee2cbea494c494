package simclock

import "time"

// Waiter is a single suspension point of a task. A task parks on a Waiter
// and an event handler wakes it.
type Waiter struct {
	ch    chan error
	woken bool
}

// NewWaiter returns a fresh, unwoken Waiter.
func (c *Clock) NewWaiter() *Waiter {
	return &Waiter{ch: make(chan error, 1)}
}

// Park suspends the calling task until w is woken. The task stops counting
// as runnable while parked.
func (c *Clock) Park(w *Waiter) error {
	c.mu.Lock()
	if w.woken {
		c.mu.Unlock()
		return <-w.ch
	}
	switch c.phase {
	case phaseDrained:
		c.mu.Unlock()
		return ErrSimulationEnded
	case phaseStopped:
		c.mu.Unlock()
		return ErrClockStopped
	}
	c.parked[w] = struct{}{}
	c.runnable--
	if c.runnable <= 0 {
		c.quiet.Broadcast()
	}
	c.mu.Unlock()
	return <-w.ch
}

// Wake resumes a task parked on w, handing it err. Waking an already woken
// Waiter is a no-op. Called from event handlers.
func (c *Clock) Wake(w *Waiter, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w.woken {
		return
	}
	w.woken = true
	if _, ok := c.parked[w]; ok {
		delete(c.parked, w)
		c.runnable++
	}
	w.ch <- err
}

// Sleep suspends the calling task for d of virtual time.
func (c *Clock) Sleep(d time.Duration) error {
	w := c.NewWaiter()
	if err := c.Schedule(d, func() { c.Wake(w, nil) }); err != nil {
		return err
	}
	return c.Park(w)
}
