package network

import (
	"fmt"
	"math"
	"time"

	"github.com/vk/netround/internal/noise"
	"github.com/vk/netround/internal/simclock"
)

// SignalSpeed is the propagation speed in fibre, in km/s.
const SignalSpeed = 200000.0

// DefaultDistance is used for classical links when either node lacks
// coordinates, in km.
const DefaultDistance = 1.0

// PropagationDelay returns the virtual time a signal needs for lengthKm.
func PropagationDelay(lengthKm float64) time.Duration {
	if lengthKm <= 0 {
		return 0
	}
	return time.Duration(math.Round(lengthKm / SignalSpeed * float64(time.Second)))
}

// channel is one direction of a link. Items are delivered in send order: the
// in-flight queue is FIFO and every delivery event pops its head.
type channel struct {
	name   string
	clock  *simclock.Clock
	length float64
	delay  time.Duration

	// Quantum channels only.
	loss *noise.FibreLoss
	rng  noise.Source

	inflight []any
	inbox    []any
	waiter   *simclock.Waiter

	sent, lost int
}

func newChannel(name string, clock *simclock.Clock, lengthKm float64) *channel {
	return &channel{
		name:   name,
		clock:  clock,
		length: lengthKm,
		delay:  PropagationDelay(lengthKm),
	}
}

// send puts v on the wire. A lost qubit arrives as nil.
func (c *channel) send(v any) error {
	// The caller is runnable, so deliver cannot fire before the append.
	if err := c.clock.Schedule(c.delay, c.deliver); err != nil {
		return fmt.Errorf("sending on %s: %w", c.name, err)
	}
	if c.loss != nil && c.loss.Lost(c.length, c.rng) {
		v = nil
		c.lost++
	}
	c.sent++
	c.inflight = append(c.inflight, v)
	return nil
}

func (c *channel) deliver() {
	v := c.inflight[0]
	c.inflight[0] = nil
	c.inflight = c.inflight[1:]
	c.inbox = append(c.inbox, v)
	if w := c.waiter; w != nil {
		c.waiter = nil
		c.clock.Wake(w, nil)
	}
}

// receive blocks the caller in virtual time until an item arrives.
func (c *channel) receive() (any, error) {
	for len(c.inbox) == 0 {
		w := c.clock.NewWaiter()
		c.waiter = w
		if err := c.clock.Park(w); err != nil {
			c.waiter = nil
			return nil, fmt.Errorf("receiving on %s: %w", c.name, err)
		}
	}
	v := c.inbox[0]
	c.inbox[0] = nil
	c.inbox = c.inbox[1:]
	return v, nil
}

