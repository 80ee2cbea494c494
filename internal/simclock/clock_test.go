package simclock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runTasks attaches and starts every task, drains the clock and waits for
// all tasks to return.
func runTasks(t *testing.T, c *Clock, tasks ...func() error) []error {
	t.Helper()
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		c.Attach()
		wg.Add(1)
		go func(i int, task func() error) {
			defer wg.Done()
			defer c.Detach()
			errs[i] = task()
		}(i, task)
	}
	require.NoError(t, c.Drain())
	wg.Wait()
	return errs
}

func TestSleep_AdvancesVirtualTime(t *testing.T) {
	c := New()
	var first, second time.Duration

	errs := runTasks(t, c,
		func() error {
			if err := c.Sleep(5 * time.Millisecond); err != nil {
				return err
			}
			first = c.Now()
			return nil
		},
		func() error {
			if err := c.Sleep(10 * time.Millisecond); err != nil {
				return err
			}
			second = c.Now()
			return nil
		},
	)

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, 5*time.Millisecond, first)
	assert.Equal(t, 10*time.Millisecond, second)
	assert.Equal(t, 10*time.Millisecond, c.Now())
	assert.Equal(t, 2, c.Processed())
}

func TestSleep_SequentialWaitsAccumulate(t *testing.T) {
	c := New()
	var stamps []time.Duration

	errs := runTasks(t, c, func() error {
		for i := 0; i < 3; i++ {
			if err := c.Sleep(time.Microsecond); err != nil {
				return err
			}
			stamps = append(stamps, c.Now())
		}
		return nil
	})

	require.NoError(t, errs[0])
	assert.Equal(t, []time.Duration{time.Microsecond, 2 * time.Microsecond, 3 * time.Microsecond}, stamps)
}

func TestDrain_WaitsForSlowStarters(t *testing.T) {
	c := New()
	var woke time.Duration

	errs := runTasks(t, c, func() error {
		// Real work before the first suspension point must not let the
		// clock run ahead of this task.
		time.Sleep(30 * time.Millisecond)
		if err := c.Sleep(time.Second); err != nil {
			return err
		}
		woke = c.Now()
		return nil
	})

	require.NoError(t, errs[0])
	assert.Equal(t, time.Second, woke)
}

func TestDrain_OnlyOnce(t *testing.T) {
	c := New()
	require.NoError(t, c.Drain())
	assert.ErrorIs(t, c.Drain(), ErrAlreadyDrained)
}

func TestPark_ReleasedWhenQueueEmpties(t *testing.T) {
	c := New()

	errs := runTasks(t, c, func() error {
		return c.Park(c.NewWaiter())
	})

	assert.ErrorIs(t, errs[0], ErrSimulationEnded)
}

func TestWake_DeliversError(t *testing.T) {
	c := New()
	w := c.NewWaiter()
	boom := assert.AnError

	errs := runTasks(t, c,
		func() error { return c.Park(w) },
		func() error {
			return c.Schedule(time.Millisecond, func() { c.Wake(w, boom) })
		},
	)

	assert.ErrorIs(t, errs[0], boom)
	assert.NoError(t, errs[1])
}

func TestSchedule_AfterDrainFails(t *testing.T) {
	c := New()
	require.NoError(t, c.Drain())
	assert.ErrorIs(t, c.Schedule(time.Second, func() {}), ErrSimulationEnded)
	assert.ErrorIs(t, c.Sleep(time.Second), ErrSimulationEnded)
}

func TestStop_ReleasesParkedTasks(t *testing.T) {
	c := New()
	done := make(chan error, 1)

	c.Attach()
	go func() {
		defer c.Detach()
		done <- c.Park(c.NewWaiter())
	}()

	// Give the task time to park before stopping.
	time.Sleep(20 * time.Millisecond)
	c.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClockStopped)
	case <-time.After(time.Second):
		t.Fatal("parked task was not released by Stop")
	}
	assert.ErrorIs(t, c.Schedule(0, func() {}), ErrClockStopped)
}

func TestWithHorizon_StopsEarly(t *testing.T) {
	c := New(WithHorizon(time.Second))

	errs := runTasks(t, c, func() error {
		return c.Sleep(time.Hour)
	})

	assert.ErrorIs(t, errs[0], ErrSimulationEnded)
}
