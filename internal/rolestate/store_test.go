package rolestate

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	s := New()
	assert.Equal(t, StatusPending, s.Status("Sender"))

	s.SetStatus("Sender", StatusRunning)
	assert.Equal(t, StatusRunning, s.Status("Sender"))
	assert.Equal(t, "running", s.Status("Sender").String())
}

func TestCompleteAndFail(t *testing.T) {
	s := New()

	_, ok := s.Output("Sender")
	assert.False(t, ok)
	assert.Nil(t, s.Error("Sender"))
	assert.Nil(t, s.FirstFailure())

	s.Complete("Sender", map[string]any{"bit": 1})
	out, ok := s.Output("Sender")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"bit": 1}, out)
	assert.Equal(t, StatusCompleted, s.Status("Sender"))

	first := errors.New("first")
	assert.True(t, s.Fail("Receiver", first))
	assert.False(t, s.Fail("Eve", errors.New("second")))

	f := s.FirstFailure()
	require.NotNil(t, f)
	assert.Equal(t, "Receiver", f.Role)
	assert.Same(t, first, f.Err)
	assert.EqualError(t, s.Error("Eve"), "second")
	assert.Equal(t, StatusFailed, s.Status("Eve"))

	assert.Equal(t, map[string]any{"Sender": map[string]any{"bit": 1}}, s.Outputs())
	assert.Equal(t, []string{"Eve", "Receiver", "Sender"}, s.Roles())
}

// TestStore_ConcurrentFailures checks that exactly one of many concurrent
// failures is reported as the first.
func TestStore_ConcurrentFailures(t *testing.T) {
	s := New()
	const n = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			role := fmt.Sprintf("role-%d", i)
			if i%2 == 0 {
				s.Complete(role, i)
				return
			}
			if s.Fail(role, fmt.Errorf("error for %s", role)) {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, firsts)
	f := s.FirstFailure()
	require.NotNil(t, f)
	assert.EqualError(t, f.Err, "error for "+f.Role)
	assert.Len(t, s.Outputs(), n/2)
	assert.Len(t, s.Roles(), n)
}
