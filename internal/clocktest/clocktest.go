// Package clocktest wraps clock.Mock for components that wait on timers
// from the calling goroutine, such as throttles and retry delays.
package clocktest

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Mock is a clock.Mock whose Timer advances the clock by the requested
// duration before returning, so a caller blocked on the timer resumes at
// once and the mock time moves exactly as a real wait would.
type Mock struct {
	*clock.Mock

	mu    sync.Mutex
	waits []time.Duration
}

// New creates a mock set to start
func New(start time.Time) *Mock {
	m := clock.NewMock()
	m.Set(start)
	return &Mock{Mock: m}
}

// Timer records d, creates the timer and advances the clock until it fires
func (m *Mock) Timer(d time.Duration) *clock.Timer {
	m.mu.Lock()
	m.waits = append(m.waits, d)
	m.mu.Unlock()

	t := m.Mock.Timer(d)
	m.Mock.Add(d)
	return t
}

// Waits returns every duration passed to Timer, in call order
func (m *Mock) Waits() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]time.Duration, len(m.waits))
	copy(out, m.waits)
	return out
}
