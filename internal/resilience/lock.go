package resilience

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Lock is a time-boxed suppression switch engaged after an upstream
// rate-limit response. It releases itself after the cooldown and notifies
// subscribers on release.
type Lock struct {
	clock    clock.Clock
	cooldown time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	until     time.Time
	timer     *clock.Timer
	listeners map[int]func()
	nextID    int
}

// NewLock creates a released lock
func NewLock(cooldown time.Duration, clk clock.Clock, logger *slog.Logger) *Lock {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Lock{
		clock:     clk,
		cooldown:  cooldown,
		logger:    logger.With("component", "rate_limit_lock"),
		listeners: make(map[int]func()),
	}
}

// Engage sets the lock for one cooldown from now, extending an active lock,
// and returns the release time
func (l *Lock) Engage() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.until = l.clock.Now().Add(l.cooldown)
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = l.clock.AfterFunc(l.cooldown, l.release)

	l.logger.Warn("rate limit lock engaged", "cooldown", l.cooldown.String())
	return l.until
}

// Active reports whether the lock is currently set
func (l *Lock) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.clock.Now().Before(l.until)
}

// Remaining returns the time left until release, zero when released
func (l *Lock) Remaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if d := l.until.Sub(l.clock.Now()); d > 0 {
		return d
	}
	return 0
}

// Subscribe registers fn to be called on every release.
// The returned function removes the subscription.
func (l *Lock) Subscribe(fn func()) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.listeners[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

func (l *Lock) release() {
	l.mu.Lock()
	if l.clock.Now().Before(l.until) {
		// superseded by a later Engage
		l.mu.Unlock()
		return
	}
	l.until = time.Time{}
	l.timer = nil

	listeners := make([]func(), 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()

	l.logger.Info("rate limit lock released")
	for _, fn := range listeners {
		fn()
	}
}
