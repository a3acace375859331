package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/ports"
)

// stopTimeout bounds how long deactivation waits for an in-flight poll
const stopTimeout = 10 * time.Second

// Poller drives live price polling for the favorites session.
//
// It is Idle while there are no favorites: no timer and no requests.
// It is Active otherwise: one poll on entry, then one per interval. Polls
// run one at a time on the loop goroutine; ticks that fire while a poll is
// still in flight are dropped, so history points never arrive out of order.
type Poller struct {
	service    ports.PollerService
	interval   time.Duration
	clock      clock.Clock
	onActivate func()
	logger     *slog.Logger

	mu      sync.Mutex
	want    bool
	running bool
	parent  context.Context
	stopCh  chan struct{}
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// Option configures a Poller
type Option func(*Poller)

// WithOnActivate sets a hook run on every Idle to Active transition,
// before the first poll of the session
func WithOnActivate(fn func()) Option {
	return func(p *Poller) {
		p.onActivate = fn
	}
}

// WithClock sets the clock that drives the poll ticker
func WithClock(clk clock.Clock) Option {
	return func(p *Poller) {
		if clk != nil {
			p.clock = clk
		}
	}
}

// NewPoller creates a new idle price poller
func NewPoller(service ports.PollerService, interval time.Duration, logger *slog.Logger, opts ...Option) *Poller {
	p := &Poller{
		service:  service,
		interval: interval,
		clock:    clock.New(),
		logger:   logger.With("component", "poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run supervises the poller until ctx is done or Stop is called.
// Updates received before Run take effect when it starts.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.parent = ctx
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	if p.want {
		p.activateLocked()
	}
	p.mu.Unlock()

	p.logger.Info("starting poller", "interval", p.interval.String())

	select {
	case <-ctx.Done():
		p.logger.Info("poller context cancelled")
	case <-stopCh:
		p.logger.Info("poller stopped")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	return p.deactivateLocked()
}

// Update moves the poller between Idle and Active for the given favorites.
// Changes within Active keep the running timer; the next tick picks them up.
func (p *Poller) Update(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.want = len(ids) > 0
	if !p.running {
		return
	}

	switch {
	case p.want && p.cancel == nil:
		p.activateLocked()
	case !p.want && p.cancel != nil:
		if err := p.deactivateLocked(); err != nil {
			p.logger.Error("failed to stop polling", "error", err)
		}
	}
}

// Stop cancels the timer and waits for an in-flight poll to return
func (p *Poller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}

	p.logger.Info("stopping poller")
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
	p.running = false
	return p.deactivateLocked()
}

// Active reports whether the poller is in its Active state
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// IsRunning returns whether the supervisor is running
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) activateLocked() {
	if p.onActivate != nil {
		p.onActivate()
	}

	ctx, cancel := context.WithCancel(p.parent)
	p.cancel = cancel
	p.doneCh = make(chan struct{})

	p.logger.Info("poller active")
	go p.loop(ctx, p.doneCh)
}

func (p *Poller) deactivateLocked() error {
	if p.cancel == nil {
		return nil
	}

	p.cancel()
	p.cancel = nil

	select {
	case <-p.doneCh:
		p.logger.Info("poller idle")
		return nil
	case <-time.After(stopTimeout):
		return context.DeadlineExceeded
	}
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	pollTimeout := p.interval / 2
	if pollTimeout < 5*time.Second {
		pollTimeout = 5 * time.Second
	}

	pollCtx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	if err := p.service.PollPrices(pollCtx); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		p.logger.Debug("poll failed", "error", err)
	}
}
