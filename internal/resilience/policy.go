// Package resilience holds the request policy applied to market-data detail
// lookups: a TTL cache, a minimum-spacing throttle, a rate-limit lock and a
// single bounded retry. One Policy is built at startup and shared by every
// component that issues detail requests.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/pkg/retry"
)

// ErrLocked is returned without any network attempt while the lock is active
var ErrLocked = errors.New("resilience: requests suspended by rate-limit lock")

// Config holds the policy constants
type Config struct {
	CacheTTL     time.Duration
	CacheSize    int
	MinSpacing   time.Duration
	LockCooldown time.Duration
	RetryDelay   time.Duration
	MaxRetries   int
}

// DefaultConfig returns the detail-fetch policy constants
func DefaultConfig() Config {
	return Config{
		CacheTTL:     2 * time.Minute,
		CacheSize:    256,
		MinSpacing:   2 * time.Second,
		LockCooldown: 10 * time.Second,
		RetryDelay:   3 * time.Second,
		MaxRetries:   1,
	}
}

// Observer receives policy events, typically for metrics
type Observer interface {
	CacheHit()
	CacheMiss()
	Throttled(wait time.Duration)
	LockEngaged()
	LockRejected()
	LockReleased()
}

type options struct {
	clock    clock.Clock
	logger   *slog.Logger
	observer Observer
}

// Option configures a Policy
type Option func(*options)

// WithClock sets the time source
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithObserver sets the event observer
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

type cacheEntry[T any] struct {
	value     T
	fetchedAt time.Time
}

// Policy applies cache, lock, throttle and retry around a fetch function
type Policy[T any] struct {
	cfg      Config
	clock    clock.Clock
	cache    *lru.Cache
	limiter  *rate.Limiter
	lock     *Lock
	observer Observer
	logger   *slog.Logger
}

// New creates a policy
func New[T any](cfg Config, opts ...Option) (*Policy[T], error) {
	o := options{
		clock:  clock.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	limit := rate.Inf
	if cfg.MinSpacing > 0 {
		limit = rate.Every(cfg.MinSpacing)
	}

	logger := o.logger.With("component", "resilience_policy")

	p := &Policy[T]{
		cfg:      cfg,
		clock:    o.clock,
		cache:    cache,
		limiter:  rate.NewLimiter(limit, 1),
		lock:     NewLock(cfg.LockCooldown, o.clock, o.logger),
		observer: o.observer,
		logger:   logger,
	}
	if p.observer != nil {
		p.lock.Subscribe(p.observer.LockReleased)
	}
	return p, nil
}

// Lock returns the policy's rate-limit lock
func (p *Policy[T]) Lock() *Lock {
	return p.lock
}

// Cached returns an unexpired cache entry for key.
// Expired entries are reported absent but left in place until overwritten.
func (p *Policy[T]) Cached(key string) (T, bool) {
	var zero T

	raw, ok := p.cache.Get(key)
	if !ok {
		return zero, false
	}
	entry := raw.(cacheEntry[T])
	if p.clock.Now().Sub(entry.fetchedAt) >= p.cfg.CacheTTL {
		return zero, false
	}
	return entry.value, true
}

// Store records value for key as fetched now
func (p *Policy[T]) Store(key string, value T) {
	p.cache.Add(key, cacheEntry[T]{value: value, fetchedAt: p.clock.Now()})
}

// Throttle waits until at least MinSpacing has passed since the previous
// request. Waiters are released in the order they called Throttle.
func (p *Policy[T]) Throttle(ctx context.Context) error {
	now := p.clock.Now()
	r := p.limiter.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("throttle: reservation refused")
	}

	wait := r.DelayFrom(now)
	if wait <= 0 {
		return nil
	}

	if p.observer != nil {
		p.observer.Throttled(wait)
	}
	p.logger.Debug("throttling request", "wait", wait.String())

	if err := retry.Sleep(ctx, p.clock, wait); err != nil {
		r.CancelAt(p.clock.Now())
		return err
	}
	return nil
}

// Guard rejects while the lock is active, then throttles
func (p *Policy[T]) Guard(ctx context.Context) error {
	if p.lock.Active() {
		if p.observer != nil {
			p.observer.LockRejected()
		}
		return ErrLocked
	}
	return p.Throttle(ctx)
}

// Do returns a cached value for key, or fetches it under the lock,
// throttle and retry rules and caches the result.
func (p *Policy[T]) Do(ctx context.Context, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := p.Cached(key); ok {
		if p.observer != nil {
			p.observer.CacheHit()
		}
		return v, nil
	}
	if p.observer != nil {
		p.observer.CacheMiss()
	}

	if p.lock.Active() {
		if p.observer != nil {
			p.observer.LockRejected()
		}
		var zero T
		return zero, ErrLocked
	}

	retryConf := retry.Fixed(p.cfg.MaxRetries, p.cfg.RetryDelay)
	retryConf.Clock = p.clock
	retryConf.OnRetry = func(attempt int, err error) {
		p.logger.Warn("retrying request", "key", key, "attempt", attempt, "error", err)
	}

	v, err := retry.DoWithResult(ctx, retryConf, func(ctx context.Context) (T, error) {
		if err := p.Throttle(ctx); err != nil {
			var zero T
			return zero, err
		}
		v, err := fetch(ctx)
		p.Observe(err)
		return v, err
	})
	if err != nil {
		return v, err
	}

	p.Store(key, v)
	return v, nil
}

// Observe engages the lock when err is an upstream rate-limit response
func (p *Policy[T]) Observe(err error) {
	if err == nil || !errors.Is(err, domain.ErrRateLimited) {
		return
	}
	p.lock.Engage()
	if p.observer != nil {
		p.observer.LockEngaged()
	}
}
