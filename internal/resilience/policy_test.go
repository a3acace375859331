package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/clocktest"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/resilience"
	"github.com/prxgr4mmer/coin-dashboard-service/pkg/retry"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type countingObserver struct {
	hits, misses, engaged, rejected int
	throttled                       []time.Duration
	// release listeners run on the timer goroutine
	released atomic.Int32
}

func (o *countingObserver) CacheHit()                 { o.hits++ }
func (o *countingObserver) CacheMiss()                { o.misses++ }
func (o *countingObserver) Throttled(d time.Duration) { o.throttled = append(o.throttled, d) }
func (o *countingObserver) LockEngaged()              { o.engaged++ }
func (o *countingObserver) LockRejected()             { o.rejected++ }
func (o *countingObserver) LockReleased()             { o.released.Add(1) }

func newPolicy(t *testing.T) (*resilience.Policy[string], *clocktest.Mock, *countingObserver) {
	t.Helper()
	mock := clocktest.New(epoch)
	obs := &countingObserver{}
	p, err := resilience.New[string](resilience.DefaultConfig(),
		resilience.WithClock(mock),
		resilience.WithObserver(obs),
	)
	require.NoError(t, err)
	return p, mock, obs
}

func TestPolicy_CacheTTL(t *testing.T) {
	p, mock, obs := newPolicy(t)
	calls := 0
	fetch := func(ctx context.Context) (string, error) {
		calls++
		return fmt.Sprintf("v%d", calls), nil
	}

	v1, err := p.Do(context.Background(), "bitcoin", fetch)
	require.NoError(t, err)

	mock.Add(time.Minute)
	v2, err := p.Do(context.Background(), "bitcoin", fetch)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, obs.hits)

	mock.Add(time.Minute)
	v3, err := p.Do(context.Background(), "bitcoin", fetch)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, "v2", v3)
}

func TestPolicy_ThrottleSpacesRequests(t *testing.T) {
	p, mock, obs := newPolicy(t)
	fetch := func(ctx context.Context) (string, error) { return "ok", nil }

	_, err := p.Do(context.Background(), "bitcoin", fetch)
	require.NoError(t, err)
	assert.Empty(t, mock.Waits())

	mock.Add(500 * time.Millisecond)
	_, err = p.Do(context.Background(), "ethereum", fetch)
	require.NoError(t, err)

	require.Len(t, mock.Waits(), 1)
	assert.Equal(t, 1500*time.Millisecond, mock.Waits()[0])
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, obs.throttled)

	mock.Add(5 * time.Second)
	_, err = p.Do(context.Background(), "solana", fetch)
	require.NoError(t, err)
	assert.Len(t, mock.Waits(), 1)
}

func TestPolicy_RateLimitEngagesLock(t *testing.T) {
	p, mock, obs := newPolicy(t)

	calls := map[string]int{}
	fetch := func(id string) func(ctx context.Context) (string, error) {
		return func(ctx context.Context) (string, error) {
			calls[id]++
			if id == "bitcoin" && calls[id] == 1 {
				return "", retry.NewRetryableError(domain.ErrRateLimited)
			}
			return id, nil
		}
	}

	v, err := p.Do(context.Background(), "bitcoin", fetch("bitcoin"))
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", v)
	assert.Equal(t, 2, calls["bitcoin"])
	assert.Equal(t, 1, obs.engaged)
	assert.Equal(t, []time.Duration{3 * time.Second}, mock.Waits())

	// three seconds into the ten second cooldown
	assert.True(t, p.Lock().Active())
	_, err = p.Do(context.Background(), "ethereum", fetch("ethereum"))
	assert.ErrorIs(t, err, resilience.ErrLocked)
	assert.Zero(t, calls["ethereum"])

	mock.Add(6 * time.Second)
	_, err = p.Do(context.Background(), "solana", fetch("solana"))
	assert.ErrorIs(t, err, resilience.ErrLocked)
	assert.Zero(t, calls["solana"])
	assert.Equal(t, 2, obs.rejected)

	mock.Add(time.Second)
	assert.False(t, p.Lock().Active())
	require.Eventually(t, func() bool { return obs.released.Load() == 1 }, time.Second, 5*time.Millisecond)
	v, err = p.Do(context.Background(), "ethereum", fetch("ethereum"))
	require.NoError(t, err)
	assert.Equal(t, "ethereum", v)
	assert.Equal(t, 1, calls["ethereum"])
}

func TestPolicy_CacheHitWhileLocked(t *testing.T) {
	p, _, _ := newPolicy(t)

	_, err := p.Do(context.Background(), "bitcoin", func(ctx context.Context) (string, error) { return "cached", nil })
	require.NoError(t, err)

	p.Lock().Engage()

	v, err := p.Do(context.Background(), "bitcoin", func(ctx context.Context) (string, error) {
		t.Fatal("fetch must not run on a cache hit")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cached", v)
}

func TestPolicy_RetryOnNetworkError(t *testing.T) {
	p, mock, obs := newPolicy(t)
	calls := 0

	v, err := p.Do(context.Background(), "bitcoin", func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", retry.NewRetryableError(errors.New("connection refused"))
		}
		return "recovered", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{3 * time.Second}, mock.Waits())
	assert.Zero(t, obs.engaged)
	assert.False(t, p.Lock().Active())
}

func TestPolicy_SecondFailureSurfaces(t *testing.T) {
	p, _, _ := newPolicy(t)
	calls := 0
	netErr := errors.New("connection refused")

	_, err := p.Do(context.Background(), "bitcoin", func(ctx context.Context) (string, error) {
		calls++
		return "", retry.NewRetryableError(netErr)
	})

	assert.ErrorIs(t, err, netErr)
	assert.Equal(t, 2, calls)
	_, cached := p.Cached("bitcoin")
	assert.False(t, cached)
}

func TestPolicy_NonRetryableFailsWithoutWait(t *testing.T) {
	p, mock, _ := newPolicy(t)
	calls := 0

	_, err := p.Do(context.Background(), "bitcoin", func(ctx context.Context) (string, error) {
		calls++
		return "", domain.ErrInvalidResponse
	})

	assert.ErrorIs(t, err, domain.ErrInvalidResponse)
	assert.Equal(t, 1, calls)
	assert.Empty(t, mock.Waits())
}

func TestPolicy_Guard(t *testing.T) {
	p, mock, _ := newPolicy(t)

	require.NoError(t, p.Guard(context.Background()))
	require.NoError(t, p.Guard(context.Background()))
	assert.Equal(t, []time.Duration{2 * time.Second}, mock.Waits())

	p.Observe(retry.NewRetryableError(domain.ErrRateLimited))
	assert.ErrorIs(t, p.Guard(context.Background()), resilience.ErrLocked)

	p.Observe(errors.New("unrelated"))
	mock.Add(10 * time.Second)
	assert.NoError(t, p.Guard(context.Background()))
}

func TestLock_NotifiesSubscribersOnRelease(t *testing.T) {
	mock := clocktest.New(epoch)
	lock := resilience.NewLock(10*time.Second, mock, nil)

	var released atomic.Int32
	unsubscribe := lock.Subscribe(func() { released.Add(1) })

	lock.Engage()
	assert.True(t, lock.Active())
	assert.Equal(t, 10*time.Second, lock.Remaining())

	mock.Add(4 * time.Second)
	lock.Engage() // extends to t+14s

	mock.Add(6 * time.Second)
	assert.True(t, lock.Active())
	assert.Zero(t, released.Load())

	mock.Add(4 * time.Second)
	assert.False(t, lock.Active())
	assert.Zero(t, lock.Remaining())
	require.Eventually(t, func() bool { return released.Load() == 1 }, time.Second, 5*time.Millisecond)

	unsubscribe()
	lock.Engage()
	mock.Add(10 * time.Second)
	assert.False(t, lock.Active())
	assert.Never(t, func() bool { return released.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}
