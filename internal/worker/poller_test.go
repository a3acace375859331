package worker_test

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/worker"
)

type countingService struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	polled   chan struct{}
}

func newCountingService(delay time.Duration) *countingService {
	return &countingService{delay: delay, polled: make(chan struct{}, 100)}
}

func (s *countingService) PollPrices(ctx context.Context) error {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	s.calls.Add(1)
	select {
	case s.polled <- struct{}{}:
	default:
	}
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitPoll(t *testing.T, s *countingService) {
	t.Helper()
	select {
	case <-s.polled:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a poll")
	}
}

func startPoller(t *testing.T, p *worker.Poller) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, p.IsRunning, time.Second, time.Millisecond)

	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("poller did not exit")
		}
	}
}

func TestPoller_IdleWithoutFavorites(t *testing.T) {
	svc := newCountingService(0)
	mock := clock.NewMock()
	p := worker.NewPoller(svc, 10*time.Second, newTestLogger(), worker.WithClock(mock))
	stop := startPoller(t, p)
	defer stop()

	p.Update(nil)
	mock.Add(time.Minute)

	assert.False(t, p.Active())
	assert.Never(t, func() bool { return svc.calls.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestPoller_ActivePollsImmediatelyAndOnTicks(t *testing.T) {
	svc := newCountingService(0)
	mock := clock.NewMock()
	activations := 0
	p := worker.NewPoller(svc, 10*time.Second, newTestLogger(),
		worker.WithClock(mock),
		worker.WithOnActivate(func() { activations++ }))
	stop := startPoller(t, p)
	defer stop()

	p.Update([]string{"bitcoin"})
	assert.True(t, p.Active())
	waitPoll(t, svc)

	mock.Add(10 * time.Second)
	waitPoll(t, svc)
	mock.Add(10 * time.Second)
	waitPoll(t, svc)
	assert.Equal(t, int32(3), svc.calls.Load())

	// staying active does not restart the session
	p.Update([]string{"bitcoin", "ethereum"})
	assert.Equal(t, 1, activations)

	p.Update(nil)
	assert.False(t, p.Active())

	mock.Add(30 * time.Second)
	assert.Never(t, func() bool { return svc.calls.Load() != 3 }, 50*time.Millisecond, 5*time.Millisecond)

	p.Update([]string{"solana"})
	waitPoll(t, svc)
	assert.Equal(t, 2, activations)
}

func TestPoller_UpdateBeforeRun(t *testing.T) {
	svc := newCountingService(0)
	p := worker.NewPoller(svc, time.Hour, newTestLogger(), worker.WithClock(clock.NewMock()))

	p.Update([]string{"bitcoin"})
	assert.False(t, p.Active())

	stop := startPoller(t, p)
	defer stop()

	waitPoll(t, svc)
	assert.True(t, p.Active())
}

func TestPoller_StopIsDeterministic(t *testing.T) {
	svc := newCountingService(0)
	mock := clock.NewMock()
	p := worker.NewPoller(svc, 10*time.Second, newTestLogger(), worker.WithClock(mock))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	require.Eventually(t, p.IsRunning, time.Second, time.Millisecond)

	p.Update([]string{"bitcoin"})
	waitPoll(t, svc)

	require.NoError(t, p.Stop())
	assert.False(t, p.Active())
	assert.False(t, p.IsRunning())

	calls := svc.calls.Load()
	mock.Add(time.Minute)
	assert.Never(t, func() bool { return svc.calls.Load() != calls }, 50*time.Millisecond, 5*time.Millisecond)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestPoller_SerializesSlowPolls(t *testing.T) {
	svc := newCountingService(30 * time.Millisecond)
	mock := clock.NewMock()
	p := worker.NewPoller(svc, 5*time.Second, newTestLogger(), worker.WithClock(mock))
	stop := startPoller(t, p)

	p.Update([]string{"bitcoin"})
	waitPoll(t, svc)
	require.Eventually(t, func() bool { return svc.inFlight.Load() == 0 }, time.Second, time.Millisecond)

	mock.Add(5 * time.Second)
	require.Eventually(t, func() bool { return svc.inFlight.Load() == 1 }, time.Second, time.Millisecond)

	// ticks during the slow poll queue behind it
	mock.Add(5 * time.Second)
	mock.Add(5 * time.Second)

	waitPoll(t, svc)
	waitPoll(t, svc)
	stop()

	assert.Equal(t, int32(1), svc.maxSeen.Load())
}
