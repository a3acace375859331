package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/ports"
)

// ActivityReporter reports whether the live poller is in its Active state
type ActivityReporter interface {
	Active() bool
}

// historyCounter is satisfied by LivePriceService
type historyCounter interface {
	HistoryLen() int
}

// MetricsService implements the ports.MetricsService interface
type MetricsService struct {
	startTime time.Time
	logger    *slog.Logger

	mu               sync.RWMutex
	market           ports.MarketService
	favorites        FavoriteLister
	history          historyCounter
	poller           ActivityReporter
	lastPollTime     *time.Time
	lastPollDuration time.Duration
	pollSuccessCount int64
	pollErrorCount   int64
}

// NewMetricsService creates a new metrics service. Sources are attached
// with Attach once they exist; until then their figures read as zero.
func NewMetricsService(logger *slog.Logger) *MetricsService {
	return &MetricsService{
		startTime: time.Now(),
		logger:    logger.With("component", "metrics_service"),
	}
}

// Attach sets the components the metrics are read from. Nil arguments are ignored.
func (m *MetricsService) Attach(market ports.MarketService, favorites FavoriteLister, history historyCounter, poller ActivityReporter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if market != nil {
		m.market = market
	}
	if favorites != nil {
		m.favorites = favorites
	}
	if history != nil {
		m.history = history
	}
	if poller != nil {
		m.poller = poller
	}
}

// GetMetrics returns current operational metrics
func (m *MetricsService) GetMetrics(ctx context.Context) (*domain.Metrics, error) {
	m.mu.RLock()
	metrics := &domain.Metrics{
		Uptime:           time.Since(m.startTime).Seconds(),
		LastPollTime:     m.lastPollTime,
		LastPollDuration: float64(m.lastPollDuration.Milliseconds()),
		PollSuccessCount: m.pollSuccessCount,
		PollErrorCount:   m.pollErrorCount,
	}
	market, favorites, history, poller := m.market, m.favorites, m.history, m.poller
	m.mu.RUnlock()

	if market != nil {
		metrics.LoadedCoins = len(market.Coins())
		metrics.CoinsLoadedAt = market.LoadedAt()
		if remaining := market.LockRemaining(); remaining > 0 {
			metrics.MarketDataLocked = true
			metrics.LockRemainingSecond = remaining.Seconds()
		}
	}
	if favorites != nil {
		metrics.Favorites = len(favorites.IDs())
	}
	if history != nil {
		metrics.HistoryPoints = history.HistoryLen()
	}
	if poller != nil {
		metrics.PollerActive = poller.Active()
	}

	return metrics, nil
}

// RecordPollSuccess records a successful poll
func (m *MetricsService) RecordPollSuccess(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.lastPollTime = &now
	m.lastPollDuration = duration
	m.pollSuccessCount++
}

// RecordPollError records a failed poll
func (m *MetricsService) RecordPollError(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.lastPollTime = &now
	m.lastPollDuration = duration
	m.pollErrorCount++
}

// GetLastPollTime returns the time of the last poll
func (m *MetricsService) GetLastPollTime() *time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastPollTime
}

// Ensure MetricsService implements ports.MetricsService
var _ ports.MetricsService = (*MetricsService)(nil)
