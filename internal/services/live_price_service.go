package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/ports"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/telemetry"
)

// SymbolResolver maps coin ids to quote symbols from already-loaded coin data
type SymbolResolver interface {
	SymbolsFor(ids []string) map[string]string
}

// FavoriteLister returns the current favorites
type FavoriteLister interface {
	IDs() []string
}

// LivePriceService implements the ports.LivePriceService and
// ports.PollerService interfaces
type LivePriceService struct {
	favorites FavoriteLister
	symbols   SymbolResolver
	quotes    ports.QuoteClient
	metrics   ports.MetricsService
	telemetry *telemetry.Metrics
	clock     clock.Clock
	logger    *slog.Logger

	mu      sync.RWMutex
	history *domain.PriceHistory
	lastErr error
}

// NewLivePriceService creates a new live price service
func NewLivePriceService(
	favorites FavoriteLister,
	symbols SymbolResolver,
	quotes ports.QuoteClient,
	metrics ports.MetricsService,
	tm *telemetry.Metrics,
	historySize int,
	clk clock.Clock,
	logger *slog.Logger,
) *LivePriceService {
	if clk == nil {
		clk = clock.New()
	}
	return &LivePriceService{
		favorites: favorites,
		symbols:   symbols,
		quotes:    quotes,
		metrics:   metrics,
		telemetry: tm,
		clock:     clk,
		logger:    logger.With("component", "live_price_service"),
		history:   domain.NewPriceHistory(historySize),
	}
}

// PollPrices fetches one batched quote for the current favorites and
// appends a point to the history. A failure is recorded but leaves the
// existing history intact.
func (s *LivePriceService) PollPrices(ctx context.Context) error {
	start := time.Now()

	ids := s.favorites.IDs()
	if len(ids) == 0 {
		s.logger.Debug("no favorites to poll")
		return nil
	}

	symbolByID := s.symbols.SymbolsFor(ids)
	if len(symbolByID) == 0 {
		return s.fail(start, domain.NewDomainError(
			fmt.Errorf("%w: no loaded coin data for favorites", domain.ErrCoinNotFound),
			domain.MsgQuotesUnavailable, "QUOTES_UNAVAILABLE"))
	}

	symbols := make([]string, 0, len(symbolByID))
	for _, id := range ids {
		if sym, ok := symbolByID[id]; ok {
			symbols = append(symbols, sym)
		}
	}

	s.logger.Debug("polling prices", "symbols", len(symbols))

	quotes, err := s.quotes.GetPrices(ctx, symbols)
	if err != nil {
		return s.fail(start, domain.NewDomainError(err, domain.MsgQuotesUnavailable, "QUOTES_UNAVAILABLE"))
	}

	prices := make(map[string]decimal.Decimal, len(symbolByID))
	for id, sym := range symbolByID {
		if price, ok := quotes[sym]; ok {
			prices[id] = price
		}
	}
	if len(prices) == 0 {
		return s.fail(start, domain.NewDomainError(
			fmt.Errorf("%w: no quotes for %v", domain.ErrInvalidResponse, symbols),
			domain.MsgQuotesUnavailable, "QUOTES_UNAVAILABLE"))
	}

	s.mu.Lock()
	s.history.Append(domain.NewPricePoint(s.clock.Now(), prices))
	s.lastErr = nil
	historyLen := s.history.Len()
	s.mu.Unlock()

	duration := time.Since(start)
	s.metrics.RecordPollSuccess(duration)
	s.telemetry.PollCompleted(nil, historyLen)

	s.logger.Debug("poll completed",
		"symbols", len(symbols),
		"prices", len(prices),
		"duration_ms", duration.Milliseconds(),
	)

	return nil
}

func (s *LivePriceService) fail(start time.Time, err error) error {
	s.mu.Lock()
	s.lastErr = err
	historyLen := s.history.Len()
	s.mu.Unlock()

	s.metrics.RecordPollError(time.Since(start))
	s.telemetry.PollCompleted(err, historyLen)
	s.logger.Warn("poll failed", "error", err)
	return err
}

// History returns the stored price points, oldest first
func (s *LivePriceService) History() []domain.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Points()
}

// HistoryLen returns the number of stored points
func (s *LivePriceService) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Len()
}

// LastError returns the error of the most recent poll, nil after a success
func (s *LivePriceService) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Reset starts a new session with an empty history
func (s *LivePriceService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = domain.NewPriceHistory(s.history.Cap())
	s.lastErr = nil
}

// Ensure LivePriceService implements the service interfaces
var (
	_ ports.LivePriceService = (*LivePriceService)(nil)
	_ ports.PollerService    = (*LivePriceService)(nil)
)
