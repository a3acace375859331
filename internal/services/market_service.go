package services

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/ports"
)

// MarketService implements the ports.MarketService interface.
// It owns the loaded coin list; detail lookups go straight to the client,
// which applies the shared detail-fetch policy.
type MarketService struct {
	client ports.MarketDataClient
	logger *slog.Logger

	mu       sync.RWMutex
	coins    []domain.Coin
	index    map[string]int
	loadedAt *time.Time
}

// NewMarketService creates a new market service with no coins loaded
func NewMarketService(client ports.MarketDataClient, logger *slog.Logger) *MarketService {
	return &MarketService{
		client: client,
		logger: logger.With("component", "market_service"),
		index:  make(map[string]int),
	}
}

// LoadCoins refetches the coin list. On failure the previously loaded list is kept.
func (s *MarketService) LoadCoins(ctx context.Context) ([]domain.Coin, error) {
	coins, err := s.client.FetchTopCoins(ctx)
	if err != nil {
		s.logger.Error("failed to load coins", "error", err)
		return nil, err
	}

	index := make(map[string]int, len(coins))
	for i, c := range coins {
		index[c.ID] = i
	}
	now := time.Now().UTC()

	s.mu.Lock()
	s.coins = coins
	s.index = index
	s.loadedAt = &now
	s.mu.Unlock()

	s.logger.Info("coins loaded", "count", len(coins))
	return slices.Clone(coins), nil
}

// Coins returns the loaded coin list
func (s *MarketService) Coins() []domain.Coin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.coins)
}

// Coin returns one loaded coin
func (s *MarketService) Coin(id string) (domain.Coin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Coin{}, false
	}
	return s.coins[i], true
}

// SymbolsFor maps coin ids to quote symbols using the loaded list.
// Ids that are not loaded are omitted.
func (s *MarketService) SymbolsFor(ids []string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make(map[string]string, len(ids))
	for _, id := range ids {
		if i, ok := s.index[id]; ok {
			symbols[id] = s.coins[i].QuoteSymbol()
		}
	}
	return symbols
}

// LoadedAt returns when the coin list was last loaded
func (s *MarketService) LoadedAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// MoreInfo returns the multi-currency price of one coin
func (s *MarketService) MoreInfo(ctx context.Context, id string) (*domain.PriceDetail, error) {
	return s.client.FetchMoreInfo(ctx, id)
}

// Snapshot returns fresh extended market data for one coin. Name and symbol
// fall back to the loaded list when the upstream record omits them.
func (s *MarketService) Snapshot(ctx context.Context, id string) (*domain.MarketSnapshot, error) {
	snap, err := s.client.FetchMarketSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	if coin, ok := s.Coin(snap.CoinID); ok {
		if snap.Name == "" {
			snap.Name = coin.Name
		}
		if snap.Symbol == "" {
			snap.Symbol = coin.Symbol
		}
	}
	return snap, nil
}

// LockRemaining reports how long detail requests stay suspended
func (s *MarketService) LockRemaining() time.Duration {
	return s.client.LockRemaining()
}

// Ensure MarketService implements ports.MarketService
var _ ports.MarketService = (*MarketService)(nil)
