package ports

import (
	"context"
	"time"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
)

// FavoritesService defines the contract for the favorites set
type FavoritesService interface {
	// IDs returns the favorites in insertion order
	IDs() []string

	// Contains reports whether id is a favorite
	Contains(id string) bool

	// Full reports whether the set is at capacity
	Full() bool

	// Toggle adds or removes id
	Toggle(ctx context.Context, id string) domain.MutationResult

	// Replace evicts removeID and adds addID
	Replace(ctx context.Context, removeID, addID string) domain.MutationResult
}

// MarketService defines the contract for loaded market data
type MarketService interface {
	// LoadCoins refetches the coin list and replaces the loaded one
	LoadCoins(ctx context.Context) ([]domain.Coin, error)

	// Coins returns the loaded coin list
	Coins() []domain.Coin

	// Coin returns one loaded coin
	Coin(id string) (domain.Coin, bool)

	// LoadedAt returns when the coin list was last loaded
	LoadedAt() *time.Time

	// MoreInfo returns the multi-currency price of one coin
	MoreInfo(ctx context.Context, id string) (*domain.PriceDetail, error)

	// Snapshot returns the market snapshot used for recommendations
	Snapshot(ctx context.Context, id string) (*domain.MarketSnapshot, error)

	// LockRemaining reports how long detail requests stay suspended
	LockRemaining() time.Duration
}

// LivePriceService defines the contract for the live price session
type LivePriceService interface {
	// History returns the stored price points, oldest first
	History() []domain.PricePoint

	// LastError returns the error of the most recent poll, nil after a success
	LastError() error
}

// RecommendationService defines the contract for buy/no-buy opinions
type RecommendationService interface {
	// Recommend returns an opinion for one favorite coin
	Recommend(ctx context.Context, id string) (*domain.Recommendation, error)

	// Configured reports whether inference credentials are present
	Configured() bool
}

// MetricsService defines the contract for operational metrics
type MetricsService interface {
	// GetMetrics returns current operational metrics
	GetMetrics(ctx context.Context) (*domain.Metrics, error)

	// RecordPollSuccess records a successful poll
	RecordPollSuccess(duration time.Duration)

	// RecordPollError records a failed poll
	RecordPollError(duration time.Duration)

	// GetLastPollTime returns the time of the last poll
	GetLastPollTime() *time.Time
}

// PollerService defines the contract for price polling orchestration
type PollerService interface {
	// PollPrices fetches one batched quote for the current favorites
	PollPrices(ctx context.Context) error
}

// HealthStatus represents the health of the service
type HealthStatus struct {
	Status               string  `json:"status"`
	StateStore           string  `json:"state_store"`
	MarketData           string  `json:"market_data"`
	LockRemainingSeconds float64 `json:"lock_remaining_seconds,omitempty"`
	Recommendations      string  `json:"recommendations"`
}
