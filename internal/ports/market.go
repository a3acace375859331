package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
)

// MarketDataClient defines the contract for the market-data REST API
type MarketDataClient interface {
	// FetchTopCoins returns up to 100 coins ordered by market cap, descending
	FetchTopCoins(ctx context.Context) ([]domain.Coin, error)

	// FetchMoreInfo returns the multi-currency price of one coin
	FetchMoreInfo(ctx context.Context, id string) (*domain.PriceDetail, error)

	// FetchMarketSnapshot returns extended market data for one coin
	FetchMarketSnapshot(ctx context.Context, id string) (*domain.MarketSnapshot, error)

	// LockRemaining reports how long detail requests stay suspended
	LockRemaining() time.Duration
}

// QuoteClient defines the contract for the batched live price source
type QuoteClient interface {
	// GetPrices returns USD prices keyed by upper-case symbol, in a single request
	GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// InferenceClient defines the contract for the hosted chat-completion API
type InferenceClient interface {
	// Complete sends a single user-role prompt and returns the first choice's text
	Complete(ctx context.Context, prompt string) (string, error)

	// Model returns the model name requests are sent to
	Model() string

	// Configured reports whether credentials are present
	Configured() bool
}
