package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/ports"
)

// QuoteChain asks the primary quote source and falls back to the secondary
// when the primary request fails. Partial answers from the primary are not
// topped up.
type QuoteChain struct {
	primary  ports.QuoteClient
	fallback ports.QuoteClient
	logger   *slog.Logger
}

// NewQuoteChain creates a chain; a nil fallback makes it a pass-through
func NewQuoteChain(primary, fallback ports.QuoteClient, logger *slog.Logger) *QuoteChain {
	return &QuoteChain{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With("component", "quote_chain"),
	}
}

// GetPrices implements ports.QuoteClient
func (c *QuoteChain) GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	prices, err := c.primary.GetPrices(ctx, symbols)
	if err == nil || c.fallback == nil {
		return prices, err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	c.logger.Warn("primary quote source failed, using fallback", "error", err)

	prices, fbErr := c.fallback.GetPrices(ctx, symbols)
	if fbErr != nil {
		return nil, errors.Join(err, fbErr)
	}
	return prices, nil
}

var _ ports.QuoteClient = (*QuoteChain)(nil)
