package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
)

func nullDec(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

func TestMarketSnapshot_FormatBlock(t *testing.T) {
	t.Run("renders all four changes with two decimals", func(t *testing.T) {
		s := domain.MarketSnapshot{
			Name:         "Bitcoin",
			Symbol:       "btc",
			CurrentPrice: decimal.RequireFromString("50000"),
			MarketCap:    decimal.RequireFromString("980000000000"),
			TotalVolume:  decimal.RequireFromString("25000000000.5"),
			Change24h:    nullDec("3.2491"),
			Change30d:    nullDec("-12.5"),
			Change60d:    nullDec("0"),
			Change200d:   nullDec("145.678"),
		}

		block := s.FormatBlock()

		assert.Contains(t, block, "Coin: Bitcoin (BTC)")
		assert.Contains(t, block, "Current price: $50000.00")
		assert.Contains(t, block, "24h price change: 3.25%")
		assert.Contains(t, block, "30d price change: -12.50%")
		assert.Contains(t, block, "60d price change: 0.00%")
		assert.Contains(t, block, "200d price change: 145.68%")
	})

	t.Run("absent change renders N/A", func(t *testing.T) {
		s := domain.MarketSnapshot{
			Name:      "Newcoin",
			Symbol:    "new",
			Change24h: nullDec("1"),
		}

		block := s.FormatBlock()

		assert.Contains(t, block, "24h price change: 1.00%")
		assert.Contains(t, block, "30d price change: N/A")
		assert.Contains(t, block, "60d price change: N/A")
		assert.Contains(t, block, "200d price change: N/A")
	})
}

func TestBuildRecommendationPrompt(t *testing.T) {
	s := domain.MarketSnapshot{Name: "Ethereum", Symbol: "eth", CurrentPrice: decimal.NewFromInt(3000)}
	prompt := domain.BuildRecommendationPrompt(s)

	assert.Contains(t, prompt, s.FormatBlock())
	assert.Contains(t, prompt, `"Buy"`)
	assert.Contains(t, prompt, `"No Buy"`)
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$0.000012", domain.FormatUSD(decimal.RequireFromString("0.0000123")))
	assert.Equal(t, "$1.50", domain.FormatUSD(decimal.RequireFromString("1.5")))
	assert.Equal(t, "$0.00", domain.FormatUSD(decimal.Zero))
}
