package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot is the point-in-time market data a recommendation is based on.
// It is built fresh for every request and never cached.
type MarketSnapshot struct {
	CoinID       string              `json:"id"`
	Name         string              `json:"name"`
	Symbol       string              `json:"symbol"`
	CurrentPrice decimal.Decimal     `json:"current_price"`
	MarketCap    decimal.Decimal     `json:"market_cap"`
	TotalVolume  decimal.Decimal     `json:"total_volume"`
	Change24h    decimal.NullDecimal `json:"price_change_percentage_24h"`
	Change30d    decimal.NullDecimal `json:"price_change_percentage_30d"`
	Change60d    decimal.NullDecimal `json:"price_change_percentage_60d"`
	Change200d   decimal.NullDecimal `json:"price_change_percentage_200d"`
}

// Recommendation is a normalized inference result for one coin
type Recommendation struct {
	CoinID    string    `json:"id"`
	Text      string    `json:"text"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Verdicts the model is asked to choose from
const (
	VerdictBuy   = "Buy"
	VerdictNoBuy = "No Buy"
)

// FormatPercent renders an optional percentage with two decimals, or N/A
func FormatPercent(v decimal.NullDecimal) string {
	if !v.Valid {
		return "N/A"
	}
	return v.Decimal.StringFixed(2) + "%"
}

// FormatUSD renders a dollar amount; sub-dollar prices keep more precision
func FormatUSD(v decimal.Decimal) string {
	if v.Abs().LessThan(decimal.NewFromInt(1)) && !v.IsZero() {
		return "$" + v.StringFixed(6)
	}
	return "$" + v.StringFixed(2)
}

// FormatBlock renders the snapshot as the data block embedded in the prompt
func (s MarketSnapshot) FormatBlock() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Coin: %s (%s)\n", s.Name, strings.ToUpper(s.Symbol))
	fmt.Fprintf(&b, "Current price: %s\n", FormatUSD(s.CurrentPrice))
	fmt.Fprintf(&b, "Market cap: %s\n", FormatUSD(s.MarketCap))
	fmt.Fprintf(&b, "24h trading volume: %s\n", FormatUSD(s.TotalVolume))
	fmt.Fprintf(&b, "24h price change: %s\n", FormatPercent(s.Change24h))
	fmt.Fprintf(&b, "30d price change: %s\n", FormatPercent(s.Change30d))
	fmt.Fprintf(&b, "60d price change: %s\n", FormatPercent(s.Change60d))
	fmt.Fprintf(&b, "200d price change: %s", FormatPercent(s.Change200d))
	return b.String()
}

// BuildRecommendationPrompt wraps the snapshot block with the verdict instruction
func BuildRecommendationPrompt(s MarketSnapshot) string {
	return fmt.Sprintf(
		"You are a cryptocurrency market analyst. Review the market data below.\n\n%s\n\n"+
			"Answer with exactly one verdict, %q or %q, on the first line, "+
			"followed by a short justification of at most three sentences.",
		s.FormatBlock(), VerdictBuy, VerdictNoBuy,
	)
}
