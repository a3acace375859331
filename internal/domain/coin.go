package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxCoins is the size of the market-cap ranked coin list
const MaxCoins = 100

// Coin is one entry of the market-cap ranked coin list.
// It is replaced wholesale on every list refresh and never mutated in place.
type Coin struct {
	ID                       string              `json:"id"`
	Symbol                   string              `json:"symbol"`
	Name                     string              `json:"name"`
	Image                    string              `json:"image"`
	CurrentPrice             decimal.Decimal     `json:"current_price"`
	MarketCap                decimal.Decimal     `json:"market_cap"`
	TotalVolume              decimal.NullDecimal `json:"total_volume"`
	PriceChangePercentage24h decimal.NullDecimal `json:"price_change_percentage_24h"`
}

// QuoteSymbol returns the symbol in the form used by the live quote source
func (c Coin) QuoteSymbol() string {
	return strings.ToUpper(strings.TrimSpace(c.Symbol))
}

// NormalizeCoinID trims and lower-cases a coin identifier
func NormalizeCoinID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// PriceDetail is the multi-currency price of one coin
type PriceDetail struct {
	CoinID    string          `json:"id"`
	USD       decimal.Decimal `json:"usd"`
	EUR       decimal.Decimal `json:"eur"`
	ILS       decimal.Decimal `json:"ils"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// DetailCurrencies lists the fiat currencies of a PriceDetail, in request order
var DetailCurrencies = []string{"usd", "eur", "ils"}
