package coingecko

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
)

func parseCoins(body []byte) ([]domain.Coin, error) {
	var raw []domain.Coin
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}

	coins := make([]domain.Coin, 0, min(len(raw), domain.MaxCoins))
	for _, coin := range raw {
		if coin.ID == "" {
			continue
		}
		coins = append(coins, coin)
		if len(coins) == domain.MaxCoins {
			break
		}
	}
	return coins, nil
}

// parsePriceDetail reads the record for id from a /simple/price response.
// Missing currencies default to zero; a missing or non-object record fails.
func parsePriceDetail(id string, body []byte) (domain.PriceDetail, error) {
	if !gjson.ValidBytes(body) {
		return domain.PriceDetail{}, fmt.Errorf("%w: malformed json", domain.ErrInvalidResponse)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return domain.PriceDetail{}, fmt.Errorf("%w: expected object", domain.ErrInvalidResponse)
	}

	record := member(root, id)
	if !record.Exists() {
		return domain.PriceDetail{}, domain.ErrCoinNotFound
	}
	if !record.IsObject() {
		return domain.PriceDetail{}, fmt.Errorf("%w: record for %s is not an object", domain.ErrInvalidResponse, id)
	}

	return domain.PriceDetail{
		CoinID: id,
		USD:    number(member(record, "usd")).Decimal,
		EUR:    number(member(record, "eur")).Decimal,
		ILS:    number(member(record, "ils")).Decimal,
	}, nil
}

func parseSnapshot(id string, body []byte) (*domain.MarketSnapshot, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed json", domain.ErrInvalidResponse)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected object", domain.ErrInvalidResponse)
	}

	md := root.Get("market_data")
	if !md.IsObject() {
		return nil, fmt.Errorf("%w: market_data missing", domain.ErrInvalidResponse)
	}

	coinID := root.Get("id").String()
	if coinID == "" {
		coinID = id
	}

	return &domain.MarketSnapshot{
		CoinID:       coinID,
		Name:         root.Get("name").String(),
		Symbol:       root.Get("symbol").String(),
		CurrentPrice: currencyAmount(md.Get("current_price")).Decimal,
		MarketCap:    currencyAmount(md.Get("market_cap")).Decimal,
		TotalVolume:  currencyAmount(md.Get("total_volume")).Decimal,
		Change24h:    percentChange(md, "24h"),
		Change30d:    percentChange(md, "30d"),
		Change60d:    percentChange(md, "60d"),
		Change200d:   percentChange(md, "200d"),
	}, nil
}

// percentChange reads price_change_percentage_{period}, falling back to the
// per-currency variant
func percentChange(md gjson.Result, period string) decimal.NullDecimal {
	key := "price_change_percentage_" + period
	if v := currencyAmount(md.Get(key)); v.Valid {
		return v
	}
	return currencyAmount(md.Get(key + "_in_currency"))
}

// currencyAmount normalizes a field that is either a bare number or a record
// keyed by currency. usd wins; otherwise the first numeric member is used.
func currencyAmount(v gjson.Result) decimal.NullDecimal {
	switch {
	case v.Type == gjson.Number:
		return number(v)
	case v.IsObject():
		if usd := number(v.Get("usd")); usd.Valid {
			return usd
		}
		var out decimal.NullDecimal
		v.ForEach(func(_, value gjson.Result) bool {
			out = number(value)
			return !out.Valid
		})
		return out
	default:
		return decimal.NullDecimal{}
	}
}

func number(v gjson.Result) decimal.NullDecimal {
	if v.Type != gjson.Number {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(v.Raw)
	if err != nil {
		return decimal.NewNullDecimal(decimal.NewFromFloat(v.Float()))
	}
	return decimal.NewNullDecimal(d)
}

// member looks up a key without interpreting gjson path syntax
func member(obj gjson.Result, key string) gjson.Result {
	var found gjson.Result
	obj.ForEach(func(k, value gjson.Result) bool {
		if k.String() == key {
			found = value
			return false
		}
		return true
	})
	return found
}
