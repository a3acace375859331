package binance_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/adapters/binance"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
)

const tickers = `[
	{"symbol":"BTCUSDT","price":"43123.45000000"},
	{"symbol":"ETHUSDT","price":"2250.10000000"},
	{"symbol":"ETHBTC","price":"0.05200000"},
	{"symbol":"SOLUSDT","price":"not-a-number"}
]`

func TestClient_GetPrices(t *testing.T) {
	t.Run("filters the usdt pairs of the requested symbols", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
			assert.Empty(t, r.URL.RawQuery)

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(tickers))
		}))
		defer server.Close()

		client := binance.NewClient(
			binance.WithBaseURL(server.URL),
			binance.WithTimeout(5*time.Second),
		)

		prices, err := client.GetPrices(context.Background(), []string{"btc", "ETH", "sol", "doge"})
		require.NoError(t, err)

		assert.Len(t, prices, 2)
		assert.True(t, prices["BTC"].Equal(decimal.RequireFromString("43123.45")))
		assert.True(t, prices["ETH"].Equal(decimal.RequireFromString("2250.1")))
		assert.NotContains(t, prices, "SOL")
		assert.NotContains(t, prices, "DOGE")
	})

	t.Run("no symbols makes no request", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		client := binance.NewClient(binance.WithBaseURL(server.URL))

		prices, err := client.GetPrices(context.Background(), []string{" ", ""})
		require.NoError(t, err)
		assert.Empty(t, prices)
		assert.Zero(t, calls.Load())
	})

	t.Run("handles rate limiting", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= 2 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(tickers))
		}))
		defer server.Close()

		client := binance.NewClient(
			binance.WithBaseURL(server.URL),
			binance.WithRetry(3, 10*time.Millisecond),
		)

		prices, err := client.GetPrices(context.Background(), []string{"BTC"})
		require.NoError(t, err)
		assert.Contains(t, prices, "BTC")
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after retries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := binance.NewClient(
			binance.WithBaseURL(server.URL),
			binance.WithRetry(1, 10*time.Millisecond),
		)

		_, err := client.GetPrices(context.Background(), []string{"BTC"})
		assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
	})

	t.Run("rejects unexpected status without retry", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1100,"msg":"Illegal characters"}`))
		}))
		defer server.Close()

		client := binance.NewClient(
			binance.WithBaseURL(server.URL),
			binance.WithRetry(3, 10*time.Millisecond),
		)

		_, err := client.GetPrices(context.Background(), []string{"BTC"})
		assert.ErrorIs(t, err, domain.ErrInvalidResponse)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v3/ping" {
			w.Write([]byte(`{}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := binance.NewClient(binance.WithBaseURL(server.URL))
	assert.NoError(t, client.Ping(context.Background()))

	down := binance.NewClient(binance.WithBaseURL(server.URL + "/down"))
	assert.ErrorIs(t, down.Ping(context.Background()), domain.ErrQuoteUnavailable)
}
