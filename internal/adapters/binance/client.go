package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/ports"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/telemetry"
	"github.com/prxgr4mmer/coin-dashboard-service/pkg/retry"
)

const (
	defaultBaseURL = "https://api.binance.com"
	tickerPath     = "/api/v3/ticker/price"
	pingPath       = "/api/v3/ping"

	// USD prices are read from the USDT pairs
	quoteAsset = "USDT"
)

// Client implements the QuoteClient interface on Binance spot tickers
type Client struct {
	httpClient *http.Client
	baseURL    string
	retryConf  retry.Config
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRetry configures retry behavior
func WithRetry(maxRetries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.retryConf.MaxRetries = maxRetries
		c.retryConf.InitialBackoff = backoff
	}
}

// WithMetrics sets the upstream request collectors
func WithMetrics(m *telemetry.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.With("component", "binance_client")
	}
}

// NewClient creates a new Binance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:   defaultBaseURL,
		retryConf: retry.DefaultConfig(),
		logger:    slog.Default().With("component", "binance_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// tickerResponse represents the Binance API ticker response
type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetPrices fetches every spot ticker in one request and keeps the USDT
// pairs of the requested symbols. The batched endpoint rejects the whole
// call when one pair does not exist, so the full ticker list is filtered
// locally instead.
func (c *Client) GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	wanted := make(map[string]string, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		wanted[s+quoteAsset] = s
	}
	if len(wanted) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	tickers, err := c.fetchTickers(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[string]decimal.Decimal, len(wanted))
	for _, t := range tickers {
		symbol, ok := wanted[t.Symbol]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			c.logger.Warn("invalid price format", "symbol", t.Symbol, "price", t.Price)
			continue
		}
		result[symbol] = price
	}

	return result, nil
}

func (c *Client) fetchTickers(ctx context.Context) ([]tickerResponse, error) {
	return retry.DoWithResult(ctx, c.retryConf, func(ctx context.Context) (tickers []tickerResponse, err error) {
		start := time.Now()
		defer func() {
			c.metrics.ObserveUpstream(telemetry.SourceQuotes, start, err)
		}()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tickerPath, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("request failed, will retry", "error", err)
			return nil, retry.NewRetryableError(fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot {
			// 418 is sent once a client keeps going after 429s
			c.logger.Warn("rate limited by exchange", "status", resp.StatusCode)
			return nil, retry.NewRetryableError(domain.ErrRateLimited)
		}

		if resp.StatusCode >= 500 {
			c.logger.Warn("exchange server error", "status", resp.StatusCode)
			return nil, retry.NewRetryableError(fmt.Errorf("%w: status %d", domain.ErrQuoteUnavailable, resp.StatusCode))
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			c.logger.Error("unexpected response",
				"status", resp.StatusCode,
				"body", string(body))
			return nil, fmt.Errorf("%w: status %d", domain.ErrInvalidResponse, resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
			c.logger.Error("failed to decode response", "error", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
		}

		return tickers, nil
	})
}

// Ping checks if Binance API is reachable
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pingPath, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", domain.ErrQuoteUnavailable, resp.StatusCode)
	}

	return nil
}

// Ensure Client implements QuoteClient
var _ ports.QuoteClient = (*Client)(nil)
