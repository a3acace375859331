package cryptocompare

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/ports"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/telemetry"
	"github.com/prxgr4mmer/coin-dashboard-service/pkg/retry"
)

const (
	defaultBaseURL = "https://min-api.cryptocompare.com"
	priceMultiPath = "/data/pricemulti"
	quoteCurrency  = "USD"
)

// Client implements the QuoteClient interface for CryptoCompare
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
			c.baseURL = url
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

// WithMetrics sets the metrics sink
func WithMetrics(m *telemetry.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.With("component", "cryptocompare_client")
	}
}

// NewClient creates a new CryptoCompare client
func NewClient(opts ...ClientOption) *Client {
	retryConf := retry.DefaultConfig()
	retryConf.MaxRetries = 2
	retryConf.InitialBackoff = 250 * time.Millisecond

	c := &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:   defaultBaseURL,
		retryConf: retryConf,
		logger:    slog.Default().With("component", "cryptocompare_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetPrices fetches the USD price of every symbol in one batched request.
// The result is keyed by upper-case symbol; symbols the source does not
// know are absent from it.
func (c *Client) GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	fsyms := normalizeSymbols(symbols)
	if len(fsyms) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	return retry.DoWithResult(ctx, c.retryConf, func(ctx context.Context) (result map[string]decimal.Decimal, err error) {
		start := time.Now()
		defer func() {
			c.metrics.ObserveUpstream(telemetry.SourceQuotes, start, err)
		}()

		u, err := url.Parse(c.baseURL + priceMultiPath)
		if err != nil {
			return nil, fmt.Errorf("invalid url: %w", err)
		}
		q := u.Query()
		q.Set("fsyms", strings.Join(fsyms, ","))
		q.Set("tsyms", quoteCurrency)
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("request failed, will retry", "error", err)
			return nil, retry.NewRetryableError(fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			c.logger.Warn("rate limited by quote service")
			return nil, retry.NewRetryableError(domain.ErrRateLimited)
		}

		if resp.StatusCode >= 500 {
			c.logger.Warn("quote server error", "status", resp.StatusCode)
			return nil, retry.NewRetryableError(fmt.Errorf("%w: status %d", domain.ErrQuoteUnavailable, resp.StatusCode))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, retry.NewRetryableError(fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err))
		}

		if resp.StatusCode != http.StatusOK {
			c.logger.Error("unexpected response",
				"status", resp.StatusCode,
				"body", string(body))
			return nil, fmt.Errorf("%w: status %d", domain.ErrInvalidResponse, resp.StatusCode)
		}

		return parsePrices(body)
	})
}

// parsePrices reads a {"SYM":{"USD":n}} mapping. The source reports
// failures with HTTP 200 and a {"Response":"Error"} envelope.
func parsePrices(body []byte) (map[string]decimal.Decimal, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed json", domain.ErrInvalidResponse)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected object", domain.ErrInvalidResponse)
	}

	if root.Get("Response").String() == "Error" {
		msg := root.Get("Message").String()
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, msg)
	}

	prices := make(map[string]decimal.Decimal)
	root.ForEach(func(symbol, record gjson.Result) bool {
		if !record.IsObject() {
			return true
		}
		quote := record.Get(quoteCurrency)
		if quote.Type != gjson.Number {
			return true
		}
		price, err := decimal.NewFromString(quote.Raw)
		if err != nil {
			return true
		}
		prices[strings.ToUpper(symbol.String())] = price
		return true
	})

	return prices, nil
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Ensure Client implements QuoteClient
var _ ports.QuoteClient = (*Client)(nil)
