package coingecko

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/ports"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/resilience"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/telemetry"
	"github.com/prxgr4mmer/coin-dashboard-service/pkg/retry"
)

const (
	defaultBaseURL  = "https://api.coingecko.com/api/v3"
	marketsPath     = "/coins/markets"
	simplePricePath = "/simple/price"
	coinPath        = "/coins/"
	apiKeyHeader    = "x-cg-demo-api-key"

	maxBodySize = 4 << 20
)

// Client implements the MarketDataClient interface for CoinGecko
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	policy     *resilience.Policy[domain.PriceDetail]
	metrics    *telemetry.Metrics
	clock      clock.Clock
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

// WithAPIKey sets the demo API key sent with every request
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithPolicy sets the detail-fetch policy shared with other components
func WithPolicy(p *resilience.Policy[domain.PriceDetail]) ClientOption {
	return func(c *Client) {
		c.policy = p
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *telemetry.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithClock sets the time source used for fetch timestamps and the default policy
func WithClock(clk clock.Clock) ClientOption {
	return func(c *Client) {
		c.clock = clk
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.With("component", "coingecko_client")
	}
}

// NewClient creates a new CoinGecko client. Without WithPolicy the client
// builds its own policy from resilience.DefaultConfig.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: defaultBaseURL,
		clock:   clock.New(),
		logger:  slog.Default().With("component", "coingecko_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.policy == nil {
		p, err := resilience.New[domain.PriceDetail](resilience.DefaultConfig(),
			resilience.WithClock(c.clock),
			resilience.WithLogger(c.logger),
			resilience.WithObserver(c.metrics),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create detail policy: %w", err)
		}
		c.policy = p
	}

	return c, nil
}

// FetchTopCoins fetches the coin list ordered by market cap.
// It is not cached, throttled or retried.
func (c *Client) FetchTopCoins(ctx context.Context) ([]domain.Coin, error) {
	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("order", "market_cap_desc")
	query.Set("per_page", strconv.Itoa(domain.MaxCoins))
	query.Set("page", "1")
	query.Set("sparkline", "false")

	body, err := c.get(ctx, marketsPath, query)
	if err != nil {
		c.logger.Error("failed to fetch coin list", "error", err)
		return nil, domain.NewDomainError(err, domain.MsgCoinsUnavailable, "MARKET_DATA_UNAVAILABLE")
	}

	coins, err := parseCoins(body)
	if err != nil {
		c.logger.Error("failed to decode coin list", "error", err)
		return nil, domain.NewDomainError(err, domain.MsgCoinsUnavailable, "INVALID_RESPONSE")
	}

	c.logger.Debug("fetched coin list", "count", len(coins))
	return coins, nil
}

// FetchMoreInfo returns the usd/eur/ils price of one coin through the
// detail-fetch policy
func (c *Client) FetchMoreInfo(ctx context.Context, id string) (*domain.PriceDetail, error) {
	id = domain.NormalizeCoinID(id)
	if id == "" {
		return nil, domain.ErrInvalidCoinID
	}

	detail, err := c.policy.Do(ctx, id, func(ctx context.Context) (domain.PriceDetail, error) {
		return c.fetchSimplePrice(ctx, id)
	})
	if err != nil {
		return nil, c.detailError(id, err, domain.MsgMoreInfoFailed)
	}

	return &detail, nil
}

// FetchMarketSnapshot returns the extended market data of one coin.
// It honors the rate-limit lock and throttle but is never cached or retried.
func (c *Client) FetchMarketSnapshot(ctx context.Context, id string) (*domain.MarketSnapshot, error) {
	id = domain.NormalizeCoinID(id)
	if id == "" {
		return nil, domain.ErrInvalidCoinID
	}

	if err := c.policy.Guard(ctx); err != nil {
		return nil, c.detailError(id, err, domain.MsgMoreInfoFailed)
	}

	query := url.Values{}
	query.Set("localization", "false")
	query.Set("tickers", "false")
	query.Set("community_data", "false")
	query.Set("developer_data", "false")
	query.Set("sparkline", "false")

	body, err := c.get(ctx, coinPath+url.PathEscape(id), query)
	c.policy.Observe(err)
	if err != nil {
		return nil, c.detailError(id, err, domain.MsgMoreInfoFailed)
	}

	snapshot, err := parseSnapshot(id, body)
	if err != nil {
		c.logger.Error("failed to decode market data", "coin", id, "error", err)
		return nil, c.detailError(id, err, domain.MsgMoreInfoFailed)
	}

	return snapshot, nil
}

// LockRemaining reports how long detail requests stay suspended
func (c *Client) LockRemaining() time.Duration {
	return c.policy.Lock().Remaining()
}

func (c *Client) fetchSimplePrice(ctx context.Context, id string) (domain.PriceDetail, error) {
	query := url.Values{}
	query.Set("ids", id)
	query.Set("vs_currencies", strings.Join(domain.DetailCurrencies, ","))

	body, err := c.get(ctx, simplePricePath, query)
	if err != nil {
		return domain.PriceDetail{}, err
	}

	detail, err := parsePriceDetail(id, body)
	if err != nil {
		return domain.PriceDetail{}, err
	}
	detail.FetchedAt = c.clock.Now()

	return detail, nil
}

// get issues one GET request and classifies the outcome. Transport failures
// and rate-limit responses are retryable; everything else is not.
func (c *Client) get(ctx context.Context, path string, query url.Values) (body []byte, err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveUpstream(telemetry.SourceMarketData, start, err)
	}()

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("request failed", "path", path, "error", err)
		return nil, retry.NewRetryableError(fmt.Errorf("%w: %v", domain.ErrMarketDataUnavailable, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn("rate limited by market data service", "path", path)
		return nil, retry.NewRetryableError(domain.ErrRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrCoinNotFound
	case resp.StatusCode >= 500:
		c.logger.Warn("market data server error", "path", path, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", domain.ErrMarketDataUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("unexpected response",
			"path", path,
			"status", resp.StatusCode,
			"body", string(raw))
		return nil, fmt.Errorf("%w: status %d", domain.ErrInvalidResponse, resp.StatusCode)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, retry.NewRetryableError(fmt.Errorf("%w: %v", domain.ErrMarketDataUnavailable, err))
	}
	return body, nil
}

func (c *Client) detailError(id string, err error, fallback string) error {
	switch {
	case errors.Is(err, resilience.ErrLocked):
		c.logger.Debug("detail request rejected by rate-limit lock", "coin", id)
		return domain.NewDomainError(domain.ErrMarketDataBusy, domain.MsgMarketDataBusy, "MARKET_DATA_BUSY")
	case errors.Is(err, domain.ErrRateLimited):
		return domain.NewDomainError(err, domain.MsgMarketDataBusy, "RATE_LIMITED")
	case errors.Is(err, domain.ErrCoinNotFound):
		return domain.NewDomainError(err, "Coin not found.", "COIN_NOT_FOUND")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		c.logger.Warn("detail request failed", "coin", id, "error", err)
		return domain.NewDomainError(err, fallback, "MARKET_DATA_UNAVAILABLE")
	}
}

// Ensure Client implements MarketDataClient
var _ ports.MarketDataClient = (*Client)(nil)
