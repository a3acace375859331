package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/ports"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/telemetry"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	completionPath = "/chat/completions"
)

// Client implements the InferenceClient interface for OpenAI-compatible
// chat completion endpoints. It never retries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL, e.g. a relay in front of the provider
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithModel sets the model name
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
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

// WithMetrics sets the metrics sink
func WithMetrics(m *telemetry.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.With("component", "inference_client")
	}
}

// NewClient creates a client. An empty apiKey yields an unconfigured client
// whose Complete fails without a network call.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: defaultBaseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   defaultModel,
		logger:  slog.Default().With("component", "inference_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Configured reports whether credentials are present
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// Complete sends prompt as a single user message and returns the content of
// the first choice. Failures are returned as *domain.DomainError carrying a
// displayable message.
func (c *Client) Complete(ctx context.Context, prompt string) (text string, err error) {
	if !c.Configured() {
		return "", domain.NewDomainError(domain.ErrNotConfigured, domain.MsgNotConfigured, "NOT_CONFIGURED")
	}

	start := time.Now()
	defer func() {
		c.metrics.ObserveUpstream(telemetry.SourceInference, start, err)
	}()

	data, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionPath, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Warn("inference request failed", "error", err)
		return "", domain.NewDomainError(
			fmt.Errorf("%w: %v", domain.ErrInferenceUnavailable, err),
			domain.MsgServiceUnavailable, "INFERENCE_UNAVAILABLE")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.NewDomainError(
			fmt.Errorf("%w: %v", domain.ErrInferenceUnavailable, err),
			domain.MsgServiceUnavailable, "INFERENCE_UNAVAILABLE")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("rate limited by inference service")
		return "", domain.NewDomainError(domain.ErrRateLimited, domain.MsgServiceUnavailable, "INFERENCE_RATE_LIMITED")
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("inference service error", "status", resp.StatusCode)
		return "", domain.NewDomainError(
			fmt.Errorf("%w: status %d", domain.ErrInferenceUnavailable, resp.StatusCode),
			upstreamMessage(body), "INFERENCE_ERROR")
	}

	content := gjson.GetBytes(body, "choices.0.message.content")
	text = strings.TrimSpace(content.String())
	if content.Type != gjson.String || text == "" {
		c.logger.Warn("inference service returned no content")
		return "", domain.NewDomainError(domain.ErrEmptyResponse, domain.MsgNoResponse, "EMPTY_RESPONSE")
	}

	return text, nil
}

// upstreamMessage returns error.message when it is a non-empty string,
// otherwise the generic unavailable message
func upstreamMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return domain.MsgServiceUnavailable
	}
	msg := gjson.GetBytes(body, "error.message")
	if msg.Type != gjson.String || strings.TrimSpace(msg.Str) == "" {
		return domain.MsgServiceUnavailable
	}
	return strings.TrimSpace(msg.Str)
}

// Ensure Client implements InferenceClient
var _ ports.InferenceClient = (*Client)(nil)
