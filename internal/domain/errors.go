package domain

import "errors"

var (
	// Coin errors
	ErrInvalidCoinID = errors.New("invalid coin id")
	ErrCoinNotFound  = errors.New("coin not found")
	ErrNotFavorite   = errors.New("coin is not a favorite")

	// Upstream market data errors
	ErrMarketDataUnavailable = errors.New("market data service unavailable")
	ErrMarketDataBusy        = errors.New("market data requests suspended after rate limit")
	ErrQuoteUnavailable      = errors.New("price quote service unavailable")
	ErrRateLimited           = errors.New("rate limited by upstream service")
	ErrInvalidResponse       = errors.New("invalid response from upstream service")

	// Recommendation errors
	ErrNotConfigured        = errors.New("inference service not configured")
	ErrInferenceUnavailable = errors.New("inference service unavailable")
	ErrEmptyResponse        = errors.New("empty response from inference service")

	// Persistence errors
	ErrStateNotFound      = errors.New("persisted state not found")
	ErrDatabaseConnection = errors.New("database connection error")

	// General errors
	ErrInternal = errors.New("internal server error")
)

// User-facing messages attached to DomainError values
const (
	MsgCoinsUnavailable   = "Failed to load coins. Please try again."
	MsgMarketDataBusy     = "Too many requests. Please wait a few seconds and try again."
	MsgMoreInfoFailed     = "Failed to load price details. Please try again."
	MsgQuotesUnavailable  = "Live prices are temporarily unavailable."
	MsgServiceUnavailable = "The AI service is temporarily unavailable. Please try again later."
	MsgNoResponse         = "No response was received from the AI service."
	MsgNotConfigured      = "AI recommendations are not configured."
)

// DomainError wraps domain errors with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error with context
func NewDomainError(err error, message, code string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// IsDomainError checks if the error is a domain error
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// UserMessage returns the human-readable message carried by err,
// or fallback when err carries none
func UserMessage(err error, fallback string) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return fallback
}
