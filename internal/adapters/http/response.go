package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
)

// Response helpers for consistent JSON responses

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondErrorWithCode sends an error response with an error code
func respondErrorWithCode(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleDomainError maps domain errors to HTTP responses. The message and
// code carried by a DomainError win over the defaults.
func handleDomainError(w http.ResponseWriter, err error) {
	status, message, code := classify(err)

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		if domainErr.Message != "" {
			message = domainErr.Message
		}
		if domainErr.Code != "" {
			code = domainErr.Code
		}
	}

	respondErrorWithCode(w, status, message, code)
}

func classify(err error) (status int, message, code string) {
	switch {
	case errors.Is(err, domain.ErrInvalidCoinID):
		return http.StatusBadRequest, "invalid coin id", "INVALID_COIN_ID"

	case errors.Is(err, domain.ErrCoinNotFound):
		return http.StatusNotFound, "coin not found", "COIN_NOT_FOUND"

	case errors.Is(err, domain.ErrNotFavorite):
		return http.StatusConflict, "coin is not a favorite", "NOT_FAVORITE"

	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusServiceUnavailable, domain.MsgNotConfigured, "NOT_CONFIGURED"

	case errors.Is(err, domain.ErrMarketDataBusy), errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, domain.MsgMarketDataBusy, "RATE_LIMITED"

	case errors.Is(err, domain.ErrEmptyResponse):
		return http.StatusBadGateway, domain.MsgNoResponse, "EMPTY_RESPONSE"

	case errors.Is(err, domain.ErrInvalidResponse):
		return http.StatusBadGateway, "invalid response from upstream service", "INVALID_RESPONSE"

	case errors.Is(err, domain.ErrMarketDataUnavailable),
		errors.Is(err, domain.ErrQuoteUnavailable),
		errors.Is(err, domain.ErrInferenceUnavailable):
		return http.StatusServiceUnavailable, "upstream service unavailable", "UPSTREAM_UNAVAILABLE"

	case errors.Is(err, domain.ErrDatabaseConnection):
		return http.StatusServiceUnavailable, "database connection error", "DATABASE_ERROR"

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream request timed out", "TIMEOUT"

	default:
		return http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR"
	}
}
