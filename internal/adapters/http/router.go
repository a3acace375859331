package http

import (
	"log/slog"
	"net/http"
)

// NewRouter creates the HTTP router with all routes. metrics serves the
// prometheus exposition and may be nil.
func NewRouter(h *Handler, metrics http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", h.Health)

	// Coins
	mux.HandleFunc("GET /coins", h.ListCoins)
	mux.HandleFunc("POST /coins/refresh", h.RefreshCoins)
	mux.HandleFunc("GET /coins/{id}/info", h.CoinInfo)

	// Favorites
	mux.HandleFunc("GET /favorites", h.ListFavorites)
	mux.HandleFunc("POST /favorites/{id}/toggle", h.ToggleFavorite)
	mux.HandleFunc("POST /favorites/replace", h.ReplaceFavorite)

	// Live prices
	mux.HandleFunc("GET /prices/live", h.LivePrices)

	// Recommendations
	mux.HandleFunc("POST /recommendations/{id}", h.Recommend)

	// Metrics
	mux.HandleFunc("GET /status", h.GetStatus)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	// Apply middleware chain (order matters: outer -> inner)
	var handler http.Handler = mux
	handler = ContentTypeMiddleware(handler)
	handler = CORSMiddleware(handler)
	handler = RecoveryMiddleware(logger)(handler)
	handler = LoggingMiddleware(logger)(handler)

	return handler
}
