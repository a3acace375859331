package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/ports"
)

// Handler contains all HTTP handlers
type Handler struct {
	market          ports.MarketService
	favorites       ports.FavoritesService
	live            ports.LivePriceService
	recommendations ports.RecommendationService
	metricsSvc      ports.MetricsService
	store           ports.StateRepository
	logger          *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(
	market ports.MarketService,
	favorites ports.FavoritesService,
	live ports.LivePriceService,
	recommendations ports.RecommendationService,
	metricsSvc ports.MetricsService,
	store ports.StateRepository,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		market:          market,
		favorites:       favorites,
		live:            live,
		recommendations: recommendations,
		metricsSvc:      metricsSvc,
		store:           store,
		logger:          logger.With("component", "http_handler"),
	}
}

// Health returns service health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := ports.HealthStatus{
		Status:          "healthy",
		StateStore:      "healthy",
		MarketData:      "available",
		Recommendations: "configured",
	}

	checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(checkCtx); err != nil {
		h.logger.Warn("state store ping failed", "error", err)
		health.StateStore = "unhealthy"
		health.Status = "degraded"
	}

	if remaining := h.market.LockRemaining(); remaining > 0 {
		health.MarketData = "rate_limited"
		health.LockRemainingSeconds = remaining.Seconds()
	}

	if !h.recommendations.Configured() {
		health.Recommendations = "not_configured"
	}

	respondJSON(w, http.StatusOK, health)
}

// CoinsResponse is the loaded coin list
type CoinsResponse struct {
	Coins    []domain.Coin `json:"coins"`
	LoadedAt *time.Time    `json:"loaded_at"`
}

// ListCoins returns the loaded coin list
func (h *Handler) ListCoins(w http.ResponseWriter, r *http.Request) {
	coins := h.market.Coins()
	if coins == nil {
		coins = []domain.Coin{}
	}

	respondJSON(w, http.StatusOK, CoinsResponse{
		Coins:    coins,
		LoadedAt: h.market.LoadedAt(),
	})
}

// RefreshCoins refetches the coin list; this is the manual retry after a failed load
func (h *Handler) RefreshCoins(w http.ResponseWriter, r *http.Request) {
	coins, err := h.market.LoadCoins(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CoinsResponse{
		Coins:    coins,
		LoadedAt: h.market.LoadedAt(),
	})
}

// CoinInfo returns the multi-currency price of one coin
func (h *Handler) CoinInfo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "coin id is required")
		return
	}

	detail, err := h.market.MoreInfo(r.Context(), id)
	if err != nil {
		if remaining := h.market.LockRemaining(); remaining > 0 {
			w.Header().Set("Retry-After", retryAfter(remaining))
		}
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

// FavoritesResponse describes the favorites set
type FavoritesResponse struct {
	IDs  []string `json:"ids"`
	Full bool     `json:"full"`
	Max  int      `json:"max"`
}

// MutationResponse reports the outcome of a favorites mutation
type MutationResponse struct {
	domain.MutationResult
	Applied          bool              `json:"applied"`
	NeedsReplacement bool              `json:"needs_replacement"`
	Favorites        FavoritesResponse `json:"favorites"`
}

// ListFavorites returns the favorites set
func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.favoritesResponse())
}

// ToggleFavorite adds or removes one favorite. A full set is reported with
// needs_replacement so the caller can ask which member to evict.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "coin id is required")
		return
	}

	result := h.favorites.Toggle(r.Context(), id)
	h.respondMutation(w, result)
}

// ReplaceRequest represents the request body for replacing a favorite
type ReplaceRequest struct {
	Remove string `json:"remove"`
	Add    string `json:"add"`
}

// ReplaceFavorite evicts one favorite and adds another
func (h *Handler) ReplaceFavorite(w http.ResponseWriter, r *http.Request) {
	var req ReplaceRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Add) == "" {
		respondError(w, http.StatusBadRequest, "add is required")
		return
	}

	result := h.favorites.Replace(r.Context(), req.Remove, req.Add)
	h.respondMutation(w, result)
}

func (h *Handler) respondMutation(w http.ResponseWriter, result domain.MutationResult) {
	respondJSON(w, http.StatusOK, MutationResponse{
		MutationResult:   result,
		Applied:          result.Applied(),
		NeedsReplacement: !result.Added && result.Reason == domain.RejectCapacity,
		Favorites:        h.favoritesResponse(),
	})
}

func (h *Handler) favoritesResponse() FavoritesResponse {
	ids := h.favorites.IDs()
	if ids == nil {
		ids = []string{}
	}
	return FavoritesResponse{
		IDs:  ids,
		Full: h.favorites.Full(),
		Max:  domain.MaxFavorites,
	}
}

// LivePricesResponse is the live price history with the last poll error
type LivePricesResponse struct {
	Points []domain.PricePoint `json:"points"`
	Error  string              `json:"error,omitempty"`
}

// LivePrices returns the live price history
func (h *Handler) LivePrices(w http.ResponseWriter, r *http.Request) {
	points := h.live.History()
	if points == nil {
		points = []domain.PricePoint{}
	}

	resp := LivePricesResponse{Points: points}
	if err := h.live.LastError(); err != nil {
		resp.Error = domain.UserMessage(err, domain.MsgQuotesUnavailable)
	}

	respondJSON(w, http.StatusOK, resp)
}

// Recommend returns a buy/no-buy opinion for one favorite
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "coin id is required")
		return
	}

	rec, err := h.recommendations.Recommend(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// GetStatus returns operational metrics
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.metricsSvc.GetMetrics(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, metrics)
}

func retryAfter(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
