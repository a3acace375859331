package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/ports"
)

// MsgSelectFavorite is returned when a recommendation is requested for a non-favorite
const MsgSelectFavorite = "Add the coin to your favorites to get a recommendation."

// SnapshotSource builds a market snapshot for one coin
type SnapshotSource interface {
	Snapshot(ctx context.Context, id string) (*domain.MarketSnapshot, error)
}

// MembershipChecker reports favorite membership
type MembershipChecker interface {
	Contains(id string) bool
}

// RecommendationService implements the ports.RecommendationService interface.
// Each request is independent: nothing is cached or retried.
type RecommendationService struct {
	favorites MembershipChecker
	market    SnapshotSource
	inference ports.InferenceClient
	clock     clock.Clock
	logger    *slog.Logger
}

// NewRecommendationService creates a new recommendation service.
// A nil favorites checker skips the membership requirement.
func NewRecommendationService(
	favorites MembershipChecker,
	market SnapshotSource,
	inference ports.InferenceClient,
	clk clock.Clock,
	logger *slog.Logger,
) *RecommendationService {
	if clk == nil {
		clk = clock.New()
	}
	return &RecommendationService{
		favorites: favorites,
		market:    market,
		inference: inference,
		clock:     clk,
		logger:    logger.With("component", "recommendation_service"),
	}
}

// Configured reports whether inference credentials are present
func (s *RecommendationService) Configured() bool {
	return s.inference.Configured()
}

// Recommend returns a buy/no-buy opinion for one coin
func (s *RecommendationService) Recommend(ctx context.Context, id string) (*domain.Recommendation, error) {
	if !s.inference.Configured() {
		return nil, domain.NewDomainError(domain.ErrNotConfigured, domain.MsgNotConfigured, "NOT_CONFIGURED")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrInvalidCoinID
	}

	if s.favorites != nil && !s.favorites.Contains(id) {
		return nil, domain.NewDomainError(domain.ErrNotFavorite, MsgSelectFavorite, "NOT_FAVORITE")
	}

	snap, err := s.market.Snapshot(ctx, id)
	if err != nil {
		s.logger.Warn("failed to build market snapshot", "coin", id, "error", err)
		return nil, err
	}

	text, err := s.inference.Complete(ctx, domain.BuildRecommendationPrompt(*snap))
	if err != nil {
		s.logger.Warn("recommendation failed", "coin", id, "error", err)
		if !domain.IsDomainError(err) {
			err = domain.NewDomainError(err, domain.MsgServiceUnavailable, "INFERENCE_UNAVAILABLE")
		}
		return nil, err
	}

	s.logger.Info("recommendation produced", "coin", id, "model", s.inference.Model())

	return &domain.Recommendation{
		CoinID:    snap.CoinID,
		Text:      text,
		Model:     s.inference.Model(),
		CreatedAt: s.clock.Now().UTC(),
	}, nil
}

// Ensure RecommendationService implements ports.RecommendationService
var _ ports.RecommendationService = (*RecommendationService)(nil)
