package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/ports"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/telemetry"
)

// FavoritesKey is the state key the favorites list is persisted under
const FavoritesKey = "favorites"

// FavoritesService implements the ports.FavoritesService interface
type FavoritesService struct {
	store   ports.StateRepository
	metrics *telemetry.Metrics
	logger  *slog.Logger

	mu        sync.Mutex
	favorites *domain.Favorites
	observers []func(ids []string)

	// serializes observer delivery; taken before mu, never while holding it
	notifyMu sync.Mutex
}

// NewFavoritesService creates a new favorites service with an empty set
func NewFavoritesService(store ports.StateRepository, metrics *telemetry.Metrics, logger *slog.Logger) *FavoritesService {
	return &FavoritesService{
		store:     store,
		metrics:   metrics,
		logger:    logger.With("component", "favorites_service"),
		favorites: domain.NewFavorites(),
	}
}

// Load reads the persisted list once at startup. A missing or unreadable
// document leaves the set empty.
func (s *FavoritesService) Load(ctx context.Context) {
	raw, err := s.store.Get(ctx, FavoritesKey)
	if err != nil && !errors.Is(err, domain.ErrStateNotFound) {
		s.logger.Warn("failed to read persisted favorites", "error", err)
	}

	favorites := domain.ParseFavorites(raw)

	s.mu.Lock()
	s.favorites = favorites
	s.mu.Unlock()

	s.logger.Info("favorites loaded", "count", favorites.Len())
	s.notify()
}

// Subscribe registers fn to receive the favorites after every applied mutation
func (s *FavoritesService) Subscribe(fn func(ids []string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// IDs returns the favorites in insertion order
func (s *FavoritesService) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favorites.IDs()
}

// Contains reports whether id is a favorite
func (s *FavoritesService) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favorites.Contains(domain.NormalizeCoinID(id))
}

// Full reports whether the set is at capacity
func (s *FavoritesService) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favorites.Full()
}

// Toggle adds or removes id
func (s *FavoritesService) Toggle(ctx context.Context, id string) domain.MutationResult {
	return s.mutate(ctx, func(f *domain.Favorites) domain.MutationResult {
		return f.Toggle(domain.NormalizeCoinID(id))
	})
}

// Replace evicts removeID and adds addID
func (s *FavoritesService) Replace(ctx context.Context, removeID, addID string) domain.MutationResult {
	return s.mutate(ctx, func(f *domain.Favorites) domain.MutationResult {
		return f.Replace(domain.NormalizeCoinID(removeID), domain.NormalizeCoinID(addID))
	})
}

// mutate applies fn and persists the result while holding the lock, so
// persisted writes happen in mutation order. Observers run after unlock.
func (s *FavoritesService) mutate(ctx context.Context, fn func(*domain.Favorites) domain.MutationResult) domain.MutationResult {
	s.mu.Lock()
	result := fn(s.favorites)
	if !result.Applied() {
		s.mu.Unlock()
		s.logger.Debug("favorites mutation rejected", "reason", result.Reason)
		return result
	}

	s.persist(ctx)
	s.mu.Unlock()

	s.notify()
	return result
}

// persist writes the full list. Failures are logged and swallowed; the
// in-memory set stays authoritative for the session.
func (s *FavoritesService) persist(ctx context.Context) {
	raw, err := s.favorites.MarshalJSON()
	if err != nil {
		s.logger.Warn("failed to encode favorites", "error", err)
		return
	}
	if err := s.store.Put(ctx, FavoritesKey, raw); err != nil {
		s.logger.Warn("failed to persist favorites", "error", err)
	}
}

// notify delivers the current set to every observer. The set is read
// after notifyMu is held, so the last delivery always carries the latest
// state even when mutations race.
func (s *FavoritesService) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	ids := s.favorites.IDs()
	observers := make([]func([]string), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	s.metrics.SetFavorites(len(ids))
	for _, fn := range observers {
		fn(append([]string(nil), ids...))
	}
}

// Ensure FavoritesService implements ports.FavoritesService
var _ ports.FavoritesService = (*FavoritesService)(nil)
