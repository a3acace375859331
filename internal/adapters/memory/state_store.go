// Package memory provides a process-local state store, used when no
// database is configured. Stored documents do not survive a restart.
package memory

import (
	"context"
	"sync"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/ports"
)

// StateStore implements ports.StateRepository in memory
type StateStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewStateStore creates an empty store
func NewStateStore() *StateStore {
	return &StateStore{data: make(map[string][]byte)}
}

func (s *StateStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *StateStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *StateStore) Ping(context.Context) error {
	return nil
}

var _ ports.StateRepository = (*StateStore)(nil)
