package ports

import (
	"context"
)

// StateRepository persists small named JSON documents, such as the favorites list
type StateRepository interface {
	// Get returns the stored document or domain.ErrStateNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the stored document
	Put(ctx context.Context, key string, value []byte) error

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}
