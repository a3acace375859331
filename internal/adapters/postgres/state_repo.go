package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/ports"
)

// StateRepository implements the ports.StateRepository interface
// over the local_state table
type StateRepository struct {
	db *DB
}

// NewStateRepository creates a new PostgreSQL state repository
func NewStateRepository(db *DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get returns the document stored under key
func (r *StateRepository) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT value
		FROM local_state
		WHERE key = $1
	`

	var value []byte
	err := r.db.Pool.QueryRow(ctx, query, key).Scan(&value)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state %q: %w", key, err)
	}

	return value, nil
}

// Put replaces the document stored under key
func (r *StateRepository) Put(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO local_state (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.Pool.Exec(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("failed to put state %q: %w", key, err)
	}

	return nil
}

// Ping checks that the database is reachable
func (r *StateRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Ensure StateRepository implements ports.StateRepository
var _ ports.StateRepository = (*StateRepository)(nil)
