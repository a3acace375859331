package postgres_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prxgr4mmer/coin-dashboard-service/internal/adapters/postgres"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/config"
	"github.com/prxgr4mmer/coin-dashboard-service/internal/domain"
)

// Requires TEST_DATABASE_URL pointing at a disposable database
func TestStateRepository(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.NewDB(ctx, config.DatabaseConfig{
		URL:            url,
		MaxOpenConns:   2,
		MigrationsPath: "file://../../../migrations",
	}, slog.Default())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())

	repo := postgres.NewStateRepository(db)
	key := "test-" + time.Now().Format("150405.000000000")

	_, err = repo.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrStateNotFound)

	require.NoError(t, repo.Put(ctx, key, []byte(`["bitcoin"]`)))
	require.NoError(t, repo.Put(ctx, key, []byte(`["bitcoin","ethereum"]`)))

	value, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `["bitcoin","ethereum"]`, string(value))

	assert.NoError(t, repo.Ping(ctx))
}
