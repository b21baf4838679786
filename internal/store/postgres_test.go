package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/incidentdesk/internal/config"
	"github.com/kiranshivaraju/incidentdesk/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns its connection string.
func setupTestDB(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("incidentdesk_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	return connStr
}

func setupPostgresStore(t *testing.T) *store.PostgresStore {
	t.Helper()
	connStr := setupTestDB(t)

	pool, err := pgxpool.New(context.Background(), connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return store.NewPostgresStore(pool)
}

func TestPostgres_Ping(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupPostgresStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestPostgres_GetBlob_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupPostgresStore(t)

	_, err := s.GetBlob(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgres_PutGetOverwrite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupPostgresStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBlob(ctx, "history", []byte(`[{"id":1}]`)))
	require.NoError(t, s.PutBlob(ctx, "history", []byte(`[]`)))

	val, err := s.GetBlob(ctx, "history")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), val)
}

func TestPostgres_StoresArbitraryBytes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupPostgresStore(t)
	ctx := context.Background()

	corrupt := []byte("{not json")
	require.NoError(t, s.PutBlob(ctx, "history", corrupt))

	val, err := s.GetBlob(ctx, "history")
	require.NoError(t, err)
	assert.Equal(t, corrupt, val)
}

func TestPostgres_DeleteBlob(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := setupPostgresStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBlob(ctx, "history", []byte(`[]`)))
	require.NoError(t, s.DeleteBlob(ctx, "history"))
	require.NoError(t, s.DeleteBlob(ctx, "history"))

	_, err := s.GetBlob(ctx, "history")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	connStr := setupTestDB(t)
	assert.NoError(t, store.RunMigrations(connStr, migrationsDir()))
}

func TestConnect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	connStr := setupTestDB(t)

	pool, err := store.Connect(context.Background(), config.DatabaseConfig{
		URL:             connStr,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	defer pool.Close()

	assert.Equal(t, int32(2), pool.Config().MaxConns)
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := store.Connect(context.Background(), config.DatabaseConfig{URL: "://nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse database URL")
}
