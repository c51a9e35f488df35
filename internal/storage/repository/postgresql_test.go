package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/storefront/internal/migrations"
	"github.com/magabrotheeeer/storefront/internal/storage"
	"github.com/magabrotheeeer/storefront/internal/storage/storagetest"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(s.DB, migrationsPath))
	require.NoError(t, CheckDatabaseReady(ctx, s))

	return s
}

func TestStorage_Contract(t *testing.T) {
	s := setupTestDatabase(t)
	storagetest.Run(t, func(t *testing.T) storage.UserRepository {
		_, err := s.DB.Exec("TRUNCATE users")
		require.NoError(t, err)
		return s
	})
}

func TestStorage_NonUUIDIsNotFound(t *testing.T) {
	s := setupTestDatabase(t)

	_, err := s.GetUser(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, storage.ErrUserNotFound)

	err = s.DeleteUser(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, storage.ErrUserNotFound)
}
