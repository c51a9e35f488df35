package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storefront/internal/storage"
	"github.com/magabrotheeeer/storefront/internal/storage/storagetest"
)

func TestStorage_Contract(t *testing.T) {
	storagetest.Run(t, func(_ *testing.T) storage.UserRepository {
		return New()
	})
}

func TestStorage_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := storagetest.NewUser(t, "mia", "mia@example.com")
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	got.Name = "changed"

	again, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "mia", again.Name)
}

func TestStorage_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().ListUsers(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
