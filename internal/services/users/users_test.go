package users_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storefront/internal/lib/apperr"
	"github.com/magabrotheeeer/storefront/internal/models"
	"github.com/magabrotheeeer/storefront/internal/services/users"
	"github.com/magabrotheeeer/storefront/internal/storage/memory"
	"github.com/magabrotheeeer/storefront/internal/storage/storagetest"
)

type CacheMock struct {
	mock.Mock
}

func (m *CacheMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func (m *CacheMock) Invalidate(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seed(t *testing.T, store *memory.Storage, names ...string) []*models.User {
	t.Helper()
	out := make([]*models.User, 0, len(names))
	for _, n := range names {
		u := storagetest.NewUser(t, n, n+"@example.com")
		require.NoError(t, store.CreateUser(context.Background(), u))
		out = append(out, u)
	}
	return out
}

func TestService_ListUsers(t *testing.T) {
	store := memory.New()
	seed(t, store, "alice", "bob")
	svc := users.New(discard(), store, nil, time.Minute)

	list, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, u := range list {
		assert.Empty(t, u.PasswordHash)
	}
}

func TestService_GetUser(t *testing.T) {
	store := memory.New()
	u := seed(t, store, "alice")[0]
	svc := users.New(discard(), store, nil, time.Minute)

	got, err := svc.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	_, err = svc.GetUser(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	msg, _ := apperr.MessageOf(err)
	assert.Equal(t, "User doesn't exist with id: nope", msg)
}

func TestService_GetUser_CacheHit(t *testing.T) {
	c := &CacheMock{}
	c.On("Get", mock.Anything, "user:42", mock.Anything).Run(func(args mock.Arguments) {
		*args.Get(2).(*models.User) = models.User{ID: "42", Name: "Cached"}
	}).Return(true, nil).Once()

	svc := users.New(discard(), memory.New(), c, time.Minute)
	got, err := svc.GetUser(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Cached", got.Name)
	c.AssertExpectations(t)
}

func TestService_GetUser_CacheErrorFallsBackToStore(t *testing.T) {
	store := memory.New()
	u := seed(t, store, "alice")[0]
	c := &CacheMock{}
	c.On("Get", mock.Anything, "user:"+u.ID, mock.Anything).Return(false, errors.New("redis down"))
	c.On("Set", mock.Anything, "user:"+u.ID, mock.Anything, time.Minute).Return(errors.New("redis down"))

	svc := users.New(discard(), store, c, time.Minute)
	got, err := svc.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestService_UpdateUser(t *testing.T) {
	store := memory.New()
	seeded := seed(t, store, "alice", "bob")
	alice := seeded[0]

	c := &CacheMock{}
	c.On("Invalidate", mock.Anything, "user:"+alice.ID).Return(nil)
	svc := users.New(discard(), store, c, time.Minute)
	ctx := context.Background()

	badRole := models.Role("root")
	badGender := models.Gender("x")
	taken := "BOB@example.com"
	admin := models.RoleAdmin
	name := "Alice A."

	tests := []struct {
		name    string
		id      string
		upd     models.AdminUpdate
		kind    apperr.Kind
		wantMsg string
	}{
		{name: "invalid role", id: alice.ID, upd: models.AdminUpdate{Role: &badRole}, kind: apperr.Validation, wantMsg: users.MsgInvalidRole},
		{name: "invalid gender", id: alice.ID, upd: models.AdminUpdate{Gender: &badGender}, kind: apperr.Validation, wantMsg: users.MsgInvalidGender},
		{name: "email of another user", id: alice.ID, upd: models.AdminUpdate{Email: &taken}, kind: apperr.Validation, wantMsg: users.MsgEmailTaken},
		{name: "missing user", id: "ghost", upd: models.AdminUpdate{Name: &name}, kind: apperr.NotFound, wantMsg: "User doesn't exist with id: ghost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.UpdateUser(ctx, tt.id, tt.upd)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			msg, _ := apperr.MessageOf(err)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}

	require.NoError(t, svc.UpdateUser(ctx, alice.ID, models.AdminUpdate{Name: &name, Role: &admin}))
	got, err := store.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, "Alice A.", got.Name)
	c.AssertCalled(t, "Invalidate", mock.Anything, "user:"+alice.ID)
}

func TestService_DeleteUser(t *testing.T) {
	store := memory.New()
	u := seed(t, store, "alice")[0]
	svc := users.New(discard(), store, nil, time.Minute)
	ctx := context.Background()

	err := svc.DeleteUser(ctx, "ghost")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	require.NoError(t, svc.DeleteUser(ctx, u.ID))
	_, err = svc.GetUser(ctx, u.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	err = svc.DeleteUser(ctx, u.ID)
	msg, _ := apperr.MessageOf(err)
	assert.Equal(t, "User doesn't exist with id: "+u.ID, msg)
}
