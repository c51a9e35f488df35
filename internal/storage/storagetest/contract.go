// Package storagetest содержит общий набор проверок для реализаций storage.UserRepository.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storefront/internal/models"
	"github.com/magabrotheeeer/storefront/internal/storage"
)

// plainHasher сохраняет пароль с префиксом, bcrypt в этих проверках не нужен.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

// NewUser возвращает пользователя с уже установленным паролем.
func NewUser(t *testing.T, name, email string) *models.User {
	t.Helper()
	u := &models.User{
		ID:     uuid.NewString(),
		Name:   name,
		Email:  email,
		Gender: models.GenderOther,
		Role:   models.RoleUser,
		Avatar: models.Avatar{PublicID: "avatars/" + name, URL: "https://media.local/avatars/" + name},
	}
	require.NoError(t, u.SetPassword(plainHasher{}, "secret-"+name))
	return u
}

// Run прогоняет контракт хранилища. newRepo должен возвращать пустое хранилище.
func Run(t *testing.T, newRepo func(t *testing.T) storage.UserRepository) {
	ctx := context.Background()

	t.Run("create and read projections", func(t *testing.T) {
		repo := newRepo(t)
		u := NewUser(t, "alice", "alice@example.com")
		require.NoError(t, repo.CreateUser(ctx, u))
		assert.False(t, u.PasswordChanged())

		got, err := repo.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Name)
		assert.Equal(t, "alice@example.com", got.Email)
		assert.Equal(t, models.RoleUser, got.Role)
		assert.Equal(t, u.Avatar, got.Avatar)
		assert.Empty(t, got.PasswordHash)

		withPass, err := repo.GetUserWithPassword(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "hashed:secret-alice", withPass.PasswordHash)

		byEmail, err := repo.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)
		assert.Empty(t, byEmail.PasswordHash)

		byEmailPass, err := repo.GetUserByEmailWithPassword(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, "hashed:secret-alice", byEmailPass.PasswordHash)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.CreateUser(ctx, NewUser(t, "a", "dup@example.com")))
		err := repo.CreateUser(ctx, NewUser(t, "b", "dup@example.com"))
		assert.ErrorIs(t, err, storage.ErrEmailExists)
	})

	t.Run("missing user", func(t *testing.T) {
		repo := newRepo(t)
		missing := uuid.NewString()

		_, err := repo.GetUser(ctx, missing)
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
		_, err = repo.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
		assert.ErrorIs(t, repo.DeleteUser(ctx, missing), storage.ErrUserNotFound)

		role := models.RoleAdmin
		err = repo.UpdateUserByAdmin(ctx, missing, models.AdminUpdate{Role: &role})
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})

	t.Run("email lookup is exact", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.CreateUser(ctx, NewUser(t, "c", "case@example.com")))
		_, err := repo.GetUserByEmail(ctx, "CASE@example.com")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})

	t.Run("save without password change keeps hash", func(t *testing.T) {
		repo := newRepo(t)
		u := NewUser(t, "dave", "dave@example.com")
		require.NoError(t, repo.CreateUser(ctx, u))

		loaded, err := repo.GetUser(ctx, u.ID)
		require.NoError(t, err)
		loaded.Name = "David"
		require.NoError(t, repo.SaveUser(ctx, loaded))

		got, err := repo.GetUserWithPassword(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "David", got.Name)
		assert.Equal(t, "hashed:secret-dave", got.PasswordHash)
	})

	t.Run("save after password change writes hash once", func(t *testing.T) {
		repo := newRepo(t)
		u := NewUser(t, "erin", "erin@example.com")
		require.NoError(t, repo.CreateUser(ctx, u))

		loaded, err := repo.GetUserWithPassword(ctx, u.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.SetPassword(plainHasher{}, "new-pass"))
		require.NoError(t, repo.SaveUser(ctx, loaded))
		assert.False(t, loaded.PasswordChanged())

		got, err := repo.GetUserWithPassword(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "hashed:new-pass", got.PasswordHash)
	})

	t.Run("reset token lookup honours expiry", func(t *testing.T) {
		repo := newRepo(t)
		u := NewUser(t, "frank", "frank@example.com")
		require.NoError(t, repo.CreateUser(ctx, u))

		now := time.Now().UTC().Truncate(time.Millisecond)
		hash := "digest-frank"
		expire := now.Add(15 * time.Minute)
		require.NoError(t, repo.SetResetToken(ctx, u.ID, &hash, &expire))

		got, err := repo.GetUserByResetToken(ctx, hash, now)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		require.NotNil(t, got.ResetPasswordToken)
		require.NotNil(t, got.ResetPasswordExpire)
		assert.Equal(t, hash, *got.ResetPasswordToken)
		assert.WithinDuration(t, expire, *got.ResetPasswordExpire, time.Millisecond)

		_, err = repo.GetUserByResetToken(ctx, hash, now.Add(16*time.Minute))
		assert.ErrorIs(t, err, storage.ErrUserNotFound)

		_, err = repo.GetUserByResetToken(ctx, "other", now)
		assert.ErrorIs(t, err, storage.ErrUserNotFound)

		require.NoError(t, repo.SetResetToken(ctx, u.ID, nil, nil))
		_, err = repo.GetUserByResetToken(ctx, hash, now)
		assert.ErrorIs(t, err, storage.ErrUserNotFound)

		cleared, err := repo.GetUserWithPassword(ctx, u.ID)
		require.NoError(t, err)
		assert.Nil(t, cleared.ResetPasswordToken)
		assert.Nil(t, cleared.ResetPasswordExpire)
		assert.Equal(t, "hashed:secret-frank", cleared.PasswordHash)
	})

	t.Run("save clears reset token", func(t *testing.T) {
		repo := newRepo(t)
		u := NewUser(t, "gina", "gina@example.com")
		require.NoError(t, repo.CreateUser(ctx, u))
		hash := "digest-gina"
		expire := time.Now().Add(time.Hour)
		require.NoError(t, repo.SetResetToken(ctx, u.ID, &hash, &expire))

		loaded, err := repo.GetUserByResetToken(ctx, hash, time.Now())
		require.NoError(t, err)
		require.NoError(t, loaded.SetPassword(plainHasher{}, "after-reset"))
		loaded.ClearResetToken()
		require.NoError(t, repo.SaveUser(ctx, loaded))

		got, err := repo.GetUserWithPassword(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "hashed:after-reset", got.PasswordHash)
		assert.Nil(t, got.ResetPasswordToken)
		assert.Nil(t, got.ResetPasswordExpire)
	})

	t.Run("update profile touches only given fields", func(t *testing.T) {
		repo := newRepo(t)
		u := NewUser(t, "hank", "hank@example.com")
		require.NoError(t, repo.CreateUser(ctx, u))

		name := "Henry"
		require.NoError(t, repo.UpdateProfile(ctx, u.ID, &name, nil, nil))
		got, err := repo.GetUserWithPassword(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Henry", got.Name)
		assert.Equal(t, "hank@example.com", got.Email)
		assert.Equal(t, u.Avatar, got.Avatar)
		assert.Equal(t, "hashed:secret-hank", got.PasswordHash)

		email := "henry@example.com"
		avatar := models.Avatar{PublicID: "avatars/new", URL: "https://media.local/avatars/new"}
		require.NoError(t, repo.UpdateProfile(ctx, u.ID, nil, &email, &avatar))
		got, err = repo.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "henry@example.com", got.Email)
		assert.Equal(t, avatar, got.Avatar)

		require.NoError(t, repo.CreateUser(ctx, NewUser(t, "ivy", "ivy@example.com")))
		taken := "ivy@example.com"
		err = repo.UpdateProfile(ctx, u.ID, nil, &taken, nil)
		assert.ErrorIs(t, err, storage.ErrEmailExists)
	})

	t.Run("admin update changes role", func(t *testing.T) {
		repo := newRepo(t)
		u := NewUser(t, "jack", "jack@example.com")
		require.NoError(t, repo.CreateUser(ctx, u))

		role := models.RoleAdmin
		gender := models.GenderMale
		require.NoError(t, repo.UpdateUserByAdmin(ctx, u.ID, models.AdminUpdate{Role: &role, Gender: &gender}))

		got, err := repo.GetUserWithPassword(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, got.Role)
		assert.Equal(t, models.GenderMale, got.Gender)
		assert.Equal(t, "jack", got.Name)
		assert.Equal(t, "hashed:secret-jack", got.PasswordHash)
	})

	t.Run("list and delete", func(t *testing.T) {
		repo := newRepo(t)
		first := NewUser(t, "kate", "kate@example.com")
		first.CreatedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
		second := NewUser(t, "liam", "liam@example.com")
		second.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, repo.CreateUser(ctx, second))
		require.NoError(t, repo.CreateUser(ctx, first))

		users, err := repo.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, first.ID, users[0].ID)
		assert.Equal(t, second.ID, users[1].ID)
		for _, u := range users {
			assert.Empty(t, u.PasswordHash)
		}

		require.NoError(t, repo.DeleteUser(ctx, first.ID))
		_, err = repo.GetUser(ctx, first.ID)
		assert.ErrorIs(t, err, storage.ErrUserNotFound)

		users, err = repo.ListUsers(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})
}
