// Package users содержит административные операции над учётными записями.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/storefront/internal/cache"
	"github.com/magabrotheeeer/storefront/internal/lib/apperr"
	"github.com/magabrotheeeer/storefront/internal/lib/sl"
	"github.com/magabrotheeeer/storefront/internal/models"
	"github.com/magabrotheeeer/storefront/internal/storage"
)

const (
	MsgInvalidRole   = "Role must be one of: user, admin"
	MsgInvalidGender = "Gender must be one of: male, female, other"
	MsgEmailTaken    = "Email already registered"
	msgUnexpected    = "Something went wrong. Please try again later."
)

// UserRepository операции хранилища для администратора.
type UserRepository interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUserByAdmin(ctx context.Context, id string, upd models.AdminUpdate) error
	DeleteUser(ctx context.Context, id string) error
}

// Cache кеш профилей.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type Service struct {
	log      *slog.Logger
	users    UserRepository
	cache    Cache
	cacheTTL time.Duration
}

// New создаёт сервис. c может быть nil, тогда кеш не используется.
func New(log *slog.Logger, users UserRepository, c Cache, cacheTTL time.Duration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{log: log, users: users, cache: c, cacheTTL: cacheTTL}
}

func notFound(id string, err error) error {
	return apperr.NewNotFound(fmt.Sprintf("User doesn't exist with id: %s", id), err)
}

// ListUsers возвращает всех пользователей без секретных полей.
func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "users.ListUsers"
	list, err := s.users.ListUsers(ctx)
	if err != nil {
		s.log.Error("failed to list users", sl.Op(op), sl.Err(err))
		return nil, apperr.NewUnexpected(msgUnexpected, fmt.Errorf("%s: %w", op, err))
	}
	out := make([]*models.User, 0, len(list))
	for _, u := range list {
		out = append(out, u.Public())
	}
	return out, nil
}

// GetUser возвращает пользователя по id, сначала из кеша.
func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "users.GetUser"
	log := s.log.With(sl.Op(op), slog.String("user_id", id))

	var cached models.User
	found, err := s.cache.Get(ctx, cache.UserKey(id), &cached)
	if err != nil {
		log.Warn("cache read failed", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, notFound(id, err)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, apperr.NewUnexpected(msgUnexpected, fmt.Errorf("%s: %w", op, err))
	}
	u = u.Public()
	if err := s.cache.Set(ctx, cache.UserKey(id), u, s.cacheTTL); err != nil {
		log.Warn("cache write failed", sl.Err(err))
	}
	return u, nil
}

// UpdateUser меняет имя, email, пол и роль пользователя.
func (s *Service) UpdateUser(ctx context.Context, id string, upd models.AdminUpdate) error {
	const op = "users.UpdateUser"
	log := s.log.With(sl.Op(op), slog.String("user_id", id))

	if upd.Role != nil && !upd.Role.Valid() {
		return apperr.NewValidation(MsgInvalidRole)
	}
	if upd.Gender != nil && !upd.Gender.Valid() {
		return apperr.NewValidation(MsgInvalidGender)
	}
	if upd.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*upd.Email))
		upd.Email = &e
	}

	if err := s.users.UpdateUserByAdmin(ctx, id, upd); err != nil {
		switch {
		case errors.Is(err, storage.ErrUserNotFound):
			return notFound(id, err)
		case errors.Is(err, storage.ErrEmailExists):
			return apperr.New(apperr.Validation, MsgEmailTaken, err)
		}
		log.Error("failed to update user", sl.Err(err))
		return apperr.NewUnexpected(msgUnexpected, fmt.Errorf("%s: %w", op, err))
	}
	if err := s.cache.Invalidate(ctx, cache.UserKey(id)); err != nil {
		log.Warn("failed to invalidate cache", sl.Err(err))
	}
	log.Info("user updated by admin")
	return nil
}

// DeleteUser удаляет пользователя.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	const op = "users.DeleteUser"
	log := s.log.With(sl.Op(op), slog.String("user_id", id))

	if err := s.users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return notFound(id, err)
		}
		log.Error("failed to delete user", sl.Err(err))
		return apperr.NewUnexpected(msgUnexpected, fmt.Errorf("%s: %w", op, err))
	}
	if err := s.cache.Invalidate(ctx, cache.UserKey(id)); err != nil {
		log.Warn("failed to invalidate cache", sl.Err(err))
	}
	log.Info("user deleted")
	return nil
}
