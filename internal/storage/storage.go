// Package storage описывает контракт хранилища пользователей и общие ошибки.
//
// Реализации: repository (PostgreSQL), mongo (MongoDB) и memory (в памяти процесса).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/magabrotheeeer/storefront/internal/models"
)

var (
	// ErrUserNotFound пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists email уже занят другим пользователем.
	ErrEmailExists = errors.New("email already exists")
)

// Драйверы хранилища, выбираются через storage.driver в конфигурации.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// UserRepository хранилище учётных записей.
//
// Методы без WithPassword не возвращают хэш пароля.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserWithPassword(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByEmailWithPassword(ctx context.Context, email string) (*models.User, error)
	GetUserByResetToken(ctx context.Context, hash string, now time.Time) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	SetResetToken(ctx context.Context, id string, hash *string, expire *time.Time) error
	UpdateProfile(ctx context.Context, id string, name, email *string, avatar *models.Avatar) error
	UpdateUserByAdmin(ctx context.Context, id string, upd models.AdminUpdate) error
	ListUsers(ctx context.Context) ([]*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}
