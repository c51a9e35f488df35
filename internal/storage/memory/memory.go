// Package memory реализует хранилище пользователей в памяти процесса.
// Используется для локального запуска и тестов сервисов.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/storefront/internal/models"
	"github.com/magabrotheeeer/storefront/internal/storage"
)

// Storage хранит копии записей, наружу отдаются только копии.
type Storage struct {
	mu    sync.RWMutex
	users map[string]*models.User
	now   func() time.Time
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		users: make(map[string]*models.User),
		now:   time.Now,
	}
}

func clone(u *models.User, withPassword bool) *models.User {
	c := *u
	if u.ResetPasswordToken != nil {
		h := *u.ResetPasswordToken
		c.ResetPasswordToken = &h
	}
	if u.ResetPasswordExpire != nil {
		e := *u.ResetPasswordExpire
		c.ResetPasswordExpire = &e
	}
	if !withPassword {
		c.PasswordHash = ""
	}
	c.MarkPersisted()
	return &c
}

func (s *Storage) emailTakenLocked(email, exceptID string) bool {
	for id, u := range s.users {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

// CreateUser сохраняет нового пользователя. Пустой ID заполняется uuid.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	const op = "storage.memory.CreateUser"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTakenLocked(user.Email, "") {
		return fmt.Errorf("%s: %w", op, storage.ErrEmailExists)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	s.users[user.ID] = clone(user, true)
	user.MarkPersisted()
	return nil
}

func (s *Storage) get(ctx context.Context, op string, match func(*models.User) bool, withPassword bool) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return clone(u, withPassword), nil
		}
	}
	return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
}

// GetUser возвращает пользователя по ID без хэша пароля.
func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.get(ctx, "storage.memory.GetUser", func(u *models.User) bool { return u.ID == id }, false)
}

// GetUserWithPassword возвращает пользователя по ID вместе с хэшем пароля.
func (s *Storage) GetUserWithPassword(ctx context.Context, id string) (*models.User, error) {
	return s.get(ctx, "storage.memory.GetUserWithPassword", func(u *models.User) bool { return u.ID == id }, true)
}

// GetUserByEmail ищет по точному совпадению email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.get(ctx, "storage.memory.GetUserByEmail", func(u *models.User) bool { return u.Email == email }, false)
}

// GetUserByEmailWithPassword ищет по email и возвращает хэш пароля.
func (s *Storage) GetUserByEmailWithPassword(ctx context.Context, email string) (*models.User, error) {
	return s.get(ctx, "storage.memory.GetUserByEmailWithPassword", func(u *models.User) bool { return u.Email == email }, true)
}

// GetUserByResetToken ищет пользователя с совпадающим хэшем и неистёкшим сроком.
func (s *Storage) GetUserByResetToken(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	return s.get(ctx, "storage.memory.GetUserByResetToken", func(u *models.User) bool {
		return u.HasActiveResetToken(now) && *u.ResetPasswordToken == hash
	}, true)
}

// SaveUser сохраняет все поля записи. Хэш пароля пишется только после SetPassword.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.memory.SaveUser"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.users[user.ID]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	if s.emailTakenLocked(user.Email, user.ID) {
		return fmt.Errorf("%s: %w", op, storage.ErrEmailExists)
	}
	next := clone(user, true)
	if !user.PasswordChanged() {
		next.PasswordHash = cur.PasswordHash
	}
	next.CreatedAt = cur.CreatedAt
	s.users[user.ID] = next
	user.MarkPersisted()
	return nil
}

// SetResetToken записывает оба поля сброса пароля без валидации остальных полей.
func (s *Storage) SetResetToken(ctx context.Context, id string, hash *string, expire *time.Time) error {
	const op = "storage.memory.SetResetToken"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	if hash == nil || expire == nil {
		u.ClearResetToken()
		return nil
	}
	u.SetResetToken(*hash, *expire)
	return nil
}

// UpdateProfile меняет только переданные поля профиля.
func (s *Storage) UpdateProfile(ctx context.Context, id string, name, email *string, avatar *models.Avatar) error {
	const op = "storage.memory.UpdateProfile"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	if email != nil && s.emailTakenLocked(*email, id) {
		return fmt.Errorf("%s: %w", op, storage.ErrEmailExists)
	}
	if name != nil {
		u.Name = *name
	}
	if email != nil {
		u.Email = *email
	}
	if avatar != nil {
		u.Avatar = *avatar
	}
	return nil
}

// UpdateUserByAdmin меняет имя, email, пол и роль.
func (s *Storage) UpdateUserByAdmin(ctx context.Context, id string, upd models.AdminUpdate) error {
	const op = "storage.memory.UpdateUserByAdmin"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	if upd.Email != nil && s.emailTakenLocked(*upd.Email, id) {
		return fmt.Errorf("%s: %w", op, storage.ErrEmailExists)
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Gender != nil {
		u.Gender = *upd.Gender
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	return nil
}

// ListUsers возвращает всех пользователей, старые первыми.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.memory.ListUsers"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		res = append(res, clone(u, false))
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

// DeleteUser удаляет пользователя.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	const op = "storage.memory.DeleteUser"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	delete(s.users, id)
	return nil
}
