package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/storefront/internal/models"
	"github.com/magabrotheeeer/storefront/internal/storage"
)

const publicColumns = `id, name, email, gender, role, avatar_public_id, avatar_url,
			      reset_password_token, reset_password_expire, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, withPassword bool) (*models.User, error) {
	u := &models.User{}
	var token sql.NullString
	var expire sql.NullTime
	dest := []any{&u.ID, &u.Name, &u.Email, &u.Gender, &u.Role,
		&u.Avatar.PublicID, &u.Avatar.URL, &token, &expire, &u.CreatedAt}
	if withPassword {
		dest = append(dest, &u.PasswordHash)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if token.Valid && expire.Valid {
		u.SetResetToken(token.String, expire.Time)
	}
	return u, nil
}

func (s *Storage) getOne(ctx context.Context, op, where string, withPassword bool, args ...any) (*models.User, error) {
	cols := publicColumns
	if withPassword {
		cols += ", password_hash"
	}
	query := "SELECT " + cols + " FROM users WHERE " + where
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, args...), withPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

// CreateUser сохраняет нового пользователя. Пустой ID заполняется uuid.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	createdAt := sql.NullTime{Time: user.CreatedAt, Valid: !user.CreatedAt.IsZero()}

	query := `INSERT INTO users (id, name, email, gender, role, avatar_public_id, avatar_url,
			      password_hash, reset_password_token, reset_password_expire, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()))
			  RETURNING created_at;`
	err := s.DB.QueryRowContext(ctx, query,
		user.ID, user.Name, user.Email, user.Gender, user.Role, user.Avatar.PublicID, user.Avatar.URL,
		user.PasswordHash, user.ResetPasswordToken, user.ResetPasswordExpire, createdAt,
	).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	user.MarkPersisted()
	return nil
}

// GetUser возвращает пользователя по ID без хэша пароля.
func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getOne(ctx, "storage.GetUser", "id = $1", false, id)
}

// GetUserWithPassword возвращает пользователя по ID вместе с хэшем пароля.
func (s *Storage) GetUserWithPassword(ctx context.Context, id string) (*models.User, error) {
	return s.getOne(ctx, "storage.GetUserWithPassword", "id = $1", true, id)
}

// GetUserByEmail ищет пользователя по точному совпадению email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getOne(ctx, "storage.GetUserByEmail", "email = $1", false, email)
}

// GetUserByEmailWithPassword ищет пользователя по email и возвращает хэш пароля.
func (s *Storage) GetUserByEmailWithPassword(ctx context.Context, email string) (*models.User, error) {
	return s.getOne(ctx, "storage.GetUserByEmailWithPassword", "email = $1", true, email)
}

// GetUserByResetToken ищет пользователя с совпадающим хэшем токена и неистёкшим сроком.
func (s *Storage) GetUserByResetToken(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	return s.getOne(ctx, "storage.GetUserByResetToken",
		"reset_password_token = $1 AND reset_password_expire > $2", true, hash, now)
}

// SaveUser записывает все поля записи. password_hash обновляется только после SetPassword.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.SaveUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sets := []string{"name = $2", "email = $3", "gender = $4", "role = $5",
		"avatar_public_id = $6", "avatar_url = $7",
		"reset_password_token = $8", "reset_password_expire = $9"}
	args := []any{user.ID, user.Name, user.Email, user.Gender, user.Role,
		user.Avatar.PublicID, user.Avatar.URL, user.ResetPasswordToken, user.ResetPasswordExpire}
	if user.PasswordChanged() {
		sets = append(sets, "password_hash = $10")
		args = append(args, user.PasswordHash)
	}

	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	if err := s.execOne(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	user.MarkPersisted()
	return nil
}

// SetResetToken записывает только поля сброса пароля. nil очищает оба поля.
func (s *Storage) SetResetToken(ctx context.Context, id string, hash *string, expire *time.Time) error {
	const op = "storage.SetResetToken"
	if hash == nil || expire == nil {
		hash, expire = nil, nil
	}
	query := `UPDATE users
			  SET reset_password_token = $2, reset_password_expire = $3
			  WHERE id = $1`
	if err := s.execOne(ctx, query, id, hash, expire); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateProfile меняет только переданные поля профиля.
func (s *Storage) UpdateProfile(ctx context.Context, id string, name, email *string, avatar *models.Avatar) error {
	const op = "storage.UpdateProfile"
	u := patch{args: []any{id}}
	u.set("name", name)
	u.set("email", email)
	if avatar != nil {
		u.set("avatar_public_id", &avatar.PublicID)
		u.set("avatar_url", &avatar.URL)
	}
	if err := s.applyPatch(ctx, id, u); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateUserByAdmin меняет имя, email, пол и роль.
func (s *Storage) UpdateUserByAdmin(ctx context.Context, id string, upd models.AdminUpdate) error {
	const op = "storage.UpdateUserByAdmin"
	u := patch{args: []any{id}}
	u.set("name", upd.Name)
	u.set("email", upd.Email)
	if upd.Gender != nil {
		g := string(*upd.Gender)
		u.set("gender", &g)
	}
	if upd.Role != nil {
		r := string(*upd.Role)
		u.set("role", &r)
	}
	if err := s.applyPatch(ctx, id, u); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListUsers возвращает всех пользователей, старые первыми.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.ListUsers"
	rows, err := s.DB.QueryContext(ctx, "SELECT "+publicColumns+" FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows, false)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeleteUser удаляет пользователя.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	const op = "storage.DeleteUser"
	if err := s.execOne(ctx, "DELETE FROM users WHERE id = $1", id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// execOne выполняет запрос и требует ровно одну затронутую строку.
func (s *Storage) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// patch собирает SET-часть частичного обновления. $1 зарезервирован под id.
type patch struct {
	sets []string
	args []any
}

func (p *patch) set(column string, value *string) {
	if value == nil {
		return
	}
	p.args = append(p.args, *value)
	p.sets = append(p.sets, fmt.Sprintf("%s = $%d", column, len(p.args)))
}

func (s *Storage) applyPatch(ctx context.Context, id string, p patch) error {
	if len(p.sets) == 0 {
		// обновлять нечего, но отсутствие записи должно быть видно
		var exists bool
		err := s.DB.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)", id).Scan(&exists)
		if err != nil {
			return mapError(err)
		}
		if !exists {
			return storage.ErrUserNotFound
		}
		return nil
	}
	return s.execOne(ctx, "UPDATE users SET "+strings.Join(p.sets, ", ")+" WHERE id = $1", p.args...)
}
