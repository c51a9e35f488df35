// Package models содержит доменную модель пользователя витрины:
// учётные данные, профиль, роль и поля сброса пароля.
// Структуры используются в бизнес‑логике, хранилищах и кеше.
package models

import (
	"errors"
	"time"
)

// Role роль пользователя.
type Role string

const (
	// RoleUser роль по умолчанию при регистрации.
	RoleUser Role = "user"
	// RoleAdmin администратор, меняется только через админские операции.
	RoleAdmin Role = "admin"
)

// Valid сообщает, является ли значение допустимой ролью.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Gender пол пользователя.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Valid сообщает, является ли значение допустимым полом.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Avatar ссылка на изображение во внешнем медиа-хранилище.
type Avatar struct {
	PublicID string `json:"public_id" bson:"public_id"`
	URL      string `json:"url" bson:"url"`
}

// PasswordHasher хэширует пароль. Реализация находится в lib/password.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// MaxPasswordBytes предел bcrypt на длину пароля в байтах.
const MaxPasswordBytes = 72

var (
	// ErrEmptyPassword возвращается при попытке установить пустой пароль.
	ErrEmptyPassword = errors.New("password cannot be empty")
	// ErrPasswordTooLong пароль длиннее MaxPasswordBytes байт.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

// ValidatePassword проверяет пароль до хэширования.
func ValidatePassword(plaintext string) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if len(plaintext) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// User представляет зарегистрированного пользователя.
//
// PasswordHash заполняется только при явном запросе хранилища
// (GetUserWithPassword / GetUserByEmailWithPassword) и никогда не отдаётся в JSON.
type User struct {
	ID                  string     `json:"id" bson:"_id"`
	Name                string     `json:"name" bson:"name"`
	Email               string     `json:"email" bson:"email"`
	Gender              Gender     `json:"gender" bson:"gender"`
	Role                Role       `json:"role" bson:"role"`
	Avatar              Avatar     `json:"avatar" bson:"avatar"`
	PasswordHash        string     `json:"-" bson:"password_hash,omitempty"`
	ResetPasswordToken  *string    `json:"-" bson:"reset_password_token,omitempty"`
	ResetPasswordExpire *time.Time `json:"-" bson:"reset_password_expire,omitempty"`
	CreatedAt           time.Time  `json:"created_at" bson:"created_at"`

	passwordChanged bool
}

// SetPassword сразу хэширует пароль и помечает запись как изменённую.
// Полное сохранение записывает хэш только после этого вызова.
func (u *User) SetPassword(hasher PasswordHasher, plaintext string) error {
	if err := ValidatePassword(plaintext); err != nil {
		return err
	}
	hash, err := hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.passwordChanged = true
	return nil
}

// PasswordChanged сообщает, был ли пароль изменён после загрузки записи.
func (u *User) PasswordChanged() bool {
	return u.passwordChanged
}

// MarkPersisted сбрасывает признак изменения пароля после успешного сохранения.
func (u *User) MarkPersisted() {
	u.passwordChanged = false
}

// SetResetToken выставляет хэш токена сброса и срок его действия одновременно.
func (u *User) SetResetToken(hash string, expire time.Time) {
	u.ResetPasswordToken = &hash
	u.ResetPasswordExpire = &expire
}

// ClearResetToken очищает оба поля сброса пароля.
func (u *User) ClearResetToken() {
	u.ResetPasswordToken = nil
	u.ResetPasswordExpire = nil
}

// HasActiveResetToken сообщает, есть ли у пользователя неистёкший токен сброса.
func (u *User) HasActiveResetToken(now time.Time) bool {
	return u.ResetPasswordToken != nil && u.ResetPasswordExpire != nil && u.ResetPasswordExpire.After(now)
}

// Public возвращает копию пользователя без секретных полей.
func (u *User) Public() *User {
	c := *u
	c.PasswordHash = ""
	c.ClearResetToken()
	c.passwordChanged = false
	return &c
}

// Identity аутентифицированный пользователь, извлечённый из сессии
// на границе HTTP и явно передаваемый в сервисы.
type Identity struct {
	UserID string
	Role   Role
}

// ProfileUpdate описывает самостоятельное изменение профиля.
// nil означает «не менять поле».
type ProfileUpdate struct {
	Name   *string
	Email  *string
	Avatar *string // data URI нового изображения
}

// AdminUpdate описывает изменение пользователя администратором.
type AdminUpdate struct {
	Name   *string
	Email  *string
	Gender *Gender
	Role   *Role
}

// Session выданный пользователю токен сессии.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}
