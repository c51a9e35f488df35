// Package password реализует функции для безопасного хеширования и проверки паролей.
//
// GetHash создает bcrypt-хеш пароля для безопасного хранения.
// CompareHash сравнивает исходный bcrypt-хеш с введённым паролем, проверяя их соответствие.
// Hasher оборачивает обе функции для внедрения в сервисы.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxBytes наибольшая длина пароля, которую принимает bcrypt.
const MaxBytes = 72

var (
	// ErrEmptyPassword возвращается при попытке захэшировать пустой пароль.
	ErrEmptyPassword = errors.New("password cannot be empty")
	// ErrTooLong пароль длиннее MaxBytes байт.
	ErrTooLong = errors.New("password exceeds 72 bytes")
)

// GetHash принимает пароль пользователя и возвращает его bcrypt‑хэш.
//
// Соль генерируется bcrypt, поэтому два хэша одного пароля различаются.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	if password == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}
	if len(password) > MaxBytes {
		return "", fmt.Errorf("%s: %w", op, ErrTooLong)
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash сравнивает bcrypt‑хэш с введённым паролем.
//
// Возвращает nil, если пароль соответствует хэшу, иначе ошибку.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Hasher хэширует и проверяет пароли через bcrypt.
type Hasher struct{}

// NewHasher создаёт Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Hash возвращает bcrypt-хэш пароля.
func (h *Hasher) Hash(password string) (string, error) {
	return GetHash(password)
}

// Verify сообщает, соответствует ли пароль хэшу.
func (h *Hasher) Verify(password, hash string) bool {
	return CompareHash(hash, password) == nil
}
