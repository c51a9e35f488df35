// Package resettoken выпускает одноразовые токены сброса пароля.
//
// Пользователю по почте уходит случайный токен, в хранилище попадает
// только его SHA-256 дайджест вместе с абсолютным сроком действия.
package resettoken

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// TokenBytes длина случайной части токена в байтах (40 hex-символов).
	TokenBytes = 20
	// DefaultTTL время жизни токена по умолчанию.
	DefaultTTL = 15 * time.Minute
)

// Issuer выпускает токены сброса с фиксированным временем жизни.
type Issuer struct {
	ttl time.Duration
	now func() time.Time
}

// NewIssuer создаёт Issuer. Нулевой ttl заменяется на DefaultTTL.
func NewIssuer(ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{ttl: ttl, now: time.Now}
}

// WithClock подменяет источник времени, используется в тестах.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// TTL возвращает время жизни выпускаемых токенов.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue возвращает сырой токен для письма, его дайджест для хранения и срок действия.
func (i *Issuer) Issue() (raw, hash string, expire time.Time, err error) {
	const op = "resettoken.Issue"
	b := make([]byte, TokenBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	raw = hex.EncodeToString(b)
	return raw, Digest(raw), i.now().Add(i.ttl), nil
}

// Digest вычисляет детерминированный SHA-256 дайджест токена в hex.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
