// Package session передаёт токен сессии клиенту в HTTP-only cookie.
package session

import (
	"net/http"
	"time"
)

// CookieName имя cookie с токеном сессии.
const CookieName = "token"

// Cookies пишет и очищает cookie сессии.
type Cookies struct {
	Secure bool
	now    func() time.Time
}

func New(secure bool) *Cookies {
	return &Cookies{Secure: secure, now: time.Now}
}

// SetToken выставляет cookie до момента истечения токена.
func (c *Cookies) SetToken(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear сбрасывает cookie. Сам токен остаётся действительным до истечения срока.
func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  c.now(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Token возвращает токен из cookie запроса.
func Token(r *http.Request) string {
	ck, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}
