// Package middlewarectx содержит HTTP middleware аутентификации, проверки ролей
// и ограничения частоты запросов.
//
// Authenticate берёт токен из cookie "token", а при её отсутствии из заголовка
// Authorization: Bearer. Роль берётся из хранилища, а не из токена, поэтому
// понижение или удаление пользователя действует сразу. Проверенная личность
// кладётся в контекст один раз, обработчики получают её через IdentityFrom.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storefront/internal/http/response"
	"github.com/magabrotheeeer/storefront/internal/http/session"
	"github.com/magabrotheeeer/storefront/internal/lib/sl"
	"github.com/magabrotheeeer/storefront/internal/models"
	"github.com/magabrotheeeer/storefront/internal/storage"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// IdentityKey ключ аутентифицированного пользователя в контексте.
const IdentityKey Key = "identity"

// MsgLoginRequired ответ на запрос без действительной сессии.
const MsgLoginRequired = "Please Login to Access"

// WithIdentity кладёт личность в контекст.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// IdentityFrom достаёт личность, положенную Authenticate.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(models.Identity)
	return id, ok && id.UserID != ""
}

func tokenFrom(r *http.Request) string {
	if t := session.Token(r); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// Authenticate возвращает middleware, проверяющий токен сессии и существование
// его владельца. При ошибке отвечает 401 Unauthorized.
func Authenticate(tokens TokenParser, users UserResolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Authenticate"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			token := tokenFrom(r)
			if token == "" {
				log.Info("missing session token")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(MsgLoginRequired))
				return
			}

			claims, err := tokens.ParseToken(token)
			if err != nil {
				log.Info("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(MsgLoginRequired))
				return
			}

			user, err := users.GetUser(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, storage.ErrUserNotFound) {
					log.Info("token owner no longer exists", slog.String("user_id", claims.UserID))
					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, response.Error(MsgLoginRequired))
					return
				}
				log.Error("failed to resolve token owner", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error(response.GenericMessage))
				return
			}

			ctx := WithIdentity(r.Context(), models.Identity{
				UserID: user.ID,
				Role:   user.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
