package middlewarectx

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storefront/internal/http/response"
	"github.com/magabrotheeeer/storefront/internal/models"
)

// AuthorizeRoles пропускает только пользователей с одной из ролей.
// Должен стоять после Authenticate.
func AuthorizeRoles(log *slog.Logger, roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(MsgLoginRequired))
				return
			}
			if !slices.Contains(roles, id.Role) {
				log.Info("role is not allowed", slog.String("user_id", id.UserID), slog.String("role", string(id.Role)))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error(fmt.Sprintf("Role: %s is not allowed", id.Role)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
