// Package reset меняет пароль по токену из ссылки сброса и открывает новую сессию.
package reset

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storefront/internal/http/response"
	"github.com/magabrotheeeer/storefront/internal/lib/sl"
	"github.com/magabrotheeeer/storefront/internal/models"
)

type Request struct {
	Password string `json:"password"`
}

type Service interface {
	ResetPassword(ctx context.Context, rawToken, newPassword string) (*models.Session, error)
}

type Cookies interface {
	SetToken(w http.ResponseWriter, token string, expires time.Time)
}

type Handler struct {
	log     *slog.Logger
	service Service
	cookies Cookies
}

func New(log *slog.Logger, service Service, cookies Cookies) *Handler {
	return &Handler{log: log, service: service, cookies: cookies}
}

// ServeHTTP godoc
// @Summary Сброс пароля по токену
// @Tags Auth
// @Accept json
// @Produce json
// @Param token path string true "Токен из письма"
// @Param request body Request true "Новый пароль"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /password/reset/{token} [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.reset"

	// Сырой токен не логируется.
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	session, err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	h.cookies.SetToken(w, session.Token, session.ExpiresAt)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user":  session.User,
		"token": session.Token,
	}))
}
