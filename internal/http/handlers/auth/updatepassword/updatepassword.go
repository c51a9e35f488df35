// Package updatepassword меняет пароль текущего пользователя после проверки старого.
package updatepassword

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storefront/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storefront/internal/http/response"
	"github.com/magabrotheeeer/storefront/internal/lib/sl"
	"github.com/magabrotheeeer/storefront/internal/models"
)

type Request struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type Service interface {
	UpdatePassword(ctx context.Context, id models.Identity, oldPassword, newPassword string) (*models.Session, error)
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
// @Summary Смена пароля
// @Tags Account
// @Accept json
// @Produce json
// @Param request body Request true "Старый и новый пароль"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /password/update [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.updatepassword"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, ok := middlewarectx.IdentityFrom(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error(middlewarectx.MsgLoginRequired))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	session, err := h.service.UpdatePassword(r.Context(), id, req.OldPassword, req.NewPassword)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	h.cookies.SetToken(w, session.Token, session.ExpiresAt)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user":  session.User,
		"token": session.Token,
	}))
}
