// Package updateprofile меняет имя, email и аватар текущего пользователя.
package updateprofile

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/storefront/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storefront/internal/http/response"
	"github.com/magabrotheeeer/storefront/internal/lib/sl"
	"github.com/magabrotheeeer/storefront/internal/models"
)

// Request изменяемые поля. Пустой avatar оставляет текущее изображение.
type Request struct {
	Name   *string `json:"name" validate:"omitempty,max=30"`
	Email  *string `json:"email" validate:"omitempty,max=254"`
	Avatar *string `json:"avatar"`
}

type Service interface {
	UpdateProfile(ctx context.Context, id models.Identity, upd models.ProfileUpdate) error
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Изменение профиля
// @Tags Account
// @Accept json
// @Produce json
// @Param request body Request true "Поля профиля"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /me/update [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.updateprofile"

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
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	err := h.service.UpdateProfile(r.Context(), id, models.ProfileUpdate{
		Name:   req.Name,
		Email:  req.Email,
		Avatar: req.Avatar,
	})
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	log.Info("profile updated", slog.String("user_id", id.UserID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"success": true}))
}
