// Package update меняет имя, email, пол и роль пользователя.
package update

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/storefront/internal/http/response"
	"github.com/magabrotheeeer/storefront/internal/lib/sl"
	"github.com/magabrotheeeer/storefront/internal/models"
)

// Request изменяемые поля; отсутствующее поле не меняется.
type Request struct {
	Name   *string `json:"name" validate:"omitempty,max=30"`
	Email  *string `json:"email" validate:"omitempty,email"`
	Gender *string `json:"gender" validate:"omitempty,oneof=male female other"`
	Role   *string `json:"role" validate:"omitempty,oneof=user admin"`
}

type Service interface {
	UpdateUser(ctx context.Context, id string, upd models.AdminUpdate) error
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
// @Summary Изменение пользователя администратором
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "ID пользователя"
// @Param request body Request true "Поля"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/user/{id} [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.update"

	id := chi.URLParam(r, "id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("user_id", id),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	upd := models.AdminUpdate{Name: req.Name, Email: req.Email}
	if req.Gender != nil {
		g := models.Gender(*req.Gender)
		upd.Gender = &g
	}
	if req.Role != nil {
		role := models.Role(*req.Role)
		upd.Role = &role
	}

	if err := h.service.UpdateUser(r.Context(), id, upd); err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"success": true}))
}
