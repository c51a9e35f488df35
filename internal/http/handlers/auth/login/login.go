// Package login реализует HTTP-обработчик входа по email и паролю.
package login

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storefront/internal/http/response"
	"github.com/magabrotheeeer/storefront/internal/lib/sl"
	"github.com/magabrotheeeer/storefront/internal/models"
)

// Request учётные данные.
type Request struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Service описывает сценарий входа.
type Service interface {
	Login(ctx context.Context, email, password string) (*models.Session, error)
}

// Cookies выставляет cookie сессии.
type Cookies interface {
	SetToken(w http.ResponseWriter, token string, expires time.Time)
}

// Handler обрабатывает HTTP-запросы входа.
type Handler struct {
	log     *slog.Logger
	service Service
	cookies Cookies
}

func New(log *slog.Logger, service Service, cookies Cookies) *Handler {
	return &Handler{log: log, service: service, cookies: cookies}
}

// ServeHTTP godoc
// @Summary Вход пользователя
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Учетные данные"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	h.cookies.SetToken(w, session.Token, session.ExpiresAt)
	log.Info("login success", slog.String("user_id", session.User.ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user":  session.User,
		"token": session.Token,
	}))
}
