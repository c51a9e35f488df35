// Package register реализует HTTP-обработчик регистрации пользователя.
//
// Обработчик декодирует JSON, передаёт поля в сервис аутентификации и при успехе
// выставляет cookie сессии и возвращает 201 с профилем и токеном.
package register

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/storefront/internal/http/response"
	"github.com/magabrotheeeer/storefront/internal/lib/sl"
	"github.com/magabrotheeeer/storefront/internal/models"
	"github.com/magabrotheeeer/storefront/internal/services/auth"
)

// Request входные данные регистрации. Обязательность полей проверяет сервис,
// чтобы перечислить все недостающие поля разом.
type Request struct {
	Name     string `json:"name" validate:"max=30"`
	Email    string `json:"email" validate:"max=254"`
	Gender   string `json:"gender"`
	Password string `json:"password" validate:"max=72"`
	Avatar   string `json:"avatar"`
}

// Service описывает сценарий регистрации.
type Service interface {
	Register(ctx context.Context, in auth.RegisterInput) (*models.Session, error)
}

// Cookies выставляет cookie сессии.
type Cookies interface {
	SetToken(w http.ResponseWriter, token string, expires time.Time)
}

// Handler обрабатывает HTTP-запросы регистрации.
type Handler struct {
	log      *slog.Logger
	service  Service
	cookies  Cookies
	validate *validator.Validate
}

func New(log *slog.Logger, service Service, cookies Cookies) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		cookies:  cookies,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Регистрация пользователя
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Данные пользователя"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

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

	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	session, err := h.service.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Gender:   req.Gender,
		Password: req.Password,
		Avatar:   req.Avatar,
	})
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	h.cookies.SetToken(w, session.Token, session.ExpiresAt)
	log.Info("user registered", slog.String("user_id", session.User.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user":  session.User,
		"token": session.Token,
	}))
}
