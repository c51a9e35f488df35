// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков: успешных ответов,
// ошибок доменного слоя и ошибок валидации запросов.
package response

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/storefront/internal/lib/apperr"
	"github.com/magabrotheeeer/storefront/internal/lib/sl"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status, статус запроса ("OK" или "Error").
// Поле Error, текст ошибки (при неуспехе).
// Поле Data, данные ответа (при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"Invalid Email or Password"`
}

const (
	// StatusOK значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// GenericMessage отдаётся клиенту вместо текста непредвиденных ошибок.
const GenericMessage = "Something went wrong. Please try again later."

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Message успешный ответ с одним текстовым сообщением.
func Message(msg string) Response {
	return StatusOKWithData(map[string]any{"message": msg})
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

// Status сопоставляет вид доменной ошибки с HTTP-статусом.
// Недействительный токен сброса отдаётся как 404.
func Status(err error) int {
	switch apperr.KindOf(err) {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.Authentication:
		if errors.Is(err, apperr.ErrInvalidResetToken) {
			return http.StatusNotFound
		}
		return http.StatusUnauthorized
	case apperr.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage текст ошибки для клиента. Детали непредвиденных ошибок скрываются.
func ClientMessage(err error) string {
	if apperr.KindOf(err) == apperr.Unexpected {
		return GenericMessage
	}
	if msg, ok := apperr.MessageOf(err); ok && msg != "" {
		return msg
	}
	return GenericMessage
}

// WriteError логирует ошибку и пишет ответ со статусом по её виду.
func WriteError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := Status(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.String("kind", apperr.KindOf(err).String()), sl.Err(err))
	} else {
		log.Info("request rejected", slog.String("kind", apperr.KindOf(err).String()), slog.Int("status", status))
	}
	render.Status(r, status)
	render.JSON(w, r, Error(ClientMessage(err)))
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of: %s", err.Field(), strings.ReplaceAll(err.Param(), " ", ", ")))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at most %s characters", err.Field(), err.Param()))
		case "uuid":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only uuid", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}
