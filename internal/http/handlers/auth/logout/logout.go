// Package logout очищает cookie сессии. Выданный токен не отзывается
// и остаётся действительным до истечения срока.
package logout

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storefront/internal/http/response"
)

type Cookies interface {
	Clear(w http.ResponseWriter)
}

type Handler struct {
	log     *slog.Logger
	cookies Cookies
}

func New(log *slog.Logger, cookies Cookies) *Handler {
	return &Handler{log: log, cookies: cookies}
}

// ServeHTTP godoc
// @Summary Выход
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Router /logout [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w)
	render.JSON(w, r, response.Message("Logged Out"))
}
