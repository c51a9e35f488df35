package storefront

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/magabrotheeeer/storefront/internal/http/docs"
	"github.com/magabrotheeeer/storefront/internal/http/handlers/admin/list"
	"github.com/magabrotheeeer/storefront/internal/http/handlers/admin/read"
	"github.com/magabrotheeeer/storefront/internal/http/handlers/admin/remove"
	"github.com/magabrotheeeer/storefront/internal/http/handlers/admin/update"
	"github.com/magabrotheeeer/storefront/internal/http/handlers/auth/forgot"
	"github.com/magabrotheeeer/storefront/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/storefront/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/storefront/internal/http/handlers/auth/me"
	"github.com/magabrotheeeer/storefront/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/storefront/internal/http/handlers/auth/reset"
	"github.com/magabrotheeeer/storefront/internal/http/handlers/auth/updatepassword"
	"github.com/magabrotheeeer/storefront/internal/http/handlers/auth/updateprofile"
	"github.com/magabrotheeeer/storefront/internal/http/handlers/health"
	"github.com/magabrotheeeer/storefront/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storefront/internal/http/session"
	"github.com/magabrotheeeer/storefront/internal/models"
	authservice "github.com/magabrotheeeer/storefront/internal/services/auth"
	usersservice "github.com/magabrotheeeer/storefront/internal/services/users"
)

// Deps зависимости маршрутов.
type Deps struct {
	Logger   *slog.Logger
	Auth     *authservice.Service
	Users    *usersservice.Service
	Tokens   middlewarectx.TokenParser
	Accounts middlewarectx.UserResolver // источник актуальной роли владельца токена
	Cookies  *session.Cookies
	Ready    health.Checker
	Limit    float64
	Burst    int
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	logger := d.Logger

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки с общим ограничением частоты
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(middlewarectx.NewLimiter(d.Limit, d.Burst), logger))
			r.Post("/register", register.New(logger, d.Auth, d.Cookies).ServeHTTP)
			r.Post("/login", login.New(logger, d.Auth, d.Cookies).ServeHTTP)
			r.Post("/password/forgot", forgot.New(logger, d.Auth).ServeHTTP)
			r.Put("/password/reset/{token}", reset.New(logger, d.Auth, d.Cookies).ServeHTTP)
		})
		r.Get("/logout", logout.New(logger, d.Cookies).ServeHTTP)

		// Группа с аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.Authenticate(d.Tokens, d.Accounts, logger))
			r.Get("/me", me.New(logger, d.Auth).ServeHTTP)
			r.Put("/me/update", updateprofile.New(logger, d.Auth).ServeHTTP)
			r.Put("/password/update", updatepassword.New(logger, d.Auth, d.Cookies).ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AuthorizeRoles(logger, models.RoleAdmin))
				r.Get("/admin/users", list.New(logger, d.Users).ServeHTTP)
				r.Get("/admin/user/{id}", read.New(logger, d.Users).ServeHTTP)
				r.Put("/admin/user/{id}", update.New(logger, d.Users).ServeHTTP)
				r.Delete("/admin/user/{id}", remove.New(logger, d.Users).ServeHTTP)
			})
		})

		r.Get("/health", health.New(logger, d.Ready).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
