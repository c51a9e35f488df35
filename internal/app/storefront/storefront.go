// Package storefront собирает HTTP-сервис учётных записей витрины.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/storefront/internal/cache"
	"github.com/magabrotheeeer/storefront/internal/config"
	"github.com/magabrotheeeer/storefront/internal/events"
	"github.com/magabrotheeeer/storefront/internal/http/session"
	"github.com/magabrotheeeer/storefront/internal/lib/jwt"
	"github.com/magabrotheeeer/storefront/internal/lib/password"
	"github.com/magabrotheeeer/storefront/internal/lib/resettoken"
	"github.com/magabrotheeeer/storefront/internal/lib/sl"
	"github.com/magabrotheeeer/storefront/internal/lib/smtp"
	"github.com/magabrotheeeer/storefront/internal/mail"
	"github.com/magabrotheeeer/storefront/internal/media"
	"github.com/magabrotheeeer/storefront/internal/media/s3"
	"github.com/magabrotheeeer/storefront/internal/metrics"
	"github.com/magabrotheeeer/storefront/internal/rabbitmq"
	authservice "github.com/magabrotheeeer/storefront/internal/services/auth"
	usersservice "github.com/magabrotheeeer/storefront/internal/services/users"
)

type App struct {
	server *http.Server
	logger *slog.Logger
	store  *userStore
	redis  *cache.Cache
	amqp   *amqp.Connection
	amqpCh *amqp.Channel
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "storefront.New"
	a := &App{logger: logger}

	store, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	a.store = store

	var profileCache authservice.Cache = cache.Noop{}
	if cfg.RedisConnection.AddressRedis != "" {
		a.redis, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		profileCache = a.redis
	} else {
		logger.Warn("redis address is empty, profile cache disabled")
	}

	var host media.Host
	if cfg.S3.Endpoint != "" {
		host, err = s3.New(ctx, cfg.S3)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		logger.Warn("s3 endpoint is empty, avatars are kept in memory")
		host = media.NewMemoryHost()
	}

	mailer, err := mail.NewSMTPMailer(smtp.NewTransport(cfg.SMTP, logger), cfg.Templates.All(), logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.RabbitMQ.URL != "" {
		a.amqp, err = rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.amqpCh, err = rabbitmq.SetupChannel(a.amqp, cfg.RabbitMQ.Exchange, rabbitmq.GetNotificationQueues(), 0)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		publisher = events.NewAMQPPublisher(a.amqpCh, cfg.RabbitMQ.Exchange, logger)
	} else {
		logger.Warn("rabbitmq url is empty, account events are not published")
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTToken.JWTSecretKey, cfg.JWTToken.TokenTTL)
	authService := authservice.New(logger, store.repo, authservice.Deps{
		Hasher:          password.NewHasher(),
		Sessions:        jwtMaker,
		Resets:          resettoken.NewIssuer(cfg.Reset.TokenTTL),
		Digest:          resettoken.Digest,
		Media:           host,
		Mailer:          mailer,
		Events:          publisher,
		Cache:           profileCache,
		CacheTTL:        cfg.CacheTTL,
		Metrics:         metrics.New(prometheus.DefaultRegisterer),
		ResetTemplateID: cfg.Templates.Reset.ID,
		ResetBaseURL:    cfg.Reset.PublicBaseURL,
	})
	usersService := usersservice.New(logger, store.repo, profileCache, cfg.CacheTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:   logger,
		Auth:     authService,
		Users:    usersService,
		Tokens:   jwtMaker,
		Accounts: store.repo,
		Cookies:  session.New(cfg.JWTToken.CookieSecure),
		Ready:    store.ready,
		Limit:    cfg.HTTPServer.RateLimit,
		Burst:    cfg.HTTPServer.Burst,
	})

	a.server = &http.Server{
		Addr:         cfg.HTTPServer.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.TimeoutHTTP,
		WriteTimeout: cfg.HTTPServer.TimeoutHTTP,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}
	return a, nil
}

func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.amqpCh != nil {
		if err := a.amqpCh.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.store != nil {
		if err := a.store.close(ctx); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}
