// Package sender собирает отправщик уведомлений: читает события аккаунта
// из RabbitMQ и отправляет письма.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/storefront/internal/config"
	"github.com/magabrotheeeer/storefront/internal/lib/sl"
	"github.com/magabrotheeeer/storefront/internal/lib/smtp"
	"github.com/magabrotheeeer/storefront/internal/mail"
	"github.com/magabrotheeeer/storefront/internal/rabbitmq"
	"github.com/magabrotheeeer/storefront/internal/services/notifier"
)

type App struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	notifier *notifier.Service
	workers  int
	logger   *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "sender.New"
	if cfg.RabbitMQ.URL == "" {
		return nil, errors.New("rabbitmq url is required for the notification sender")
	}

	mailer, err := mail.NewSMTPMailer(smtp.NewTransport(cfg.SMTP, logger), cfg.Templates.All(), logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, cfg.RabbitMQ.Exchange, rabbitmq.GetNotificationQueues(), cfg.RabbitMQ.Workers)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &App{
		conn:     conn,
		ch:       ch,
		notifier: notifier.New(mailer, logger, cfg.Templates.Welcome.ID, cfg.Templates.PasswordChanged.ID),
		workers:  cfg.RabbitMQ.Workers,
		logger:   logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	handlers := map[string]rabbitmq.Handler{
		rabbitmq.RoutingUserRegistered:      a.notifier.SendWelcome,
		rabbitmq.RoutingUserPasswordChanged: a.notifier.SendPasswordChanged,
	}

	var running []*sync.WaitGroup
	for _, q := range rabbitmq.GetNotificationQueues() {
		wg, err := rabbitmq.ConsumerMessage(ctx, a.ch, q.QueueName, a.workers, a.logger, handlers[q.RoutingKey])
		if err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", q.QueueName), sl.Err(err))
			return err
		}
		running = append(running, wg)
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")
	for _, wg := range running {
		wg.Wait()
	}

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return nil
}
