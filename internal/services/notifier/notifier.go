// Package notifier отправляет письма по событиям аккаунта из очередей RabbitMQ.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/storefront/internal/events"
	"github.com/magabrotheeeer/storefront/internal/lib/sl"
	"github.com/magabrotheeeer/storefront/internal/mail"
	"github.com/magabrotheeeer/storefront/internal/rabbitmq"
)

type Service struct {
	mailer           mail.Mailer
	log              *slog.Logger
	welcomeTemplate  string
	passwordTemplate string
}

// New создаёт сервис уведомлений с идентификаторами шаблонов писем.
func New(mailer mail.Mailer, log *slog.Logger, welcomeTemplate, passwordTemplate string) *Service {
	return &Service{
		mailer:           mailer,
		log:              log,
		welcomeTemplate:  welcomeTemplate,
		passwordTemplate: passwordTemplate,
	}
}

// SendWelcome обрабатывает событие регистрации.
func (s *Service) SendWelcome(ctx context.Context, body []byte) error {
	return s.send(ctx, "notifier.SendWelcome", s.welcomeTemplate, body)
}

// SendPasswordChanged обрабатывает событие смены пароля.
func (s *Service) SendPasswordChanged(ctx context.Context, body []byte) error {
	return s.send(ctx, "notifier.SendPasswordChanged", s.passwordTemplate, body)
}

func (s *Service) send(ctx context.Context, op, templateID string, body []byte) error {
	var e events.UserEvent
	if err := json.Unmarshal(body, &e); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Op(op), sl.Err(err))
		return fmt.Errorf("%s: %w: error unmarshalling message: %v", op, rabbitmq.ErrPermanent, err)
	}
	if e.Email == "" {
		return fmt.Errorf("%s: %w: event without email", op, rabbitmq.ErrPermanent)
	}

	err := s.mailer.Send(ctx, mail.Message{
		To:         e.Email,
		TemplateID: templateID,
		Data:       map[string]string{"name": e.Name, "email": e.Email},
	})
	if err != nil {
		s.log.Error("failed to send notification", sl.Op(op), slog.String("user_id", e.UserID), sl.Err(err))
		if errors.Is(err, mail.ErrUnknownTemplate) {
			return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrPermanent, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("notification sent", sl.Op(op), slog.String("user_id", e.UserID))
	return nil
}
