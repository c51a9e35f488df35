// Package mail отправляет письма по шаблонам через SMTP.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"text/template"

	"github.com/magabrotheeeer/storefront/internal/config"
	"github.com/magabrotheeeer/storefront/internal/lib/sl"
	"github.com/magabrotheeeer/storefront/internal/lib/smtp"
)

// ErrUnknownTemplate шаблон с таким идентификатором не зарегистрирован.
var ErrUnknownTemplate = errors.New("unknown email template")

// Message письмо по шаблону. Data подставляется в тему и тело.
type Message struct {
	To         string
	TemplateID string
	Data       map[string]string
}

// Mailer синхронная отправка писем.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type compiled struct {
	subject *template.Template
	body    *template.Template
}

// SMTPMailer рендерит шаблон и отправляет письмо через SMTP транспорт.
type SMTPMailer struct {
	transport smtp.TransportInterface
	templates map[string]compiled
	log       *slog.Logger
}

// NewSMTPMailer компилирует шаблоны. Ошибка разбора шаблона возвращается сразу.
func NewSMTPMailer(transport smtp.TransportInterface, templates []config.Template, log *slog.Logger) (*SMTPMailer, error) {
	const op = "mail.NewSMTPMailer"
	m := &SMTPMailer{
		transport: transport,
		templates: make(map[string]compiled, len(templates)),
		log:       log,
	}
	for _, tpl := range templates {
		subject, err := template.New(tpl.ID + ".subject").Option("missingkey=zero").Parse(tpl.Subject)
		if err != nil {
			return nil, fmt.Errorf("%s: template %s: %w", op, tpl.ID, err)
		}
		body, err := template.New(tpl.ID + ".body").Option("missingkey=zero").Parse(tpl.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: template %s: %w", op, tpl.ID, err)
		}
		m.templates[tpl.ID] = compiled{subject: subject, body: body}
	}
	return m, nil
}

// Render возвращает тему и тело письма.
func (m *SMTPMailer) Render(msg Message) (subject, body string, err error) {
	const op = "mail.Render"
	tpl, ok := m.templates[msg.TemplateID]
	if !ok {
		return "", "", fmt.Errorf("%s: %w: %s", op, ErrUnknownTemplate, msg.TemplateID)
	}
	var sb, bb bytes.Buffer
	if err = tpl.subject.Execute(&sb, msg.Data); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	if err = tpl.body.Execute(&bb, msg.Data); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return strings.TrimSpace(sb.String()), bb.String(), nil
}

// Send отправляет письмо и возвращает ошибку доставки вызывающему.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	const op = "mail.Send"
	log := m.log.With(sl.Op(op), slog.String("template", msg.TemplateID))

	subject, body, err := m.Render(msg)
	if err != nil {
		return err
	}

	from := m.transport.Sender()
	raw := strings.Join([]string{
		"From: " + from,
		"To: " + msg.To,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	client, err := m.transport.Connect(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(from); err != nil {
		log.Error("failed to set MAIL FROM", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		log.Error("failed to set RCPT TO", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	wc, err := client.Data()
	if err != nil {
		log.Error("failed to get Data writer", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err = wc.Write([]byte(raw)); err != nil {
		log.Error("failed to write email body", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = wc.Close(); err != nil {
		log.Error("failed to close Data writer", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = client.Quit(); err != nil {
		log.Error("failed to quit SMTP client", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("email sent successfully")
	return nil
}
