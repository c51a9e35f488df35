// Package events публикует асинхронные уведомления об изменениях аккаунта.
//
// Публикация выполняется после успешного завершения операции и не влияет на её результат.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/storefront/internal/lib/sl"
	"github.com/magabrotheeeer/storefront/internal/rabbitmq"
)

// UserEvent тело события пользователя.
type UserEvent struct {
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher публикует события аккаунта.
type Publisher interface {
	UserRegistered(ctx context.Context, e UserEvent)
	PasswordChanged(ctx context.Context, e UserEvent)
}

// AMQPPublisher публикует события в direct-обменник RabbitMQ.
// Ошибки публикации только логируются.
type AMQPPublisher struct {
	mu       sync.Mutex
	ch       rabbitmq.Channel
	exchange string
	log      *slog.Logger
}

func NewAMQPPublisher(ch rabbitmq.Channel, exchange string, log *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange, log: log}
}

func (p *AMQPPublisher) UserRegistered(ctx context.Context, e UserEvent) {
	p.publish(ctx, rabbitmq.RoutingUserRegistered, e)
}

func (p *AMQPPublisher) PasswordChanged(ctx context.Context, e UserEvent) {
	p.publish(ctx, rabbitmq.RoutingUserPasswordChanged, e)
}

func (p *AMQPPublisher) publish(ctx context.Context, key string, e UserEvent) {
	const op = "events.publish"
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	// amqp.Channel не допускает конкурентную публикацию
	p.mu.Lock()
	err := rabbitmq.PublishMessage(ctx, p.ch, p.exchange, key, e)
	p.mu.Unlock()
	if err != nil {
		p.log.Warn("failed to publish event",
			sl.Op(op),
			slog.String("routing_key", key),
			slog.String("user_id", e.UserID),
			sl.Err(fmt.Errorf("%s: %w", op, err)),
		)
	}
}

// Nop отбрасывает события, используется без брокера.
type Nop struct{}

func (Nop) UserRegistered(context.Context, UserEvent)  {}
func (Nop) PasswordChanged(context.Context, UserEvent) {}
