package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/storefront/internal/lib/sl"
)

// ErrPermanent помечает ошибку, которую повтор не исправит: такое сообщение
// отбрасывается без возврата в очередь.
var ErrPermanent = errors.New("permanent message failure")

// Handler обрабатывает тело сообщения. Ошибка возвращает сообщение в очередь,
// если она не оборачивает ErrPermanent.
type Handler func(ctx context.Context, body []byte) error

// DeliverySource часть amqp.Channel, нужная для потребления.
type DeliverySource interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// ConsumerMessage запускает потребителя очереди. Одновременно обрабатывается
// не более workers сообщений. Возвращённый WaitGroup завершается после
// остановки по ctx и окончания обработки начатых сообщений.
func ConsumerMessage(ctx context.Context, ch DeliverySource, queueName string, workers int, log *slog.Logger, handler Handler) (*sync.WaitGroup, error) {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if workers < 1 {
		workers = 1
	}
	log = log.With(sl.Op(op), slog.String("queue", queueName))

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				wg.Add(1)
				go func(d amqp.Delivery) {
					defer func() {
						<-sem
						wg.Done()
					}()
					if err := handler(ctx, d.Body); err != nil {
						requeue := !errors.Is(err, ErrPermanent)
						log.Error("handler failed", slog.Bool("requeue", requeue), sl.Err(err))
						if nackErr := d.Nack(false, requeue); nackErr != nil {
							log.Error("failed to nack message", sl.Err(nackErr))
						}
						return
					}
					if ackErr := d.Ack(false); ackErr != nil {
						log.Error("failed to ack message", sl.Err(ackErr))
					}
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return &wg, nil
}
