package broadcast

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"newshub-reader/internal/infra/metrics"
)

// AMQPBroadcaster реализует тот же контракт поверх fanout-обменника RabbitMQ.
// Полезен, когда процессы устройства уже делят брокер вместо Redis.
type AMQPBroadcaster struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	bus      *Bus
	exchange string
	key      string
	origin   string
	log      zerolog.Logger
}

// NewAMQP подключается к брокеру и объявляет fanout-обменник.
func NewAMQP(url, exchange, snapshotKey string, logger zerolog.Logger) (*AMQPBroadcaster, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", false, true, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPBroadcaster{
		conn:     conn,
		ch:       ch,
		bus:      NewBus(),
		exchange: exchange,
		key:      snapshotKey,
		origin:   uuid.NewString(),
		log:      logger,
	}, nil
}

// Notify уведомляет локальных подписчиков и публикует сообщение в обменник.
func (b *AMQPBroadcaster) Notify(ctx context.Context) {
	b.bus.Notify()
	payload, err := encodeMessage(message{Origin: b.origin, Key: b.key})
	if err != nil {
		b.log.Error().Err(err).Msg("broadcast: не удалось сериализовать уведомление")
		return
	}
	err = b.ch.PublishWithContext(ctx, b.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
	status := "success"
	if err != nil {
		status = "error"
		b.log.Warn().Err(err).Str("exchange", b.exchange).Msg("broadcast: публикация не удалась")
	}
	metrics.BroadcastPublishedTotal.WithLabelValues("amqp", status).Inc()
}

// Subscribe подписывает наблюдателя текущего процесса.
func (b *AMQPBroadcaster) Subscribe() (<-chan struct{}, func()) {
	return b.bus.Subscribe()
}

// Listen привязывает эксклюзивную очередь к обменнику и читает уведомления
// до отмены контекста.
func (b *AMQPBroadcaster) Listen(ctx context.Context) error {
	q, err := b.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := b.ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	deliveries, err := b.ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return errors.New("broadcast: поток доставки закрыт")
			}
			m, err := decodeMessage(d.Body)
			if err != nil {
				b.log.Warn().Err(err).Msg("broadcast: повреждённое уведомление")
				continue
			}
			if m.Origin == b.origin {
				continue
			}
			metrics.BroadcastReceivedTotal.WithLabelValues("amqp").Inc()
			b.bus.Notify()
		}
	}
}

// Close освобождает канал и соединение.
func (b *AMQPBroadcaster) Close() {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
}
