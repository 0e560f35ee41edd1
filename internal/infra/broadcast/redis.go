package broadcast

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"newshub-reader/internal/infra/metrics"
)

// RedisBroadcaster связывает внутреннюю шину с Redis pub/sub: мутация в одном
// процессе будит наблюдателей во всех остальных процессах того же устройства.
type RedisBroadcaster struct {
	client  *redis.Client
	bus     *Bus
	channel string
	key     string
	origin  string
	log     zerolog.Logger
}

// NewRedis создаёт broadcaster поверх ключа снапшота. Канал уведомлений
// выводится из ключа, чтобы наблюдатели следили ровно за одним ключом.
func NewRedis(client *redis.Client, snapshotKey string, logger zerolog.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{
		client:  client,
		bus:     NewBus(),
		channel: snapshotKey + ":updated",
		key:     snapshotKey,
		origin:  uuid.NewString(),
		log:     logger,
	}
}

// Notify уведомляет локальных подписчиков и публикует сообщение для других процессов.
// Ошибка публикации логируется и не прерывает мутацию.
func (b *RedisBroadcaster) Notify(ctx context.Context) {
	b.bus.Notify()
	payload, err := encodeMessage(message{Origin: b.origin, Key: b.key})
	if err != nil {
		b.log.Error().Err(err).Msg("broadcast: не удалось сериализовать уведомление")
		return
	}
	err = b.client.Publish(ctx, b.channel, payload).Err()
	status := "success"
	if err != nil {
		status = "error"
		b.log.Warn().Err(err).Str("channel", b.channel).Msg("broadcast: публикация не удалась")
	}
	metrics.BroadcastPublishedTotal.WithLabelValues("redis", status).Inc()
}

// Subscribe подписывает наблюдателя текущего процесса.
func (b *RedisBroadcaster) Subscribe() (<-chan struct{}, func()) {
	return b.bus.Subscribe()
}

// Listen читает межпроцессные уведомления до отмены контекста. Сообщения с
// собственным origin отбрасываются: источник уже уведомлён через шину.
func (b *RedisBroadcaster) Listen(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return errors.New("broadcast: канал pub/sub закрыт")
			}
			m, err := decodeMessage([]byte(msg.Payload))
			if err != nil {
				b.log.Warn().Err(err).Msg("broadcast: повреждённое уведомление")
				continue
			}
			if m.Origin == b.origin {
				continue
			}
			metrics.BroadcastReceivedTotal.WithLabelValues("redis").Inc()
			b.bus.Notify()
		}
	}
}
