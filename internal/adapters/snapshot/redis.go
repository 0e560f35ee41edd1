package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"newshub-reader/internal/domain"
)

// Redis хранит снапшот избранного в Redis под одним известным ключом.
// Запись заменяет значение целиком: частичных обновлений не бывает.
type Redis struct {
	client *redis.Client
	key    string
}

var _ domain.SnapshotRepo = (*Redis)(nil)

// NewRedis создаёт репозиторий по указанному ключу.
func NewRedis(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key}
}

// Load читает снапшот. Отсутствующий или сброшенный ключ — пустой набор, не ошибка.
func (r *Redis) Load(ctx context.Context) ([]domain.Article, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []domain.Article{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("чтение снапшота: %w", err)
	}
	var articles []domain.Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("разбор снапшота: %w", err)
	}
	if articles == nil {
		articles = []domain.Article{}
	}
	return articles, nil
}

// Save записывает снапшот целиком.
func (r *Redis) Save(ctx context.Context, articles []domain.Article) error {
	if articles == nil {
		articles = []domain.Article{}
	}
	data, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("сериализация снапшота: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("запись снапшота: %w", err)
	}
	return nil
}
