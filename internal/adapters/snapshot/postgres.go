package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"newshub-reader/internal/domain"
)

// Postgres хранит снапшот избранного одной строкой на ключ. Альтернатива Redis
// для устройств, где уже поднят локальный Postgres.
type Postgres struct {
	pool *pgxpool.Pool
	key  string
}

var _ domain.SnapshotRepo = (*Postgres)(nil)

// NewPostgres создаёт репозиторий и таблицу снапшотов.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, key string) (*Postgres, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS favorite_snapshots (
			key        text PRIMARY KEY,
			data       jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return nil, fmt.Errorf("создание таблицы снапшотов: %w", err)
	}
	return &Postgres{pool: pool, key: key}, nil
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Load читает снапшот. Отсутствующая строка — пустой набор.
func (p *Postgres) Load(ctx context.Context) ([]domain.Article, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM favorite_snapshots WHERE key = $1`, p.key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
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

// Save заменяет снапшот целиком через upsert.
func (p *Postgres) Save(ctx context.Context, articles []domain.Article) error {
	if articles == nil {
		articles = []domain.Article{}
	}
	data, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("сериализация снапшота: %w", err)
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	_, err = p.pool.Exec(ctx, `
		INSERT INTO favorite_snapshots (key, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		p.key, data)
	if err != nil {
		return fmt.Errorf("запись снапшота: %w", err)
	}
	return nil
}
