package domain

import (
	"context"
	"time"
)

// NewsGateway выполняет запросы к удалённому бэкенду новостей и приводит ответы к единой форме.
type NewsGateway interface {
	FetchArticles(ctx context.Context, query FeedQuery) ([]Article, error)
	FetchTrending(ctx context.Context, country string) ([]Article, error)
	Recommend(ctx context.Context, query RecommendQuery) ([]Article, error)
	Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error)
	AnalyzeSentiment(ctx context.Context, text string) (Sentiment, error)
	FetchRemoteFavorites(ctx context.Context) ([]Article, error)
	AddRemoteFavorite(ctx context.Context, article Article) error
	RemoveRemoteFavorite(ctx context.Context, url string) error
}

// SnapshotRepo хранит сериализованный набор избранного под одним известным ключом.
// Запись всегда заменяет снапшот целиком; отсутствующий ключ читается как пустой набор.
type SnapshotRepo interface {
	Load(ctx context.Context) ([]Article, error)
	Save(ctx context.Context, articles []Article) error
}

// Broadcaster доставляет уведомление "избранное изменилось" всем наблюдателям:
// подписчикам в текущем процессе и другим процессам через общий канал.
type Broadcaster interface {
	// Notify рассылает уведомление о совершённой мутации. Fire-and-forget.
	Notify(ctx context.Context)
	// Subscribe возвращает канал сигналов и функцию отписки. Уведомления схлопываются:
	// гарантируется только актуальность состояния после последнего сигнала.
	Subscribe() (<-chan struct{}, func())
}

// Cache хранит дополнения статей (краткое содержание, тональность) по ключу.
type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
}
