package feed

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"newshub-reader/internal/domain"
	"newshub-reader/internal/infra/metrics"
)

const defaultEnrichmentTTL = time.Hour

// Service загружает ленту и AI-дополнения для поверхностей чтения.
type Service struct {
	gateway  domain.NewsGateway
	cache    domain.Cache
	cacheTTL time.Duration
	log      zerolog.Logger

	feedSeq     atomic.Uint64
	trendingSeq atomic.Uint64
}

// NewService создаёт сервис ленты. Cache может быть nil: дополнения тогда
// каждый раз запрашиваются заново.
func NewService(gateway domain.NewsGateway, cache domain.Cache, cacheTTL time.Duration, logger zerolog.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = defaultEnrichmentTTL
	}
	return &Service{gateway: gateway, cache: cache, cacheTTL: cacheTTL, log: logger}
}

// Load загружает основную ленту. Быстрая смена фильтров порождает параллельные
// запросы; выигрывает последний начатый, ответы вытесненных отбрасываются.
func (s *Service) Load(ctx context.Context, query domain.FeedQuery) ([]domain.Article, error) {
	token := s.feedSeq.Add(1)
	articles, err := s.gateway.FetchArticles(ctx, query)
	if s.feedSeq.Load() != token {
		metrics.FeedSupersededTotal.Inc()
		return nil, domain.ErrSuperseded
	}
	return articles, err
}

// Trending загружает трендовые заголовки с тем же правилом вытеснения.
func (s *Service) Trending(ctx context.Context, country string) ([]domain.Article, error) {
	token := s.trendingSeq.Add(1)
	articles, err := s.gateway.FetchTrending(ctx, country)
	if s.trendingSeq.Load() != token {
		metrics.FeedSupersededTotal.Inc()
		return nil, domain.ErrSuperseded
	}
	return articles, err
}

// Enrich собирает AI-дополнения статьи. Это точка деградации: отказ любого
// дополнения даёт частичный или пустой результат, никогда не ошибку.
// Дополнения держатся отдельно от статьи и кэшируются по её URL.
func (s *Service) Enrich(ctx context.Context, article domain.Article) domain.Enrichment {
	cacheKey := "enrichment:" + article.URL
	if s.cache != nil {
		if data, err := s.cache.Get(cacheKey); err == nil {
			var cached domain.Enrichment
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached
			}
		}
	}

	text := article.Content
	if text == "" {
		text = article.Description
	}
	if text == "" {
		return domain.Enrichment{}
	}

	var enrichment domain.Enrichment
	summary, err := s.gateway.Summarize(ctx, text, 0, 0)
	if err != nil {
		s.log.Debug().Err(err).Str("url", article.URL).Msg("feed: суммаризация недоступна")
	} else {
		enrichment.Summary = summary
	}
	sentiment, err := s.gateway.AnalyzeSentiment(ctx, text)
	if err != nil {
		s.log.Debug().Err(err).Str("url", article.URL).Msg("feed: анализ тональности недоступен")
	} else if sentiment.Label != "" {
		enrichment.Sentiment = &sentiment
	}

	if s.cache != nil && (enrichment.Summary != "" || enrichment.Sentiment != nil) {
		if data, err := json.Marshal(enrichment); err == nil {
			if err := s.cache.Set(cacheKey, data, s.cacheTTL); err != nil {
				s.log.Debug().Err(err).Msg("feed: кэш дополнений недоступен")
			}
		}
	}
	return enrichment
}

// Recommendations возвращает похожие статьи. Отказ деградирует на фасаде.
func (s *Service) Recommendations(ctx context.Context, query domain.RecommendQuery) ([]domain.Article, error) {
	return s.gateway.Recommend(ctx, query)
}
