package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"newshub-reader/internal/domain"
)

type gatedGateway struct {
	entered chan struct{}
	release chan struct{}

	mu             sync.Mutex
	summarizeCalls int
	sentimentCalls int
	summarizeErr   error
	sentimentErr   error
}

func (g *gatedGateway) FetchArticles(ctx context.Context, q domain.FeedQuery) ([]domain.Article, error) {
	if g.entered != nil {
		g.entered <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	return []domain.Article{{URL: "https://example.com/" + q.Keyword, Title: q.Keyword}}, nil
}

func (g *gatedGateway) FetchTrending(context.Context, string) ([]domain.Article, error) {
	return []domain.Article{{URL: "t1"}}, nil
}

func (g *gatedGateway) Recommend(context.Context, domain.RecommendQuery) ([]domain.Article, error) {
	return nil, nil
}

func (g *gatedGateway) Summarize(context.Context, string, int, int) (string, error) {
	g.mu.Lock()
	g.summarizeCalls++
	g.mu.Unlock()
	if g.summarizeErr != nil {
		return "", g.summarizeErr
	}
	return "кратко", nil
}

func (g *gatedGateway) AnalyzeSentiment(context.Context, string) (domain.Sentiment, error) {
	g.mu.Lock()
	g.sentimentCalls++
	g.mu.Unlock()
	if g.sentimentErr != nil {
		return domain.Sentiment{}, g.sentimentErr
	}
	return domain.Sentiment{Label: "POSITIVE", Score: 0.9}, nil
}

func (g *gatedGateway) FetchRemoteFavorites(context.Context) ([]domain.Article, error) {
	return nil, nil
}
func (g *gatedGateway) AddRemoteFavorite(context.Context, domain.Article) error    { return nil }
func (g *gatedGateway) RemoveRemoteFavorite(context.Context, string) error         { return nil }

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memCache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("промах")
}

func (c *memCache) Set(key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	c.data[key] = value
	return nil
}

func TestLoadDiscardsSupersededResponse(t *testing.T) {
	gw := &gatedGateway{entered: make(chan struct{}, 2), release: make(chan struct{})}
	svc := NewService(gw, nil, 0, zerolog.Nop())
	ctx := context.Background()

	type result struct {
		articles []domain.Article
		err      error
	}
	firstDone := make(chan result, 1)
	go func() {
		articles, err := svc.Load(ctx, domain.FeedQuery{Keyword: "старый"})
		firstDone <- result{articles, err}
	}()
	<-gw.entered // первый запрос уже взял свой токен

	secondDone := make(chan result, 1)
	go func() {
		articles, err := svc.Load(ctx, domain.FeedQuery{Keyword: "новый"})
		secondDone <- result{articles, err}
	}()
	<-gw.entered

	close(gw.release) // оба ответа приходят, но актуален только второй

	first := <-firstDone
	if !errors.Is(first.err, domain.ErrSuperseded) {
		t.Fatalf("устаревший ответ должен отбрасываться, получили %v", first.err)
	}
	second := <-secondDone
	if second.err != nil {
		t.Fatalf("не ожидали ошибку: %v", second.err)
	}
	if len(second.articles) != 1 || second.articles[0].Title != "новый" {
		t.Fatalf("должен выжить результат последнего запроса: %+v", second.articles)
	}
}

func TestEnrichDegradesWithoutError(t *testing.T) {
	gw := &gatedGateway{summarizeErr: domain.ErrBackendUnreachable, sentimentErr: domain.ErrBackendUnreachable}
	svc := NewService(gw, nil, 0, zerolog.Nop())

	enrichment := svc.Enrich(context.Background(), domain.Article{URL: "u1", Content: "текст"})
	if enrichment.Summary != "" || enrichment.Sentiment != nil {
		t.Fatalf("при недоступном бэкенде дополнения должны быть пустыми: %+v", enrichment)
	}
}

func TestEnrichPartialDegradation(t *testing.T) {
	gw := &gatedGateway{sentimentErr: domain.ErrBackendUnreachable}
	svc := NewService(gw, nil, 0, zerolog.Nop())

	enrichment := svc.Enrich(context.Background(), domain.Article{URL: "u1", Content: "текст"})
	if enrichment.Summary != "кратко" {
		t.Fatalf("доступная часть дополнений должна сохраниться: %+v", enrichment)
	}
	if enrichment.Sentiment != nil {
		t.Fatalf("недоступная часть должна отсутствовать")
	}
}

func TestEnrichUsesCache(t *testing.T) {
	gw := &gatedGateway{}
	cache := &memCache{}
	svc := NewService(gw, cache, time.Hour, zerolog.Nop())
	a := domain.Article{URL: "u1", Content: "текст"}

	first := svc.Enrich(context.Background(), a)
	second := svc.Enrich(context.Background(), a)

	if first.Summary != "кратко" || second.Summary != "кратко" {
		t.Fatalf("дополнения потеряны: %+v %+v", first, second)
	}
	if gw.summarizeCalls != 1 || gw.sentimentCalls != 1 {
		t.Fatalf("повторное обогащение должно идти из кэша: %d/%d вызовов", gw.summarizeCalls, gw.sentimentCalls)
	}
}

func TestEnrichEmptyTextSkipsBackend(t *testing.T) {
	gw := &gatedGateway{}
	svc := NewService(gw, nil, 0, zerolog.Nop())

	enrichment := svc.Enrich(context.Background(), domain.Article{URL: "u1"})
	if enrichment.Summary != "" || enrichment.Sentiment != nil {
		t.Fatalf("без текста нечего обогащать: %+v", enrichment)
	}
	if gw.summarizeCalls != 0 {
		t.Fatalf("бэкенд не должен вызываться для пустого текста")
	}
}
