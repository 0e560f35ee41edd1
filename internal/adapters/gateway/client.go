package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"newshub-reader/internal/domain"
	"newshub-reader/internal/infra/metrics"
)

const defaultTimeout = 30 * time.Second

// Config описывает подключение к бэкенду NewsHub.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client выполняет запросы к бэкенду и нормализует разнородные формы ответов.
type Client struct {
	http    *http.Client
	baseURL string
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewClient создаёт клиента бэкенда.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "newshub-backend",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("circuit", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("gateway: circuit breaker сменил состояние")
		},
	})
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		breaker: breaker,
		log:     logger,
	}
}

var _ domain.NewsGateway = (*Client)(nil)

// errorResponse — тело ошибки бэкенда.
type errorResponse struct {
	Detail string `json:"detail"`
}

func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("сериализация запроса: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("построение запроса: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	raw, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			// Ответа не было: таймаут или обрыв транспорта.
			return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnreachable, err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, fmt.Errorf("%w: чтение ответа: %v", domain.ErrBackendUnreachable, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			var er errorResponse
			_ = json.Unmarshal(data, &er)
			return nil, &domain.ServerError{Status: resp.StatusCode, Detail: er.Detail}
		}
		return data, nil
	})
	metrics.ObserveNetworkRequest("gateway", operation, path, start, err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker открыт", domain.ErrBackendUnreachable)
		}
		return nil, err
	}
	return raw.([]byte), nil
}

// envelope — закрытый набор обёрток, которые бэкенд использует для списков статей.
type envelope struct {
	Articles        []domain.Article `json:"articles"`
	Favorites       []domain.Article `json:"favorites"`
	Recommendations []domain.Article `json:"recommendations"`
}

const (
	wrapperArticles        = "articles"
	wrapperFavorites       = "favorites"
	wrapperRecommendations = "recommendations"
)

// normalizeList приводит ответ к списку статей. Допускаются обёртка с известным
// полем и голый массив; любая другая форма 2xx — пустой результат, не ошибка.
func (c *Client) normalizeList(data []byte, wrapper string) []domain.Article {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []domain.Article{}
	}
	if trimmed[0] == '[' {
		var list []domain.Article
		if err := json.Unmarshal(trimmed, &list); err == nil {
			return list
		}
		c.log.Warn().Str("wrapper", wrapper).Msg("gateway: массив статей не разобрался")
		return []domain.Article{}
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err == nil {
		switch wrapper {
		case wrapperFavorites:
			if env.Favorites != nil {
				return env.Favorites
			}
		case wrapperRecommendations:
			if env.Recommendations != nil {
				return env.Recommendations
			}
		default:
			if env.Articles != nil {
				return env.Articles
			}
		}
	}
	c.log.Warn().Str("wrapper", wrapper).Msg("gateway: неизвестная форма ответа, отдаём пустой список")
	return []domain.Article{}
}

// FetchArticles загружает ленту по стране, категории и ключевому слову.
func (c *Client) FetchArticles(ctx context.Context, q domain.FeedQuery) ([]domain.Article, error) {
	query := url.Values{}
	if q.Country != "" {
		query.Set("country", q.Country)
	}
	if q.Category != "" {
		query.Set("category", q.Category)
	}
	if q.Keyword != "" {
		query.Set("q", q.Keyword)
	}
	data, err := c.do(ctx, "fetch_articles", http.MethodGet, "/news", query, nil)
	if err != nil {
		return nil, err
	}
	return c.normalizeList(data, wrapperArticles), nil
}

// FetchTrending загружает трендовые заголовки.
func (c *Client) FetchTrending(ctx context.Context, country string) ([]domain.Article, error) {
	query := url.Values{}
	if country != "" {
		query.Set("country", country)
	}
	data, err := c.do(ctx, "fetch_trending", http.MethodGet, "/news/trending", query, nil)
	if err != nil {
		return nil, err
	}
	return c.normalizeList(data, wrapperArticles), nil
}

type recommendRequest struct {
	ArticleURL       string          `json:"article_url,omitempty"`
	Article          *domain.Article `json:"article,omitempty"`
	NRecommendations int             `json:"n_recommendations"`
}

// Recommend запрашивает похожие статьи по URL или по статье целиком.
func (c *Client) Recommend(ctx context.Context, q domain.RecommendQuery) ([]domain.Article, error) {
	n := q.N
	if n <= 0 {
		n = 3
	}
	body := recommendRequest{ArticleURL: q.ArticleURL, Article: q.Article, NRecommendations: n}
	data, err := c.do(ctx, "recommend", http.MethodPost, "/news/recommend", nil, body)
	if err != nil {
		return nil, err
	}
	return c.normalizeList(data, wrapperRecommendations), nil
}

type summarizeRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
	MinLength int    `json:"min_length"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// Summarize возвращает краткое содержание текста.
func (c *Client) Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = 150
	}
	if minLength <= 0 {
		minLength = 30
	}
	data, err := c.do(ctx, "summarize", http.MethodPost, "/news/summarize", nil, summarizeRequest{
		Text:      text,
		MaxLength: maxLength,
		MinLength: minLength,
	})
	if err != nil {
		return "", err
	}
	var resp summarizeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.log.Warn().Msg("gateway: ответ суммаризации не разобрался")
		return "", nil
	}
	return resp.Summary, nil
}

type sentimentRequest struct {
	Text string `json:"text"`
}

type sentimentResponse struct {
	Sentiment domain.Sentiment `json:"sentiment"`
}

// AnalyzeSentiment возвращает тональность текста.
func (c *Client) AnalyzeSentiment(ctx context.Context, text string) (domain.Sentiment, error) {
	data, err := c.do(ctx, "sentiment", http.MethodPost, "/news/sentiment", nil, sentimentRequest{Text: text})
	if err != nil {
		return domain.Sentiment{}, err
	}
	var resp sentimentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.log.Warn().Msg("gateway: ответ анализа тональности не разобрался")
		return domain.Sentiment{}, nil
	}
	return resp.Sentiment, nil
}

// FetchRemoteFavorites загружает избранное с бэкенда.
func (c *Client) FetchRemoteFavorites(ctx context.Context) ([]domain.Article, error) {
	data, err := c.do(ctx, "fetch_favorites", http.MethodGet, "/user/favorites", nil, nil)
	if err != nil {
		return nil, err
	}
	return c.normalizeList(data, wrapperFavorites), nil
}

type favoriteRequest struct {
	Article domain.Article `json:"article"`
}

// AddRemoteFavorite добавляет статью в избранное на бэкенде. Best-effort.
func (c *Client) AddRemoteFavorite(ctx context.Context, article domain.Article) error {
	_, err := c.do(ctx, "add_favorite", http.MethodPost, "/user/favorites", nil, favoriteRequest{Article: article})
	return err
}

// RemoveRemoteFavorite удаляет статью из избранного на бэкенде. Best-effort.
func (c *Client) RemoveRemoteFavorite(ctx context.Context, articleURL string) error {
	query := url.Values{}
	query.Set("url", articleURL)
	_, err := c.do(ctx, "remove_favorite", http.MethodDelete, "/user/favorites", query, nil)
	return err
}
