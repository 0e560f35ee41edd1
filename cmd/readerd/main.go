package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"newshub-reader/internal/adapters/gateway"
	"newshub-reader/internal/adapters/snapshot"
	"newshub-reader/internal/domain"
	"newshub-reader/internal/infra/broadcast"
	"newshub-reader/internal/infra/cache"
	"newshub-reader/internal/infra/config"
	"newshub-reader/internal/infra/db"
	httpinfra "newshub-reader/internal/infra/http"
	logpkg "newshub-reader/internal/infra/log"
	"newshub-reader/internal/infra/metrics"
	"newshub-reader/internal/usecase/favorites"
	"newshub-reader/internal/usecase/feed"
)

// broadcastListener — broadcaster с межпроцессным циклом чтения.
type broadcastListener interface {
	domain.Broadcaster
	Listen(ctx context.Context) error
}

func main() {
	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	var snapshots domain.SnapshotRepo
	switch cfg.Snapshot.Backend {
	case "postgres":
		pool, err := db.Connect(cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("readerd: нет подключения к Postgres")
		}
		defer pool.Close()
		snapshots, err = snapshot.NewPostgres(ctx, pool, cfg.Snapshot.Key)
		if err != nil {
			logger.Fatal().Err(err).Msg("readerd: снапшот-репозиторий не создан")
		}
	default:
		snapshots = snapshot.NewRedis(redisClient, cfg.Snapshot.Key)
	}

	var broadcaster broadcastListener
	switch cfg.Broadcast.Backend {
	case "amqp":
		amqpBroadcaster, err := broadcast.NewAMQP(cfg.Broadcast.AMQPURL, cfg.Broadcast.Exchange, cfg.Snapshot.Key, logger.With().Str("component", "broadcast").Logger())
		if err != nil {
			logger.Fatal().Err(err).Msg("readerd: AMQP broadcaster не создан")
		}
		defer amqpBroadcaster.Close()
		broadcaster = amqpBroadcaster
	default:
		broadcaster = broadcast.NewRedis(redisClient, cfg.Snapshot.Key, logger.With().Str("component", "broadcast").Logger())
	}

	backend := gateway.NewClient(gateway.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	}, logger.With().Str("component", "gateway").Logger())

	favService := favorites.NewService(snapshots, backend, broadcaster, logger.With().Str("component", "favorites").Logger())
	if err := favService.Init(ctx); err != nil {
		logger.Fatal().Err(err).Msg("readerd: стартовая сверка избранного не удалась")
	}

	feedService := feed.NewService(backend, cache.NewRedis(redisClient), cfg.Cache.EnrichmentTTL, logger.With().Str("component", "feed").Logger())

	// Цикл межпроцессных уведомлений: мутации из других процессов будят
	// локальных наблюдателей.
	go func() {
		if err := broadcaster.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("readerd: цикл уведомлений остановлен")
		}
	}()

	// Собственный наблюдатель демона: по сигналу перечитывает снапшот,
	// чтобы чужая мутация стала видимой в памяти.
	go func() {
		signals, cancel := broadcaster.Subscribe()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-signals:
				if err := favService.Refresh(ctx); err != nil {
					logger.Warn().Err(err).Msg("readerd: перечитывание снапшота не удалось")
				}
			}
		}
	}()

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	registerRoutes(server.Router, favService, feedService, backend, broadcaster, cfg)

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("readerd: сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("readerd: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func registerRoutes(r chi.Router, favService *favorites.Service, feedService *feed.Service, backend domain.NewsGateway, broadcaster domain.Broadcaster, cfg config.AppConfig) {
	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(60 * time.Second))

		api.Get("/api/v1/news", func(w http.ResponseWriter, r *http.Request) {
			query := domain.FeedQuery{
				Country:  valueOr(r.URL.Query().Get("country"), cfg.Feed.Country),
				Category: valueOr(r.URL.Query().Get("category"), cfg.Feed.Category),
				Keyword:  r.URL.Query().Get("q"),
			}
			articles, err := feedService.Load(r.Context(), query)
			if errors.Is(err, domain.ErrSuperseded) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			if err != nil {
				// Основная лента — единственное место, где отказ сети виден
				// пользователю: фасад отдаёт ошибку, UI показывает retry.
				writeError(w, http.StatusBadGateway, err.Error())
				return
			}
			writeJSON(w, map[string]any{
				"status":       "success",
				"articles":     articles,
				"totalResults": len(articles),
			})
		})

		api.Get("/api/v1/news/trending", func(w http.ResponseWriter, r *http.Request) {
			country := valueOr(r.URL.Query().Get("country"), cfg.Feed.Country)
			articles, err := feedService.Trending(r.Context(), country)
			if errors.Is(err, domain.ErrSuperseded) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			if err != nil {
				writeError(w, http.StatusBadGateway, err.Error())
				return
			}
			writeJSON(w, map[string]any{
				"status":       "success",
				"articles":     articles,
				"totalResults": len(articles),
			})
		})

		api.Post("/api/v1/news/enrich", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			var req struct {
				Article domain.Article `json:"article"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			// Дополнения опциональны: пустой результат, не ошибка.
			writeJSON(w, feedService.Enrich(r.Context(), req.Article))
		})

		api.Post("/api/v1/news/summarize", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			var req struct {
				Text      string `json:"text"`
				MaxLength int    `json:"max_length"`
				MinLength int    `json:"min_length"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			summary, err := backend.Summarize(r.Context(), req.Text, req.MaxLength, req.MinLength)
			if err != nil {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			writeJSON(w, map[string]string{"status": "success", "summary": summary})
		})

		api.Post("/api/v1/news/sentiment", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			var req struct {
				Text string `json:"text"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			sentiment, err := backend.AnalyzeSentiment(r.Context(), req.Text)
			if err != nil {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			writeJSON(w, map[string]any{"status": "success", "sentiment": sentiment})
		})

		api.Post("/api/v1/news/recommend", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			var req struct {
				ArticleURL       string          `json:"article_url"`
				Article          *domain.Article `json:"article"`
				NRecommendations int             `json:"n_recommendations"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			articles, err := feedService.Recommendations(r.Context(), domain.RecommendQuery{
				ArticleURL: req.ArticleURL,
				Article:    req.Article,
				N:          req.NRecommendations,
			})
			if err != nil {
				// Рекомендации опциональны: регион UI просто не заполняется.
				w.WriteHeader(http.StatusNoContent)
				return
			}
			writeJSON(w, map[string]any{"status": "success", "recommendations": articles})
		})

		api.Get("/api/v1/favorites", func(w http.ResponseWriter, r *http.Request) {
			all := favService.All()
			writeJSON(w, map[string]any{
				"status":    "success",
				"favorites": all,
				"count":     len(all),
			})
		})

		api.Post("/api/v1/favorites", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			var req struct {
				Article domain.Article `json:"article"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if req.Article.URL == "" {
				writeError(w, http.StatusBadRequest, "article.url is required")
				return
			}
			if err := favService.Add(r.Context(), req.Article); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, map[string]string{"status": "success"})
		})

		api.Delete("/api/v1/favorites", func(w http.ResponseWriter, r *http.Request) {
			url := r.URL.Query().Get("url")
			if url == "" {
				writeError(w, http.StatusBadRequest, "url is required")
				return
			}
			if err := favService.Remove(r.Context(), url); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, map[string]string{"status": "success"})
		})

		api.Get("/api/v1/favorites/contains", func(w http.ResponseWriter, r *http.Request) {
			url := r.URL.Query().Get("url")
			if url == "" {
				writeError(w, http.StatusBadRequest, "url is required")
				return
			}
			writeJSON(w, map[string]bool{"favorite": favService.Contains(url)})
		})
	})

	// SSE-поток уведомлений для наблюдателей-поверхностей: по каждому сигналу
	// клиент перечитывает GET /api/v1/favorites.
	r.Get("/api/v1/favorites/events", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		signals, cancel := broadcaster.Subscribe()
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		fmt.Fprint(w, ": подписка открыта\n\n")
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-signals:
				fmt.Fprint(w, "event: updated\ndata: {}\n\n")
				flusher.Flush()
			}
		}
	})
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
