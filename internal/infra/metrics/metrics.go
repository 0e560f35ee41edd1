package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	FavoritesCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "favorites_count",
		Help: "Текущий размер набора избранного",
	})
	FavoritesMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "favorites_mutations_total",
		Help: "Количество мутаций избранного",
	}, []string{"operation", "result"})
	MergeDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "favorites_merge_duration_seconds",
		Help:    "Время сверки локального и удалённого избранного на старте",
		Buckets: prometheus.DefBuckets,
	})
	BroadcastPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_published_total",
		Help: "Количество опубликованных уведомлений об изменении избранного",
	}, []string{"backend", "status"})
	BroadcastReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_received_total",
		Help: "Количество принятых межпроцессных уведомлений",
	}, []string{"backend"})
	FeedSupersededTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_superseded_requests_total",
		Help: "Количество запросов ленты, вытесненных более новыми",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		FavoritesCount,
		FavoritesMutationsTotal,
		MergeDurationSeconds,
		BroadcastPublishedTotal,
		BroadcastReceivedTotal,
		FeedSupersededTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveMutation записывает результат мутации избранного.
func ObserveMutation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	FavoritesMutationsTotal.WithLabelValues(operation, result).Inc()
}
