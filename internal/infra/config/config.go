package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию читалки.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Backend struct {
		BaseURL string        `envconfig:"BACKEND_BASE_URL" default:"http://localhost:8000"`
		Timeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"30s"`
	} `envconfig:""`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	PGDSN     string `envconfig:"PG_DSN"`

	Snapshot struct {
		Backend string `envconfig:"SNAPSHOT_BACKEND" default:"redis"`
		Key     string `envconfig:"SNAPSHOT_KEY" default:"newshub:favorites"`
	} `envconfig:""`

	Broadcast struct {
		Backend  string `envconfig:"BROADCAST_BACKEND" default:"redis"`
		AMQPURL  string `envconfig:"BROADCAST_AMQP_URL"`
		Exchange string `envconfig:"BROADCAST_EXCHANGE" default:"newshub.favorites"`
	} `envconfig:""`

	Cache struct {
		EnrichmentTTL time.Duration `envconfig:"ENRICHMENT_CACHE_TTL" default:"1h"`
	} `envconfig:""`

	Feed struct {
		Country  string `envconfig:"FEED_COUNTRY" default:"us"`
		Category string `envconfig:"FEED_CATEGORY" default:"general"`
	} `envconfig:""`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
