package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"newshub-reader/internal/adapters/gateway"
	"newshub-reader/internal/adapters/snapshot"
	"newshub-reader/internal/domain"
	"newshub-reader/internal/infra/broadcast"
	"newshub-reader/internal/infra/config"
	logpkg "newshub-reader/internal/infra/log"
	"newshub-reader/internal/usecase/favorites"
)

const usage = `favctl — избранное из соседнего процесса.

Команды:
  list                     показать избранное
  add -url U [-title T]    добавить статью
  remove -url U            удалить статью
  contains -url U          проверить наличие
  sync                     свериться с удалённым избранным
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	flags := flag.NewFlagSet(command, flag.ExitOnError)
	articleURL := flags.String("url", "", "URL статьи")
	title := flags.String("title", "", "заголовок статьи")
	source := flags.String("source", "", "название источника")
	_ = flags.Parse(os.Args[2:])

	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv).With().Str("component", "favctl").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	snapshots := snapshot.NewRedis(redisClient, cfg.Snapshot.Key)
	broadcaster := broadcast.NewRedis(redisClient, cfg.Snapshot.Key, logger)

	// Мутации локальны: дальняя сторона подтянется при следующей сверке.
	// Gateway нужен только команде sync.
	var backend domain.NewsGateway
	if command == "sync" {
		backend = gateway.NewClient(gateway.Config{
			BaseURL: cfg.Backend.BaseURL,
			Timeout: cfg.Backend.Timeout,
		}, logger)
	}

	svc := favorites.NewService(snapshots, backend, broadcaster, logger)
	if command == "sync" {
		if err := svc.Init(ctx); err != nil {
			logger.Fatal().Err(err).Msg("сверка не удалась")
		}
		fmt.Printf("сверено, в избранном %d статей\n", svc.Count())
		return
	}
	if err := svc.Refresh(ctx); err != nil {
		logger.Fatal().Err(err).Msg("снапшот не прочитан")
	}

	switch command {
	case "list":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(svc.All()); err != nil {
			logger.Fatal().Err(err).Msg("вывод не удался")
		}
	case "add":
		if *articleURL == "" {
			fmt.Fprintln(os.Stderr, "нужен -url")
			os.Exit(2)
		}
		article := domain.Article{URL: *articleURL, Title: *title, Source: domain.Source{Name: *source}}
		if err := svc.Add(ctx, article); err != nil {
			logger.Fatal().Err(err).Msg("добавление не удалось")
		}
		fmt.Printf("добавлено, в избранном %d статей\n", svc.Count())
	case "remove":
		if *articleURL == "" {
			fmt.Fprintln(os.Stderr, "нужен -url")
			os.Exit(2)
		}
		if err := svc.Remove(ctx, *articleURL); err != nil {
			logger.Fatal().Err(err).Msg("удаление не удалось")
		}
		fmt.Printf("удалено, в избранном %d статей\n", svc.Count())
	case "contains":
		if *articleURL == "" {
			fmt.Fprintln(os.Stderr, "нужен -url")
			os.Exit(2)
		}
		fmt.Println(svc.Contains(*articleURL))
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}
