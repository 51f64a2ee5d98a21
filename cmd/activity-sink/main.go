package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Tonic56/coinfolio/adapters/clkhouse"
	"github.com/Tonic56/coinfolio/adapters/kaffka"
	"github.com/Tonic56/coinfolio/internal/config"
	"github.com/Tonic56/coinfolio/internal/models"
)

func main() {
	cfg := config.MustLoadSink()

	log := setupLogger(cfg.Env)
	log.Info("starting activity sink", slog.String("env", cfg.Env), slog.String("topic", cfg.Kafka.Topic))

	if len(cfg.Kafka.Brokers) == 0 {
		log.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg := new(sync.WaitGroup)

	chClient, err := clkhouse.NewClient(ctx, cfg.ClickHouse)
	if err != nil {
		log.Error("failed to create clickhouse client", slog.Any("error", err))
		os.Exit(1)
	}
	defer chClient.Close()

	store := clkhouse.NewActivityStore(log, chClient, cfg.BatchSize, cfg.FlushEvery)
	if err := store.CreateTable(ctx); err != nil {
		log.Error("failed to create table", slog.Any("error", err))
		os.Exit(1)
	}

	events := make(chan models.ActivityEvent, cfg.BatchSize)

	cons := kaffka.NewConsumer(log, cfg.Kafka)

	wg.Add(2)
	go cons.Start(ctx, wg, events)
	go store.BatchInsert(ctx, wg, events)

	<-c
	log.Info("received shutdown signal")
	cancel()

	log.Info("waiting for the last batch to flush...")
	wg.Wait()
	log.Info("activity sink stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case "local":
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case "dev":
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
