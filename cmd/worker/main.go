package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/okravchuk/devfinder/internal/bootstrap"
	"github.com/okravchuk/devfinder/internal/config"
	"github.com/okravchuk/devfinder/internal/observability/logging"
)

// The worker runs the memory indexer standalone, sharing the queue group with
// any api instances so each turn-recorded event is indexed once.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.NewJSONLogger("devfinder-worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	if err := app.StartIndexer(ctx); err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
