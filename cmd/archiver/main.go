// Command archiver consumes the deletion change stream and merges each
// retention-expired record into the cold archive. It runs separately from the
// API server so archive backpressure never slows admin actions.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"warden/internal/archive"
	"warden/internal/platform/config"
	"warden/internal/platform/kafka"
	"warden/internal/platform/logger"
	"warden/internal/platform/metrics"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("archiver exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	if len(cfg.KafkaBrokers) == 0 {
		return errors.New("WARDEN_KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := kafka.EnsureTopics(ctx, cfg.KafkaBrokers, cfg.DeletionTopic); err != nil {
		return err
	}

	blobs, err := archive.NewFilesystemStore(cfg.ArchiveDir)
	if err != nil {
		return err
	}
	handler := archive.NewDeletionHandler(blobs, log,
		archive.WithMetrics(metrics.New()),
	)

	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, []string{cfg.DeletionTopic}, handler, log)
	if err != nil {
		return err
	}
	defer consumer.Close()

	log.Info("archiver consuming",
		"topic", cfg.DeletionTopic,
		"group", cfg.ConsumerGroup,
		"dir", cfg.ArchiveDir,
	)
	return consumer.Run(ctx)
}
