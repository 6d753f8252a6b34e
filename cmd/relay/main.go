// Command relay moves messages between the inbound and outbound queues,
// re-encoding each inbound envelope as a Base64 status payload.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/fintalk-ai/agenthub/internal/config"
	"github.com/fintalk-ai/agenthub/internal/queue"
	"github.com/fintalk-ai/agenthub/internal/relay"
	"github.com/fintalk-ai/agenthub/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("AGENTHUB_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	_ = godotenv.Load()

	cfg, err := config.LoadRelay()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Info("relay starting",
		"version", version,
		"inbound", cfg.RelayInboundQueue,
		"outbound", cfg.RelayOutboundQueue,
		"poll_interval", cfg.RelayPollInterval,
	)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName+"-relay", version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	notifyURL := cfg.RelayNotifyURL
	if notifyURL == "" {
		notifyURL = cfg.RelayDatabaseURL
	}
	db, err := queue.New(ctx, cfg.RelayDatabaseURL, notifyURL, logger)
	if err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	defer db.Close(context.Background())

	for _, q := range []string{cfg.RelayInboundQueue, cfg.RelayOutboundQueue} {
		if err := db.Ensure(ctx, q); err != nil {
			return fmt.Errorf("ensure queue %s: %w", q, err)
		}
	}

	worker := relay.NewWorker(db, cfg.RelayInboundQueue, cfg.RelayOutboundQueue,
		logger, cfg.RelayPollInterval, cfg.RelayBatchSize)
	worker.Start(ctx)

	// Postgres notifications wake the worker between polls so a publish is
	// picked up without waiting out the interval.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := db.Listen(gctx, cfg.RelayInboundQueue); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		for {
			if _, err := db.WaitForNotification(gctx); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return fmt.Errorf("wait for notification: %w", err)
			}
			worker.Wake()
		}
	})

	err = g.Wait()

	// Let in-flight messages finish before the pool closes.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer drainCancel()
	worker.Drain(drainCtx)

	return err
}
