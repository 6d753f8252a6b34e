// Command agenthub is the interactive console for managing and chatting
// with hosted conversational agents.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fintalk-ai/agenthub/internal/agents"
	"github.com/fintalk-ai/agenthub/internal/cli"
	"github.com/fintalk-ai/agenthub/internal/config"
	"github.com/fintalk-ai/agenthub/internal/launcher"
	"github.com/fintalk-ai/agenthub/internal/moderation"
	"github.com/fintalk-ai/agenthub/internal/store"
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
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return fmt.Errorf("load config: %w", err)
	}

	logger.Info("agenthub starting", "version", version)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Open the agent catalog: SQLite when a path is configured, memory
	// otherwise.
	var catalog store.Store
	if cfg.StorePath != "" {
		catalog, err = store.OpenSQLite(ctx, cfg.StorePath)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
	} else {
		logger.Warn("no store path configured, catalog will not survive exit")
		catalog = store.NewMemoryStore()
	}
	defer catalog.Close()

	client, err := agents.NewClient(agents.Config{
		BaseURL: cfg.AgentEndpoint,
		APIKey:  cfg.AgentAPIKey,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("agents client: %w", err)
	}

	// Moderation is optional: without a content-safety endpoint the gate
	// allows everything.
	var analyzer moderation.Analyzer
	if cfg.ContentSafetyEndpoint != "" {
		safetyClient, err := moderation.NewClient(moderation.ClientConfig{
			BaseURL: cfg.ContentSafetyEndpoint,
			APIKey:  cfg.ContentSafetyAPIKey,
			Timeout: cfg.RequestTimeout,
		})
		if err != nil {
			return fmt.Errorf("moderation client: %w", err)
		}
		analyzer = safetyClient
	} else {
		logger.Warn("content safety endpoint not configured, moderation disabled")
	}
	gate := moderation.NewGate(analyzer, cfg.ModerationThreshold, cfg.ModerationFailOpen)

	toolServer := launcher.New(cfg.FactsServerCmd, nil, logger)
	defer func() {
		if err := toolServer.Stop(); err != nil {
			logger.Warn("tool server shutdown failed", "error", err)
		}
	}()

	controller := cli.New(cli.Options{
		Config:   cfg,
		Client:   client,
		Catalog:  catalog,
		Gate:     gate,
		Launcher: toolServer,
		In:       os.Stdin,
		Out:      os.Stdout,
		Logger:   logger,
	})
	return controller.Run(ctx)
}
