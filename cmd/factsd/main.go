// Command factsd serves the fact-lookup MCP tools over stdio.
package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/fintalk-ai/agenthub/internal/facts"
)

func main() {
	os.Exit(run())
}

func run() int {
	// stdout carries the MCP protocol; logs must go to stderr.
	level := slog.LevelInfo
	if os.Getenv("AGENTHUB_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	baseURL := os.Getenv("FACTS_API_BASE_URL")
	client := facts.NewClient(baseURL, 10*time.Second)
	server := facts.NewServer(client, logger)

	logger.Info("facts server starting", "base_url", baseURL)
	if err := server.ServeStdio(); err != nil {
		logger.Error("facts server failed", "error", err)
		return 1
	}
	return 0
}
