// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Remote agent service settings.
	AgentEndpoint   string // Base URL of the hosted agent runtime.
	AgentAPIKey     string
	ModelDeployment string // Model deployment name used when creating agents.
	RequestTimeout  time.Duration

	// Content safety settings.
	ContentSafetyEndpoint string // Empty disables remote moderation.
	ContentSafetyAPIKey   string
	ModerationThreshold   int  // Severity at or above which content is blocked (0-7).
	ModerationFailOpen    bool // Allow display when the classifier is unreachable.

	// Agent catalog settings.
	StorePath string // SQLite file path; empty uses an in-memory catalog.

	// Chat settings.
	CustomerID string // Customer identity attached to every user message.

	// Tool server settings.
	FactsServerCmd  string // Command used to launch the facts MCP server.
	FactsAPIBaseURL string

	// Relay settings.
	RelayDatabaseURL   string // Postgres URL for queue tables.
	RelayNotifyURL     string // Direct Postgres URL for LISTEN/NOTIFY.
	RelayInboundQueue  string
	RelayOutboundQueue string
	RelayPollInterval  time.Duration
	RelayBatchSize     int

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := fromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadRelay reads configuration for the relay worker, which needs the queue
// settings but none of the agent-service variables.
func LoadRelay() (Config, error) {
	cfg := fromEnv()
	if err := cfg.ValidateRelay(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv() Config {
	cfg := Config{
		AgentEndpoint:         envStr("AGENTHUB_ENDPOINT", ""),
		AgentAPIKey:           envStr("AGENTHUB_API_KEY", ""),
		ModelDeployment:       envStr("MODEL_DEPLOYMENT", ""),
		RequestTimeout:        envDuration("AGENTHUB_REQUEST_TIMEOUT", 30*time.Second),
		ContentSafetyEndpoint: envStr("CONTENT_SAFETY_ENDPOINT", ""),
		ContentSafetyAPIKey:   envStr("CONTENT_SAFETY_API_KEY", ""),
		ModerationThreshold:   envInt("MODERATION_SEVERITY_THRESHOLD", 4),
		ModerationFailOpen:    envBool("MODERATION_FAIL_OPEN", false),
		StorePath:             envStr("AGENTHUB_STORE_PATH", ""),
		CustomerID:            envStr("AGENTHUB_CUSTOMER_ID", "88129215"),
		FactsServerCmd:        envStr("FACTS_SERVER_CMD", "factsd"),
		FactsAPIBaseURL:       envStr("FACTS_API_BASE_URL", "https://api.chucknorris.io/jokes"),
		RelayDatabaseURL:      envStr("RELAY_DATABASE_URL", ""),
		RelayNotifyURL:        envStr("RELAY_NOTIFY_URL", ""),
		RelayInboundQueue:     envStr("RELAY_INBOUND_QUEUE", "relay_inbound"),
		RelayOutboundQueue:    envStr("RELAY_OUTBOUND_QUEUE", "relay_outbound"),
		RelayPollInterval:     envDuration("RELAY_POLL_INTERVAL", 2*time.Second),
		RelayBatchSize:        envInt("RELAY_BATCH_SIZE", 32),
		OTELEndpoint:          envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:          envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:           envStr("OTEL_SERVICE_NAME", "agenthub"),
		LogLevel:              envStr("AGENTHUB_LOG_LEVEL", "info"),
	}
	return cfg
}

// Validate checks that required configuration is present and in range.
// The error lists every missing required variable, not just the first.
func (c Config) Validate() error {
	var missing []string
	if c.AgentEndpoint == "" {
		missing = append(missing, "AGENTHUB_ENDPOINT")
	}
	if c.ModelDeployment == "" {
		missing = append(missing, "MODEL_DEPLOYMENT")
	}
	if len(missing) > 0 {
		return &MissingVarsError{Vars: missing}
	}
	if c.ModerationThreshold < 0 || c.ModerationThreshold > 7 {
		return fmt.Errorf("config: MODERATION_SEVERITY_THRESHOLD must be between 0 and 7")
	}
	if c.RelayBatchSize <= 0 {
		return fmt.Errorf("config: RELAY_BATCH_SIZE must be positive")
	}
	return nil
}

// ValidateRelay checks the subset of configuration the relay worker uses.
func (c Config) ValidateRelay() error {
	if c.RelayDatabaseURL == "" {
		return &MissingVarsError{Vars: []string{"RELAY_DATABASE_URL"}}
	}
	if c.RelayBatchSize <= 0 {
		return fmt.Errorf("config: RELAY_BATCH_SIZE must be positive")
	}
	if c.RelayPollInterval <= 0 {
		return fmt.Errorf("config: RELAY_POLL_INTERVAL must be positive")
	}
	return nil
}

// MissingVarsError reports the required environment variables that are unset.
type MissingVarsError struct {
	Vars []string
}

func (e *MissingVarsError) Error() string {
	return fmt.Sprintf("config: missing required environment variables: %v", e.Vars)
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
