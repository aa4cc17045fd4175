package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Defaults for the chat server's tunables.
const (
	DefaultPort                = "8765"
	DefaultHost                = "localhost"
	DefaultMaxMessageSize      = 1024 * 1024 // 1 MiB raw frame limit
	DefaultClientQueueCapacity = 128         // bounded per-client outbound queue
)

// Config holds validated environment configuration
type Config struct {
	// Listener
	Host string
	Port string

	// Protocol limits
	MaxMessageSize      int64
	ClientQueueCapacity int

	// Optional variables with defaults
	GoEnv           string
	LogLevel        string
	DevelopmentMode bool
	AllowedOrigins  string

	// Tracing
	TracingEnabled    bool
	OTELCollectorAddr string
}

// ValidateEnv validates all environment variables and returns a Config object.
// Returns an error if any variable is present but invalid.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	// Optional: HOST (defaults to localhost)
	cfg.Host = getEnvOrDefault("HOST", DefaultHost)

	// Optional: PORT (defaults to 8765, must be a valid port number)
	cfg.Port = getEnvOrDefault("PORT", DefaultPort)
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
	}

	// Optional: MAX_MESSAGE_SIZE (defaults to 1 MiB, must be positive)
	rawSize := getEnvOrDefault("MAX_MESSAGE_SIZE", strconv.Itoa(DefaultMaxMessageSize))
	size, err := strconv.ParseInt(rawSize, 10, 64)
	if err != nil || size < 1 {
		errors = append(errors, fmt.Sprintf("MAX_MESSAGE_SIZE must be a positive integer (got '%s')", rawSize))
	}
	cfg.MaxMessageSize = size

	// Optional: CLIENT_QUEUE_CAPACITY (defaults to 128, must be positive)
	rawCap := getEnvOrDefault("CLIENT_QUEUE_CAPACITY", strconv.Itoa(DefaultClientQueueCapacity))
	queueCap, err := strconv.Atoi(rawCap)
	if err != nil || queueCap < 1 {
		errors = append(errors, fmt.Sprintf("CLIENT_QUEUE_CAPACITY must be a positive integer (got '%s')", rawCap))
	}
	cfg.ClientQueueCapacity = queueCap

	// Optional: GO_ENV (defaults to "production")
	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")

	// Optional: LOG_LEVEL (defaults to "info")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	// Tracing is opt-in; the collector address only matters when enabled.
	cfg.TracingEnabled = os.Getenv("TRACING_ENABLED") == "true"
	if cfg.TracingEnabled {
		cfg.OTELCollectorAddr = os.Getenv("OTEL_COLLECTOR_ADDR")
		if cfg.OTELCollectorAddr == "" {
			cfg.OTELCollectorAddr = "localhost:4317"
			slog.Warn("OTEL_COLLECTOR_ADDR not set, using default", "addr", cfg.OTELCollectorAddr)
		} else if !isValidHostPort(cfg.OTELCollectorAddr) {
			errors = append(errors, fmt.Sprintf("OTEL_COLLECTOR_ADDR must be in format 'host:port' (got '%s')", cfg.OTELCollectorAddr))
		}
	}

	// If there are validation errors, return them
	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	// Validate port is a number
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	// Validate host is not empty
	if parts[0] == "" {
		return false
	}

	return true
}

// logValidatedConfig logs the validated configuration
func logValidatedConfig(cfg *Config) {
	slog.Info("Environment configuration validated successfully")
	slog.Info("Configuration",
		"host", cfg.Host,
		"port", cfg.Port,
		"max_message_size", cfg.MaxMessageSize,
		"client_queue_capacity", cfg.ClientQueueCapacity,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"development_mode", cfg.DevelopmentMode,
		"tracing_enabled", cfg.TracingEnabled,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
