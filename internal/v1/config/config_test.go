package config

import (
	"strings"
	"testing"
)

func TestValidateEnv_Defaults(t *testing.T) {
	// Pin the variables defaults depend on so an ambient environment cannot
	// skew the test.
	t.Setenv("HOST", DefaultHost)
	t.Setenv("PORT", DefaultPort)
	t.Setenv("MAX_MESSAGE_SIZE", "1048576")
	t.Setenv("CLIENT_QUEUE_CAPACITY", "128")

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Host != "localhost" {
		t.Errorf("Expected default host localhost, got %q", cfg.Host)
	}
	if cfg.Port != "8765" {
		t.Errorf("Expected default port 8765, got %q", cfg.Port)
	}
	if cfg.MaxMessageSize != 1048576 {
		t.Errorf("Expected max message size 1048576, got %d", cfg.MaxMessageSize)
	}
	if cfg.ClientQueueCapacity != 128 {
		t.Errorf("Expected queue capacity 128, got %d", cfg.ClientQueueCapacity)
	}
	if cfg.GoEnv != "production" {
		t.Errorf("Expected default GO_ENV production, got %q", cfg.GoEnv)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LOG_LEVEL info, got %q", cfg.LogLevel)
	}
	if cfg.DevelopmentMode {
		t.Error("Expected development mode to default to false")
	}
	if cfg.TracingEnabled {
		t.Error("Expected tracing to default to disabled")
	}
}

func TestValidateEnv_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("Expected error for invalid PORT")
	}
	if !strings.Contains(err.Error(), "PORT") {
		t.Errorf("Expected PORT in error, got: %v", err)
	}
}

func TestValidateEnv_PortOutOfRange(t *testing.T) {
	t.Setenv("PORT", "70000")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("Expected error for out-of-range PORT")
	}
}

func TestValidateEnv_InvalidMaxMessageSize(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "-5")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("Expected error for negative MAX_MESSAGE_SIZE")
	}
	if !strings.Contains(err.Error(), "MAX_MESSAGE_SIZE") {
		t.Errorf("Expected MAX_MESSAGE_SIZE in error, got: %v", err)
	}
}

func TestValidateEnv_InvalidQueueCapacity(t *testing.T) {
	t.Setenv("CLIENT_QUEUE_CAPACITY", "0")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("Expected error for zero CLIENT_QUEUE_CAPACITY")
	}
}

func TestValidateEnv_CustomValues(t *testing.T) {
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_MESSAGE_SIZE", "2048")
	t.Setenv("CLIENT_QUEUE_CAPACITY", "16")
	t.Setenv("DEVELOPMENT_MODE", "true")
	t.Setenv("GO_ENV", "development")

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Host != "0.0.0.0" || cfg.Port != "9000" {
		t.Errorf("Unexpected listener config: %s:%s", cfg.Host, cfg.Port)
	}
	if cfg.MaxMessageSize != 2048 {
		t.Errorf("Expected max message size 2048, got %d", cfg.MaxMessageSize)
	}
	if cfg.ClientQueueCapacity != 16 {
		t.Errorf("Expected queue capacity 16, got %d", cfg.ClientQueueCapacity)
	}
	if !cfg.DevelopmentMode {
		t.Error("Expected development mode enabled")
	}
}

func TestValidateEnv_TracingCollectorValidation(t *testing.T) {
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("OTEL_COLLECTOR_ADDR", "no-port")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("Expected error for malformed OTEL_COLLECTOR_ADDR")
	}
	if !strings.Contains(err.Error(), "OTEL_COLLECTOR_ADDR") {
		t.Errorf("Expected OTEL_COLLECTOR_ADDR in error, got: %v", err)
	}
}

func TestIsValidHostPort(t *testing.T) {
	valid := []string{"localhost:8765", "10.0.0.1:1", "collector:4317"}
	invalid := []string{"", "localhost", ":8765", "host:", "host:abc", "host:0", "host:99999"}

	for _, addr := range valid {
		if !isValidHostPort(addr) {
			t.Errorf("Expected %q to be valid", addr)
		}
	}
	for _, addr := range invalid {
		if isValidHostPort(addr) {
			t.Errorf("Expected %q to be invalid", addr)
		}
	}
}
