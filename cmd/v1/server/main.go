package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chathub/internal/v1/chat"
	"chathub/internal/v1/config"
	"chathub/internal/v1/health"
	"chathub/internal/v1/logging"
	"chathub/internal/v1/middleware"
	"chathub/internal/v1/tracing"
)

func main() {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool

	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		slog.Warn("No .env file found in any expected location, relying on environment variables")
	}

	// Validate environment variables before starting the server
	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if cfg.DevelopmentMode {
		slog.Info("Running in DEVELOPMENT MODE")
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	// --- Tracing (Optional) ---
	var tracer *tracing.Provider
	if cfg.TracingEnabled {
		tracer, err = tracing.Init(context.Background(), "chathub", cfg.OTELCollectorAddr)
		if err != nil {
			slog.Error("Failed to initialize tracing, continuing without it", "error", err)
			tracer = nil
		} else {
			slog.Info("✅ Tracing initialized", "collector", cfg.OTELCollectorAddr)
		}
	}

	// --- Create the Hub ---
	hub := chat.NewHub(cfg)

	// --- Set up Server ---
	router := gin.Default()
	// Cors
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	if cfg.AllowedOrigins != "" {
		var origins []string
		for _, origin := range strings.Split(cfg.AllowedOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		if len(origins) > 0 {
			corsConfig.AllowOrigins = origins
		}
	}
	router.Use(cors.New(corsConfig))

	// Error handling and per-request correlation
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	// Routing
	router.GET("/ws", hub.ServeWs)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoints
	healthHandler := health.NewHandler(hub)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	// Start the server.
	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Host, cfg.Port),
		Handler: router,
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		slog.Info("Chat server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// The context is used to inform the server it has 30 seconds to finish
	// the requests it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close all rooms and WebSocket connections gracefully
	if err := hub.Shutdown(ctx); err != nil {
		slog.Error("Error during Hub shutdown:", "error", err)
	}

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown:", "error", err)
	}

	// Flush traces if tracing was initialized
	if tracer != nil {
		if err := tracer.Shutdown(ctx); err != nil {
			slog.Error("Failed to shut down tracing:", "error", err)
		}
	}

	slog.Info("Server exiting")
}
