// Files API server
//
// Serves tenant-scoped file listings and content to the browser UI:
// - Session JWT verification
// - One files gateway per project, created on first use
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sorenbs/ai-chatbot-full/internal/api"
	"github.com/sorenbs/ai-chatbot-full/internal/auth"
	"github.com/sorenbs/ai-chatbot-full/internal/config"
	"github.com/sorenbs/ai-chatbot-full/internal/logging"
	"github.com/sorenbs/ai-chatbot-full/internal/metrics"
	"github.com/sorenbs/ai-chatbot-full/internal/registry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("files API server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	if cfg.FilesAPIBaseURL == "" || cfg.FilesAPIKey == "" {
		// Not fatal: every files request will fail with a configuration error.
		logging.Warn("remote file store is not configured",
			zap.Bool("has_base_url", cfg.FilesAPIBaseURL != ""),
			zap.Bool("has_key", cfg.FilesAPIKey != ""))
	}

	authHandler, err := auth.New(cfg.JWTSecret)
	if err != nil {
		logging.Fatal("auth init failed", zap.Error(err))
	}

	gateways := registry.New(registry.Config{
		BaseURL: cfg.FilesAPIBaseURL,
		Token:   cfg.FilesAPIKey,
		Timeout: cfg.BackendTimeout,
	})

	srv := api.NewServer(gateways, authHandler, cfg.MaxBodyBytes)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logging.Error("graceful shutdown failed", zap.Error(err))
		}
		metricsServer.Close()
	}()

	logging.Info("HTTP server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
	logging.Info("server stopped", zap.Int("tenants", gateways.Len()))
}
