// Reference file store
//
// Serves GET/POST /files/{projectId}?path= from local disk or S3/MinIO,
// the protocol the files API server's gateways speak.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sorenbs/ai-chatbot-full/internal/config"
	"github.com/sorenbs/ai-chatbot-full/internal/filestore"
	"github.com/sorenbs/ai-chatbot-full/internal/logging"
	"github.com/sorenbs/ai-chatbot-full/internal/metrics"
	"github.com/sorenbs/ai-chatbot-full/internal/storage"
	"github.com/sorenbs/ai-chatbot-full/internal/storage/local"
	s3storage "github.com/sorenbs/ai-chatbot-full/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadStore()
	if err != nil {
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backendConfig, err := backendJSON(cfg)
	if err != nil {
		logging.Fatal("storage config", zap.Error(err))
	}
	backend, err := storage.NewBackendFromConfig(ctx, cfg.StorageBackend, backendConfig)
	if err != nil {
		logging.Fatal("storage init failed", zap.Error(err))
	}
	defer backend.Close()

	logging.Info("file store starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("backend", backend.Type()))

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
		Handler:           filestore.New(backend, cfg.APIKey, cfg.MaxBodyBytes).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Close()
	}()

	logging.Info("HTTP server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}

func backendJSON(cfg *config.StoreConfig) (json.RawMessage, error) {
	if cfg.StorageBackend == "s3" {
		return json.Marshal(s3storage.BackendConfig{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	}
	return json.Marshal(local.Config{
		RootPath:   cfg.LocalStoragePath,
		CreateDirs: true,
	})
}
