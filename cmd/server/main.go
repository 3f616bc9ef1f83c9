package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/onehealth/internal/archive"
	"github.com/Skufu/onehealth/internal/cache"
	"github.com/Skufu/onehealth/internal/config"
	"github.com/Skufu/onehealth/internal/metrics"
	"github.com/Skufu/onehealth/internal/predict"
	"github.com/Skufu/onehealth/internal/store"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

func main() {
	gin.SetMode(config.GetEnv("GIN_MODE", "release"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx := context.Background()
	st, closeStore, err := store.Open(ctx, cfg.StoreOptions(), logger)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	m := metrics.New()
	app := newServer(st, cfg, m, logger)

	if cfg.RedisURL != "" {
		c, err := cache.Connect(ctx, cfg.RedisURL, cfg.CacheTTL, m, logger)
		if err != nil {
			logger.Warn("cache disabled", "error", err)
		} else {
			app.cache = c
			defer c.Close()
		}
	}
	if cfg.ForecastURL != "" {
		app.predictor = predict.NewPredictor(
			predict.NewRemoteForecaster(cfg.ForecastURL, cfg.ForecastTimeout, logger), cfg.Policy, logger)
	}

	var scheduler *archive.Scheduler
	if cfg.ArchivePath != "" {
		a, err := archive.Open(cfg.ArchivePath)
		if err != nil {
			log.Fatalf("archive: %v", err)
		}
		defer a.Close()
		app.archive = a
		scheduler, err = archive.NewScheduler(a, cfg.ArchiveSchedule, cfg.ArchiveRetention, app.assessSnapshot, logger)
		if err != nil {
			log.Fatalf("archive: %v", err)
		}
		scheduler.Start()
	}

	router := setupRouter(app, detectStaticRoot(cfg.StaticDir))
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	logger.Info("server listening", "port", cfg.Port, "db", cfg.EnableDB)
	waitForShutdown(server, scheduler, logger)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})).
		With("service", "onehealth")
}

func waitForShutdown(server *http.Server, scheduler *archive.Scheduler, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop(ctx)
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// detectStaticRoot returns the directory holding the dashboard build, or ""
// when none is found.
func detectStaticRoot(configured string) string {
	if configured != "" {
		if fileExists(filepath.Join(configured, "index.html")) {
			return configured
		}
		return ""
	}
	startDir, err := os.Getwd()
	if err != nil {
		return ""
	}
	candidates := []string{
		filepath.Join(startDir, "dist"),
		filepath.Join(startDir, "client", "dist"),
		filepath.Join(filepath.Dir(startDir), "client", "dist"),
	}
	for _, dir := range candidates {
		if fileExists(filepath.Join(dir, "index.html")) {
			return dir
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
