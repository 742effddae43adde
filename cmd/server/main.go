package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ShivamCore/mlserve/internal/api"
	"github.com/ShivamCore/mlserve/internal/config"
	"github.com/ShivamCore/mlserve/internal/inference"
	"github.com/ShivamCore/mlserve/internal/store"
)

func main() {
	configPath := "mlserve.yaml"
	if override := strings.TrimSpace(os.Getenv("MLSERVE_CONFIG")); override != "" {
		configPath = override
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	logCloser, err := cfg.Log.ConfigureLogger(logrus.StandardLogger())
	if err != nil {
		logrus.Fatalf("configure logging: %v", err)
	}
	defer logCloser.Close()

	registry, err := inference.LoadRegistry(cfg.Models.Dir)
	if err != nil {
		logrus.Fatalf("load models: %v", err)
	}
	for _, d := range registry.All() {
		logrus.WithFields(logrus.Fields{
			"task":       d.Endpoint().Task,
			"loaded":     d.Loaded(),
			"model_type": d.ModelType(),
			"features":   d.Schema().Len(),
		}).Info("endpoint ready")
	}

	history, err := openHistory(cfg.History)
	if err != nil {
		logrus.Fatalf("open history: %v", err)
	}
	defer func() {
		if cerr := history.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close history")
		}
	}()

	server, err := api.NewServer(api.Config{
		Registry:         registry,
		History:          history,
		HistoryCap:       cfg.History.Cap,
		AllowedOrigins:   cfg.Security.AllowedOrigins,
		PredictRateLimit: cfg.Security.PredictRateLimit,
		BatchRateLimit:   cfg.Security.BatchRateLimit,
		RateWindow:       cfg.Security.RateWindow,
		InfoCacheTTL:     cfg.Models.InfoCacheTTL,
		MaxUploadBytes:   cfg.Security.MaxUploadBytes,
	})
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logrus.Infof("starting mlserve on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("graceful shutdown")
	}
}

func openHistory(cfg config.HistoryConfig) (store.History, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if cfg.Backend == config.BackendFile {
		return store.OpenFile(cfg.Path, cfg.Cap)
	}
	return store.Open(cfg.Path, true, cfg.Cap)
}
