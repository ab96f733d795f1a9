package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"invoice-workflow-console/internal/config"
	"invoice-workflow-console/internal/logger"
	"invoice-workflow-console/internal/session"
	"invoice-workflow-console/internal/workflowapi"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("unable to load config: %v", err)
	}

	lg := logger.NewLogger(cfg.Log.Development)
	defer lg.Sync()

	api := workflowapi.NewClient(cfg.WorkflowAPI.BaseURL, cfg.WorkflowAPI.Timeout, lg)

	store, closeStore, err := newSessionStore(cfg)
	if err != nil {
		lg.Fatal("session store initialization failed", zap.Error(err))
	}
	defer closeStore()

	sessions := session.NewManager(store, api, cfg.Session.TTL, lg)
	r := newRouter(api, sessions, cfg.CORS.AllowedOrigins, lg)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("console listening",
			zap.String("addr", cfg.Server.Port),
			zap.String("workflow_api", cfg.WorkflowAPI.BaseURL),
			zap.String("sessions", cfg.Session.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Error("shutdown failed", zap.Error(err))
	}
}

func newSessionStore(cfg *config.Config) (session.Store, func(), error) {
	if cfg.Session.Backend != config.SessionBackendRedis {
		return session.NewMemoryStore(cfg.Session.TTL), func() {}, nil
	}

	rdb := session.NewRedisClient(cfg.Redis)
	store := session.NewRedisStore(rdb, cfg.Session.TTL)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return store, func() { _ = rdb.Close() }, nil
}
