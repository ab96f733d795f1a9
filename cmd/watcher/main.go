package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"invoice-workflow-console/internal/config"
	"invoice-workflow-console/internal/logger"
	"invoice-workflow-console/internal/workflowapi"
)

func main() {
	var (
		cfgPath  string
		apiURL   string
		threads  string
		interval time.Duration
	)
	flag.StringVar(&cfgPath, "config", "config.yaml", "path to config file (optional)")
	flag.StringVar(&apiURL, "api", "", "workflow API base URL (overrides config)")
	flag.StringVar(&threads, "threads", "", "comma separated thread ids to watch")
	flag.DurationVar(&interval, "interval", 10*time.Second, "poll interval")
	flag.Parse()

	ids := splitThreads(threads)
	if len(ids) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("unable to load config: %v", err)
	}
	if apiURL != "" {
		cfg.WorkflowAPI.BaseURL = apiURL
	}

	lg := logger.NewLogger(cfg.Log.Development)
	defer lg.Sync()

	api := workflowapi.NewClient(cfg.WorkflowAPI.BaseURL, cfg.WorkflowAPI.Timeout, lg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := newWatcher(api, ids, lg)
	lg.Info("watcher started", zap.Strings("threads", ids), zap.Duration("interval", interval))
	if err := w.Run(ctx, interval); err != nil && ctx.Err() == nil {
		lg.Fatal("watcher exited", zap.Error(err))
	}
	lg.Info("watcher stopped")
}

func splitThreads(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
