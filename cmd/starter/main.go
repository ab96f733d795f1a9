package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"invoice-workflow-console/internal/config"
	"invoice-workflow-console/internal/console"
	"invoice-workflow-console/internal/logger"
	"invoice-workflow-console/internal/modal"
	"invoice-workflow-console/internal/report"
	"invoice-workflow-console/internal/workflowapi"
)

// starter drives a single workflow operation from the command line and prints
// the workflow the service returns:
//
//	starter -start -project "Website" -client Acme -email ap@acme.test -currency EUR -amount 12000
//	starter -resume thread-123 -decision yes
//	starter -status thread-123
//	starter -history thread-123 -limit 10
func main() {
	var (
		cfgPath  = flag.String("config", "config.yaml", "path to config file (optional)")
		apiURL   = flag.String("api", "", "workflow API base URL (overrides config)")
		start    = flag.Bool("start", false, "start a new workflow")
		project  = flag.String("project", "", "project name")
		client   = flag.String("client", "", "client name")
		email    = flag.String("email", "", "client email")
		currency = flag.String("currency", "USD", "currency (USD, EUR, GBP, INR, CAD, AUD)")
		amount   = flag.String("amount", "", "total amount")
		resume   = flag.String("resume", "", "thread id to resume")
		decision = flag.String("decision", "", "decision for the pending interrupt")
		status   = flag.String("status", "", "thread id to check")
		history  = flag.String("history", "", "thread id whose checkpoint history to print")
		limit    = flag.Int("limit", workflowapi.DefaultHistoryLimit, "number of history checkpoints (1-100)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("unable to load config: %v", err)
	}
	if *apiURL != "" {
		cfg.WorkflowAPI.BaseURL = *apiURL
	}

	lg := logger.NewLogger(cfg.Log.Development)
	defer lg.Sync()

	api := workflowapi.NewClient(cfg.WorkflowAPI.BaseURL, cfg.WorkflowAPI.Timeout, lg)
	c := console.New(api, lg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *history != "" {
		h, err := api.History(ctx, *history, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", workflowapi.Message(err))
			os.Exit(1)
		}
		report.History(os.Stdout, h)
		return
	}

	switch {
	case *start:
		c.UpdateForm(console.Form{
			ProjectName: *project,
			ClientName:  *client,
			ClientEmail: *email,
			Currency:    modal.Currency(*currency),
			TotalAmount: *amount,
		})
		err = c.Start(ctx)
	case *resume != "":
		// Load the thread first so the decision is checked against the pending interrupt.
		if err = c.CheckStatus(ctx, *resume); err == nil {
			err = c.Resume(ctx, *decision)
		}
	case *status != "":
		err = c.CheckStatus(ctx, *status)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		msg := c.Snapshot().Error
		if msg == "" {
			msg = err.Error()
		}
		lg.Debug("operation failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", msg)
		if errors.Is(err, console.ErrNotReady) {
			flag.Usage()
		}
		os.Exit(1)
	}

	report.Workflow(os.Stdout, c.Snapshot().Workflow)
}
