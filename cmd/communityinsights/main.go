package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"

	"CommunityInsights/internal/app"
	"CommunityInsights/internal/config"
	"CommunityInsights/internal/domain"
	"CommunityInsights/internal/logging"
	"CommunityInsights/internal/usecase"
)

func main() {
	os.Exit(run())
}

func run() int {
	once := flag.String("once", "", "run a single workflow (scrape|generate) and exit")
	checkLogin := flag.Bool("check-login", false, "log in to the community and exit")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}
	if !strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		return 1
	}
	defer application.Close()

	switch {
	case *checkLogin:
		ok, err := application.CheckLogin(ctx)
		if err != nil {
			logger.Error("login check failed", "error", err)
			return 1
		}
		if !ok {
			logger.Error("login rejected", "email", cfg.Community.Email)
			return 1
		}
		logger.Info("login succeeded", "email", cfg.Community.Email)
		return 0

	case *once != "":
		kind := domain.WorkflowKind(*once)
		if kind != domain.WorkflowScrape && kind != domain.WorkflowGenerate {
			fmt.Fprintf(os.Stderr, "unknown workflow %q, want scrape or generate\n", *once)
			return 2
		}
		report, err := application.RunOnce(ctx, kind)
		fmt.Println(usecase.FormatReport(report))
		if err != nil {
			logger.Error("workflow failed", "kind", kind, "error", err)
			return 1
		}
		return 0
	}

	if err := application.Serve(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		return 1
	}
	return 0
}
