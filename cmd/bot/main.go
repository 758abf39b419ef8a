package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-analysis-bot/internal/analyst"
	"stock-analysis-bot/internal/logger"
	"stock-analysis-bot/internal/marketclock"
	"stock-analysis-bot/internal/orchestrator"
)

func main() {
	if err := initializeSystem(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		os.Exit(1)
	}

	compressOldReports(ctx, cfg)

	limits := initializeLimits(cfg)
	feed := initializeFeed(ctx, cfg)
	completer := initializeCompleter(ctx, cfg)
	notifier := initializeNotifier(ctx, cfg, limits)
	sentiment := initializeSentiment(ctx, cfg, completer, limits)
	if sentiment != nil {
		defer sentiment.Close()
	}

	an := analyst.New(cfg, completer, limits)
	orch := orchestrator.New(cfg, feed, an, notifier, sentiment, limits)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info(ctx, "Shutting down", "signal", s.String())
		cancel()
	}()

	logger.Info(ctx, "Bot started",
		"mode", cfg.Mode,
		"condition", cfg.Screening.Condition,
		"market", marketclock.StatusString(time.Now()))

	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorWithErr(ctx, "Orchestrator stopped with error", err)
		os.Exit(1)
	}

	logger.Info(context.Background(), "Bot stopped")
	_ = logger.Shutdown(context.Background())
}
