package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"stock-analysis-bot/internal/cyclelog"
	"stock-analysis-bot/internal/feed/feedobs"
	"stock-analysis-bot/internal/feed/fixture"
	"stock-analysis-bot/internal/feed/kiwoom"
	"stock-analysis-bot/internal/interfaces"
	"stock-analysis-bot/internal/limiter"
	"stock-analysis-bot/internal/llm/claude"
	"stock-analysis-bot/internal/llm/llmobs"
	"stock-analysis-bot/internal/llm/noop"
	"stock-analysis-bot/internal/llm/openai"
	"stock-analysis-bot/internal/logger"
	"stock-analysis-bot/internal/news"
	"stock-analysis-bot/internal/notify"
	"stock-analysis-bot/internal/store"
	"stock-analysis-bot/internal/trace"

	"github.com/joho/godotenv"
)

// initializeSystem initializes environment, logger and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize tracer
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// initializeLimits builds the per-service rate limiter registry from config
func initializeLimits(cfg *store.Config) *limiter.Registry {
	policy := limiter.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
	}
	limits := limiter.New(policy)
	for name, b := range cfg.Services {
		limits.AddService(name, limiter.Budget{
			MaxConcurrent: b.MaxConcurrent,
			MinInterval:   time.Duration(b.MinIntervalMS) * time.Millisecond,
		})
	}
	return limits
}

// initializeFeed returns the data feed for the configured mode with
// observability
func initializeFeed(ctx context.Context, cfg *store.Config) interfaces.DataFeed {
	var feed interfaces.DataFeed
	if cfg.IsTest() {
		logger.Warn(ctx, "Running in TEST mode - using deterministic fixture feed")
		feed = fixture.New()
	} else {
		logger.Info(ctx, "Using LIVE Kiwoom data feed")
		feed = kiwoom.New(cfg.Feed.BaseURL)
	}

	// Wrap with observability middleware
	return feedobs.Wrap(feed)
}

// initializeCompleter returns the model client with observability
func initializeCompleter(ctx context.Context, cfg *store.Config) interfaces.Completer {
	var completer interfaces.Completer

	switch cfg.LLM.Provider {
	case "OPENAI":
		completer = openai.New(cfg)
	case "CLAUDE":
		completer = claude.New(cfg)
	default:
		completer = noop.New()
		logger.Warn(ctx, "No LLM provider configured - using deterministic noop completer")
	}

	// Wrap with observability middleware
	return llmobs.Wrap(completer)
}

// initializeNotifier returns the cycle report sink for the configured mode
func initializeNotifier(ctx context.Context, cfg *store.Config, limits *limiter.Registry) interfaces.Notifier {
	if cfg.IsTest() {
		logger.Warn(ctx, "Running in TEST mode - cycle reports logged, not posted")
		return notify.NewFixture()
	}
	logger.Info(ctx, "Posting cycle reports to Slack", "channel", cfg.Slack.Channel)
	return notify.NewSlack(cfg, limits)
}

// initializeSentiment returns the news sentiment service, or nil when
// disabled
func initializeSentiment(ctx context.Context, cfg *store.Config, completer interfaces.Completer, limits *limiter.Registry) *news.Service {
	if !cfg.News.Enabled {
		logger.Info(ctx, "News sentiment analysis disabled")
		return nil
	}
	logger.Info(ctx, "News sentiment analysis enabled",
		"max_articles", cfg.News.MaxArticles,
		"cache_minutes", cfg.News.CacheMinutes)
	return news.NewService(news.ConfigFrom(cfg), completer, limits)
}

// compressOldReports gzips exported reports past the retention window
func compressOldReports(ctx context.Context, cfg *store.Config) {
	if err := cyclelog.CompressOlder(cfg.Export.Dir, cfg.Export.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old reports", "error", err)
	}
}
