package news

import (
	"context"
	"sync"
	"time"

	"stock-analysis-bot/internal/interfaces"
	"stock-analysis-bot/internal/limiter"
	"stock-analysis-bot/internal/logger"
	"stock-analysis-bot/internal/store"
	"stock-analysis-bot/internal/types"
)

// Service provides news sentiment analysis with caching. A scrape or model
// failure degrades to a neutral sentiment rather than failing the symbol's
// analysis pipeline.
type Service struct {
	scraper  *Scraper
	analyzer *SentimentAnalyzer
	cache    *sentimentCache
	cfg      *ServiceConfig
}

// ServiceConfig configures the news sentiment service
type ServiceConfig struct {
	MaxArticles    int           // Maximum articles to scrape per symbol
	CacheDuration  time.Duration // How long to cache sentiment data
	ScraperTimeout time.Duration // Timeout for scraping operations
	Enabled        bool          // Whether sentiment analysis is enabled
}

// ConfigFrom maps the bot config's news section onto a ServiceConfig.
func ConfigFrom(cfg *store.Config) *ServiceConfig {
	return &ServiceConfig{
		MaxArticles:    cfg.News.MaxArticles,
		CacheDuration:  time.Duration(cfg.News.CacheMinutes) * time.Minute,
		ScraperTimeout: time.Duration(cfg.News.TimeoutSeconds) * time.Second,
		Enabled:        cfg.News.Enabled,
	}
}

// sentimentCache stores sentiment results temporarily
type sentimentCache struct {
	mu       sync.RWMutex
	data     map[string]*cacheEntry
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

type cacheEntry struct {
	sentiment types.NewsSentiment
	timestamp time.Time
}

func newSentimentCache(ttl time.Duration) *sentimentCache {
	cache := &sentimentCache{
		data: make(map[string]*cacheEntry),
		ttl:  ttl,
		stop: make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// get retrieves cached sentiment if valid
func (c *sentimentCache) get(code string) (types.NewsSentiment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[code]
	if !exists {
		return types.NewsSentiment{}, false
	}
	if time.Since(entry.timestamp) > c.ttl {
		return types.NewsSentiment{}, false
	}
	return entry.sentiment, true
}

// set stores sentiment in cache
func (c *sentimentCache) set(code string, sentiment types.NewsSentiment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[code] = &cacheEntry{
		sentiment: sentiment,
		timestamp: time.Now(),
	}
}

// cleanupLoop periodically removes expired entries until close is called
func (c *sentimentCache) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *sentimentCache) close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *sentimentCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for code, entry := range c.data {
		if now.Sub(entry.timestamp) > c.ttl {
			delete(c.data, code)
		}
	}
}

// NewService creates a new news sentiment service
func NewService(serviceCfg *ServiceConfig, completer interfaces.Completer, limits *limiter.Registry) *Service {
	return &Service{
		scraper:  NewScraper(serviceCfg.ScraperTimeout),
		analyzer: NewSentimentAnalyzer(completer, limits),
		cache:    newSentimentCache(serviceCfg.CacheDuration),
		cfg:      serviceCfg,
	}
}

// GetSentiment retrieves news sentiment for a symbol (cached or fresh)
func (s *Service) GetSentiment(ctx context.Context, symbol types.Symbol) (types.NewsSentiment, error) {
	if !s.cfg.Enabled {
		return types.NewsSentiment{
			Symbol:           symbol.Code,
			OverallSentiment: "NEUTRAL",
			Summary:          "Sentiment analysis disabled",
			Timestamp:        time.Now().Unix(),
		}, nil
	}

	if cached, ok := s.cache.get(symbol.Code); ok {
		logger.Info(ctx, "Using cached sentiment", "symbol", symbol.Code, "age_minutes",
			time.Since(time.Unix(cached.Timestamp, 0)).Minutes())
		return cached, nil
	}

	logger.Info(ctx, "Fetching fresh news sentiment", "symbol", symbol.Code)
	sentiment, err := s.fetchFreshSentiment(ctx, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch sentiment", err, "symbol", symbol.Code)
		// neutral on error rather than failing the caller's pipeline
		return types.NewsSentiment{
			Symbol:           symbol.Code,
			OverallSentiment: "NEUTRAL",
			Summary:          "Failed to fetch sentiment: " + err.Error(),
			Timestamp:        time.Now().Unix(),
		}, nil
	}

	s.cache.set(symbol.Code, sentiment)

	return sentiment, nil
}

// fetchFreshSentiment scrapes and analyzes news for a symbol
func (s *Service) fetchFreshSentiment(ctx context.Context, symbol types.Symbol) (types.NewsSentiment, error) {
	articles, err := s.scraper.ScrapeNews(ctx, symbol, s.cfg.MaxArticles)
	if err != nil {
		return types.NewsSentiment{}, err
	}

	// If no articles found, try Google News as fallback
	if len(articles) == 0 {
		logger.Info(ctx, "No articles from primary sources, trying Google News", "symbol", symbol.Code)
		articles, err = s.scraper.ScrapeGoogleNews(ctx, symbol, s.cfg.MaxArticles)
		if err != nil {
			logger.ErrorWithErr(ctx, "Google News fallback failed", err, "symbol", symbol.Code)
		}
	}

	return s.analyzer.AnalyzeMultipleArticles(ctx, symbol, articles)
}

// RefreshSentiment forces a refresh of sentiment data (bypasses cache)
func (s *Service) RefreshSentiment(ctx context.Context, symbol types.Symbol) (types.NewsSentiment, error) {
	sentiment, err := s.fetchFreshSentiment(ctx, symbol)
	if err != nil {
		return types.NewsSentiment{}, err
	}

	s.cache.set(symbol.Code, sentiment)
	return sentiment, nil
}

// Close stops the cache cleanup goroutine. Safe to call more than once.
func (s *Service) Close() {
	s.cache.close()
}

// ClearCache removes all cached sentiment data
func (s *Service) ClearCache() {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	s.cache.data = make(map[string]*cacheEntry)
}
