package store

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the immutable application configuration, constructed once at
// startup and passed by reference. Secrets (API keys, tokens) stay in the
// environment and are read by the clients that need them.
type Config struct {
	Mode string `yaml:"mode"` // TEST or LIVE

	Screening struct {
		Condition    string `yaml:"condition"`
		MaxSymbols   int    `yaml:"max_symbols"`
		LookbackDays int    `yaml:"lookback_days"`
	} `yaml:"screening"`

	Cycle struct {
		IntervalSeconds int `yaml:"interval_seconds"`
		Workers         int `yaml:"workers"`
	} `yaml:"cycle"`

	Services map[string]ServiceBudget `yaml:"services"`

	Retry struct {
		MaxAttempts int `yaml:"max_attempts"`
		BaseDelayMS int `yaml:"base_delay_ms"`
		MaxDelayMS  int `yaml:"max_delay_ms"`
	} `yaml:"retry"`

	LLM struct {
		Provider    string  `yaml:"provider"` // OPENAI, CLAUDE or NOOP
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
		System      string  `yaml:"system"`
	} `yaml:"llm"`

	Feed struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"feed"`

	Slack struct {
		Channel string `yaml:"channel"`
	} `yaml:"slack"`

	News struct {
		Enabled        bool `yaml:"enabled"`
		MaxArticles    int  `yaml:"max_articles"`
		CacheMinutes   int  `yaml:"cache_minutes"`
		TimeoutSeconds int  `yaml:"timeout_seconds"`
	} `yaml:"news"`

	Export struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"export"`
}

// ServiceBudget configures the rate limiter for one external service.
type ServiceBudget struct {
	MaxConcurrent int `yaml:"max_concurrent"`
	MinIntervalMS int `yaml:"min_interval_ms"`
}

// Service names used throughout the pipeline.
const (
	ServiceFeed       = "feed"
	ServiceCompletion = "completion"
	ServiceNotify     = "notify"
)

// IsTest reports whether fixture collaborators should replace live ones.
func (c *Config) IsTest() bool { return c.Mode == "TEST" }

// CycleInterval returns the inter-cycle delay.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Cycle.IntervalSeconds) * time.Second
}

func (c *Config) Validate() error {
	if c.Mode != "TEST" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'TEST' or 'LIVE'", c.Mode)
	}
	if c.Screening.Condition == "" {
		return fmt.Errorf("screening.condition cannot be empty")
	}
	if c.Screening.MaxSymbols <= 0 {
		return fmt.Errorf("screening.max_symbols must be positive, got %d", c.Screening.MaxSymbols)
	}
	if c.Cycle.Workers <= 0 {
		return fmt.Errorf("cycle.workers must be positive, got %d", c.Cycle.Workers)
	}
	// a pool wider than the call budget would just queue on the limiter
	// and hammer it on release
	for _, svc := range []string{ServiceFeed, ServiceCompletion} {
		if b, ok := c.Services[svc]; ok && c.Cycle.Workers > b.MaxConcurrent {
			return fmt.Errorf("cycle.workers (%d) exceeds %s max_concurrent (%d)", c.Cycle.Workers, svc, b.MaxConcurrent)
		}
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	switch c.LLM.Provider {
	case "OPENAI", "CLAUDE", "NOOP":
	default:
		return fmt.Errorf("llm.provider must be 'OPENAI', 'CLAUDE' or 'NOOP', got '%s'", c.LLM.Provider)
	}
	return nil
}

// LoadConfig reads, defaults and validates the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "TEST"
	}
	if c.Screening.Condition == "" {
		c.Screening.Condition = "10stars"
	}
	if c.Screening.MaxSymbols == 0 {
		c.Screening.MaxSymbols = 10
	}
	if c.Screening.LookbackDays == 0 {
		c.Screening.LookbackDays = 100
	}
	if c.Cycle.IntervalSeconds == 0 {
		c.Cycle.IntervalSeconds = 300
	}
	if c.Cycle.Workers == 0 {
		c.Cycle.Workers = 4
	}
	if c.Services == nil {
		c.Services = map[string]ServiceBudget{}
	}
	if _, ok := c.Services[ServiceFeed]; !ok {
		c.Services[ServiceFeed] = ServiceBudget{MaxConcurrent: 4, MinIntervalMS: 250}
	}
	if _, ok := c.Services[ServiceCompletion]; !ok {
		c.Services[ServiceCompletion] = ServiceBudget{MaxConcurrent: 4, MinIntervalMS: 500}
	}
	if _, ok := c.Services[ServiceNotify]; !ok {
		c.Services[ServiceNotify] = ServiceBudget{MaxConcurrent: 1, MinIntervalMS: 1000}
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelayMS == 0 {
		c.Retry.BaseDelayMS = 500
	}
	if c.Retry.MaxDelayMS == 0 {
		c.Retry.MaxDelayMS = 8000
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "NOOP"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 2000
	}
	if c.Slack.Channel == "" {
		c.Slack.Channel = "#trading-alerts"
	}
	if c.News.MaxArticles == 0 {
		c.News.MaxArticles = 10
	}
	if c.News.CacheMinutes == 0 {
		c.News.CacheMinutes = 60
	}
	if c.News.TimeoutSeconds == 0 {
		c.News.TimeoutSeconds = 30
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "data"
	}
	if c.Export.RetentionDays == 0 {
		c.Export.RetentionDays = 14
	}
}
