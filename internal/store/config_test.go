package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "mode: TEST\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Screening.Condition != "10stars" {
		t.Errorf("condition default = %q, want 10stars", cfg.Screening.Condition)
	}
	if cfg.Screening.MaxSymbols != 10 {
		t.Errorf("max_symbols default = %d, want 10", cfg.Screening.MaxSymbols)
	}
	if cfg.CycleInterval() != 5*time.Minute {
		t.Errorf("cycle interval default = %s, want 5m", cfg.CycleInterval())
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("retry default = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if cfg.LLM.Provider != "NOOP" {
		t.Errorf("provider default = %q, want NOOP", cfg.LLM.Provider)
	}
	if !cfg.IsTest() {
		t.Error("TEST mode should report IsTest")
	}
	if _, ok := cfg.Services[ServiceFeed]; !ok {
		t.Error("feed service budget should be defaulted")
	}
}

func TestLoadConfigRejectsBadMode(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "mode: DRY_RUN\n")); err == nil {
		t.Error("want error for unknown mode")
	}
}

func TestLoadConfigRejectsWidePool(t *testing.T) {
	body := `
mode: TEST
cycle:
  workers: 8
services:
  feed:
    max_concurrent: 2
`
	if _, err := LoadConfig(writeConfig(t, body)); err == nil {
		t.Error("want error when workers exceed feed budget")
	}
}

func TestLoadConfigRejectsBadProvider(t *testing.T) {
	body := `
mode: LIVE
llm:
  provider: GEMINI
`
	if _, err := LoadConfig(writeConfig(t, body)); err == nil {
		t.Error("want error for unknown llm provider")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	body := `
mode: LIVE
screening:
  condition: momentum
  max_symbols: 5
cycle:
  interval_seconds: 60
  workers: 2
llm:
  provider: OPENAI
  model: gpt-4o
services:
  completion:
    max_concurrent: 2
    min_interval_ms: 300
`
	cfg, err := LoadConfig(writeConfig(t, body))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Screening.Condition != "momentum" || cfg.Screening.MaxSymbols != 5 {
		t.Errorf("screening overrides not applied: %+v", cfg.Screening)
	}
	if cfg.Services[ServiceCompletion].MinIntervalMS != 300 {
		t.Errorf("completion budget = %+v, want min_interval_ms 300", cfg.Services[ServiceCompletion])
	}
	if cfg.IsTest() {
		t.Error("LIVE mode should not report IsTest")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("want error for missing file")
	}
}
