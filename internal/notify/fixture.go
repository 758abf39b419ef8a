package notify

import (
	"context"
	"sync"

	"stock-analysis-bot/internal/interfaces"
	"stock-analysis-bot/internal/logger"
	"stock-analysis-bot/internal/types"
)

// Fixture is the TEST-mode notifier. It records every delivery in memory
// and logs a one-line summary instead of posting to Slack.
type Fixture struct {
	mu       sync.Mutex
	reports  []*types.CycleReport
	failures []string
}

var _ interfaces.Notifier = (*Fixture)(nil)

func NewFixture() *Fixture { return &Fixture{} }

func (f *Fixture) Deliver(ctx context.Context, report *types.CycleReport) error {
	f.mu.Lock()
	f.reports = append(f.reports, report)
	f.mu.Unlock()

	logger.Info(ctx, "Cycle report delivered (fixture)",
		"condition", report.Condition,
		"succeeded", report.Succeeded,
		"failed", report.Failed)
	return nil
}

func (f *Fixture) DeliverFailure(ctx context.Context, reason string) error {
	f.mu.Lock()
	f.failures = append(f.failures, reason)
	f.mu.Unlock()

	logger.Warn(ctx, "Cycle failure delivered (fixture)", "reason", reason)
	return nil
}

// Reports returns a copy of everything delivered so far.
func (f *Fixture) Reports() []*types.CycleReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.CycleReport, len(f.reports))
	copy(out, f.reports)
	return out
}

// Failures returns the abort notices delivered so far.
func (f *Fixture) Failures() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.failures))
	copy(out, f.failures)
	return out
}
