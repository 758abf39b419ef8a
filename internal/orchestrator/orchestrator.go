package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stock-analysis-bot/internal/analyst"
	"stock-analysis-bot/internal/cyclelog"
	"stock-analysis-bot/internal/indicator"
	"stock-analysis-bot/internal/interfaces"
	"stock-analysis-bot/internal/limiter"
	"stock-analysis-bot/internal/logger"
	"stock-analysis-bot/internal/marketclock"
	"stock-analysis-bot/internal/news"
	"stock-analysis-bot/internal/store"
	"stock-analysis-bot/internal/trace"
	"stock-analysis-bot/internal/types"
)

// State is the orchestrator's cycle state. Only the control loop writes it.
type State string

const (
	StateIdle         State = "IDLE"
	StateAwaitingOpen State = "AWAITING_MARKET_OPEN"
	StateRunning      State = "RUNNING"
	StateCompleted    State = "COMPLETED"
	StateAborted      State = "ABORTED"
)

// Transition records one state change for inspection.
type Transition struct {
	From   State
	To     State
	Reason string
	At     time.Time
}

// Orchestrator drives the analysis cycle: gate on market hours, screen,
// fan out per-symbol pipelines, seal the report, notify once.
type Orchestrator struct {
	cfg       *store.Config
	feed      interfaces.DataFeed
	analyst   *analyst.Analyst
	notifier  interfaces.Notifier
	sentiment *news.Service
	limits    *limiter.Registry

	// clock hooks, replaceable in tests
	now      func() time.Time
	isOpen   func(time.Time) bool
	nextOpen func(time.Time) time.Time

	mu          sync.Mutex
	state       State
	transitions []Transition
}

// New wires an orchestrator. sentiment may be nil when news analysis is
// disabled.
func New(cfg *store.Config, feed interfaces.DataFeed, an *analyst.Analyst, notifier interfaces.Notifier, sentiment *news.Service, limits *limiter.Registry) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		feed:      feed,
		analyst:   an,
		notifier:  notifier,
		sentiment: sentiment,
		limits:    limits,
		now:       time.Now,
		isOpen:    marketclock.IsOpen,
		nextOpen:  marketclock.NextOpen,
		state:     StateIdle,
	}
}

// State returns the current cycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Transitions returns a copy of the recorded state changes.
func (o *Orchestrator) Transitions() []Transition {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Transition, len(o.transitions))
	copy(out, o.transitions)
	return out
}

// setState is called from the control loop only.
func (o *Orchestrator) setState(ctx context.Context, to State, reason string) {
	o.mu.Lock()
	from := o.state
	o.state = to
	o.transitions = append(o.transitions, Transition{From: from, To: to, Reason: reason, At: o.now()})
	o.mu.Unlock()

	logger.Cycle(ctx, string(to), "from", string(from), "reason", reason)
}

// Run executes analysis cycles until ctx is canceled. While the market is
// closed it sleeps without touching any collaborator.
func (o *Orchestrator) Run(ctx context.Context) error {
	logger.Info(ctx, "Orchestrator starting",
		"condition", o.cfg.Screening.Condition,
		"interval", o.cfg.CycleInterval().String(),
		"workers", o.cfg.Cycle.Workers)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		now := o.now()
		if !o.isOpen(now) {
			next := o.nextOpen(now)
			o.setState(ctx, StateAwaitingOpen, "market closed until "+next.In(marketclock.KST).Format("2006-01-02 15:04"))
			if err := sleepUntil(ctx, next.Sub(now)); err != nil {
				return err
			}
			continue
		}

		o.runOnce(ctx)

		if err := sleepUntil(ctx, o.cfg.CycleInterval()); err != nil {
			return err
		}
	}
}

// RunOnce executes a single cycle regardless of the loop, for the manual
// trigger path. The market gate still applies.
func (o *Orchestrator) RunOnce(ctx context.Context) (*types.CycleReport, error) {
	if !o.isOpen(o.now()) {
		return nil, types.Validationf("market is closed")
	}
	return o.runOnce(ctx)
}

func (o *Orchestrator) runOnce(ctx context.Context) (*types.CycleReport, error) {
	ctx, span := trace.StartSpan(ctx, "analysis-cycle")
	defer span.End()

	timer := logger.StartOperation(ctx, "analysis_cycle", "condition", o.cfg.Screening.Condition)
	ctx = timer.GetContext()

	o.setState(ctx, StateRunning, "cycle started")
	start := o.now()

	symbols, err := o.screen(ctx)
	if err != nil {
		// nothing to analyze; the one notification this cycle is the abort notice
		o.setState(ctx, StateAborted, "screening failed")
		timer.EndWithError(err)
		if ctx.Err() == nil {
			if derr := o.notifier.DeliverFailure(ctx, err.Error()); derr != nil {
				logger.ErrorWithErr(ctx, "Failed to deliver abort notice", derr)
			}
		}
		return nil, err
	}

	if limit := o.cfg.Screening.MaxSymbols; limit > 0 && len(symbols) > limit {
		symbols = symbols[:limit]
	}

	results := o.analyzeAll(ctx, symbols)

	if ctx.Err() != nil {
		// shutdown mid-cycle: workers have returned, nothing is delivered
		o.setState(ctx, StateAborted, "shutdown during cycle")
		timer.EndWithError(ctx.Err())
		return nil, ctx.Err()
	}

	report := seal(o.cfg.Screening.Condition, start, o.now(), results)

	if err := o.notifier.Deliver(ctx, report); err != nil {
		logger.ErrorWithErr(ctx, "Failed to deliver cycle report", err)
	}

	if path, err := cyclelog.Write(o.cfg.Export.Dir, report); err != nil {
		logger.ErrorWithErr(ctx, "Failed to export cycle report", err)
	} else {
		logger.Debug(ctx, "Cycle report exported", "path", path)
	}
	if err := cyclelog.CompressOlder(o.cfg.Export.Dir, o.cfg.Export.RetentionDays); err != nil {
		logger.ErrorWithErr(ctx, "Failed to compress old reports", err)
	}

	o.setState(ctx, StateCompleted, fmt.Sprintf("%d analyzed, %d failed", report.Succeeded, report.Failed))
	timer.End("succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// screen resolves the condition to its symbol list under the feed budget.
func (o *Orchestrator) screen(ctx context.Context) ([]types.Symbol, error) {
	var symbols []types.Symbol
	attempts, err := o.limits.Execute(ctx, store.ServiceFeed, func(ctx context.Context) error {
		out, serr := o.feed.ScreenSymbols(ctx, o.cfg.Screening.Condition)
		if serr != nil {
			return serr
		}
		symbols = out
		return nil
	})
	if err != nil {
		return nil, &types.ServiceError{
			Kind:    types.KindCycleFault,
			Service: "feed",
			Stage:   "screening",
			Err:     fmt.Errorf("after %d attempts: %w", attempts, err),
		}
	}
	return symbols, nil
}

// analyzeAll fans the symbol list out over a bounded worker pool. Every
// symbol gets exactly one result slot; a symbol's failure never disturbs
// its neighbors.
func (o *Orchestrator) analyzeAll(ctx context.Context, symbols []types.Symbol) []types.AnalysisResult {
	results := make([]types.AnalysisResult, len(symbols))

	workers := o.cfg.Cycle.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(symbols) {
		workers = len(symbols)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = o.analyzeSymbol(ctx, symbols[i])
			}
		}()
	}

	for i := range symbols {
		select {
		case jobs <- i:
		case <-ctx.Done():
			// unqueued symbols become canceled results; queued work drains
			results[i] = types.AnalysisResult{
				Symbol: symbols[i],
				Err:    "cycle canceled before analysis",
				Stage:  "queued",
				At:     o.now(),
			}
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

// analyzeSymbol runs one symbol's full pipeline: history, indicators,
// optional sentiment, model synthesis.
func (o *Orchestrator) analyzeSymbol(ctx context.Context, symbol types.Symbol) types.AnalysisResult {
	result := types.AnalysisResult{Symbol: symbol, At: o.now()}

	var series types.PriceSeries
	attempts, err := o.limits.Execute(ctx, store.ServiceFeed, func(ctx context.Context) error {
		out, ferr := o.feed.PriceHistory(ctx, symbol, o.cfg.Screening.LookbackDays)
		if ferr != nil {
			return ferr
		}
		series = out
		return nil
	})
	result.Attempts = attempts
	if err != nil {
		result.Err = err.Error()
		result.Stage = "price_history"
		return result
	}

	set, err := indicator.Compute(series)
	if err != nil {
		result.Err = err.Error()
		result.Stage = "indicators"
		return result
	}
	result.Indicators = &set

	var sentiment *types.NewsSentiment
	if o.sentiment != nil {
		if s, serr := o.sentiment.GetSentiment(ctx, symbol); serr == nil && s.ArticleCount > 0 {
			sentiment = &s
		}
	}

	rec, attempts, err := o.analyst.Analyze(ctx, symbol, set, sentiment)
	result.Attempts = attempts
	if err != nil {
		result.Err = err.Error()
		result.Stage = "completion"
		return result
	}
	result.Rec = &rec

	return result
}

// seal freezes a cycle's results into the report, keeping screening order.
func seal(condition string, start, end time.Time, results []types.AnalysisResult) *types.CycleReport {
	report := &types.CycleReport{
		Condition: condition,
		StartedAt: start,
		Duration:  end.Sub(start),
		Results:   results,
	}
	for _, r := range results {
		if r.Failed() {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}
	return report
}

func sleepUntil(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
