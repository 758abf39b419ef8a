package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"stock-analysis-bot/internal/analyst"
	"stock-analysis-bot/internal/limiter"
	"stock-analysis-bot/internal/llm/noop"
	"stock-analysis-bot/internal/notify"
	"stock-analysis-bot/internal/store"
	"stock-analysis-bot/internal/types"
)

type stubFeed struct {
	screenCalls  atomic.Int64
	historyCalls atomic.Int64

	screenErr  error
	symbols    []types.Symbol
	failCodes  map[string]error
	blockUntil <-chan struct{} // when set, PriceHistory waits for ctx or this
}

func (f *stubFeed) ScreenSymbols(ctx context.Context, condition string) ([]types.Symbol, error) {
	f.screenCalls.Add(1)
	if f.screenErr != nil {
		return nil, f.screenErr
	}
	return f.symbols, nil
}

func (f *stubFeed) PriceHistory(ctx context.Context, symbol types.Symbol, lookback int) (types.PriceSeries, error) {
	f.historyCalls.Add(1)
	if f.blockUntil != nil {
		select {
		case <-ctx.Done():
			return nil, types.NewServiceError(types.KindTransient, "feed", ctx.Err())
		case <-f.blockUntil:
		}
	}
	if err, ok := f.failCodes[symbol.Code]; ok {
		return nil, err
	}
	return makeSeries(lookback), nil
}

func makeSeries(n int) types.PriceSeries {
	if n < 30 {
		n = 30
	}
	series := make(types.PriceSeries, n)
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	price := 50000.0
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			price += 150
		} else {
			price -= 100
		}
		series[i] = types.Candle{
			Ts:    base.AddDate(0, 0, i).Unix(),
			Open:  price - 50,
			High:  price + 100,
			Low:   price - 100,
			Close: price,
			Vol:   100000,
		}
	}
	return series
}

func makeSymbols(n int) []types.Symbol {
	out := make([]types.Symbol, n)
	for i := range out {
		out[i] = types.Symbol{Code: fmt.Sprintf("%06d", i+1), Name: fmt.Sprintf("Stock %d", i+1)}
	}
	return out
}

func testConfig() *store.Config {
	cfg := &store.Config{}
	cfg.Mode = "TEST"
	cfg.Screening.Condition = "10stars"
	cfg.Screening.MaxSymbols = 0
	cfg.Screening.LookbackDays = 100
	cfg.Cycle.IntervalSeconds = 1
	cfg.Cycle.Workers = 4
	cfg.Export.Dir = "" // set per test
	return cfg
}

func newTestOrchestrator(t *testing.T, cfg *store.Config, feed *stubFeed) (*Orchestrator, *notify.Fixture) {
	t.Helper()
	cfg.Export.Dir = t.TempDir()

	limits := limiter.New(limiter.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
	an := analyst.New(cfg, noop.New(), limits)
	sink := notify.NewFixture()

	o := New(cfg, feed, an, sink, nil, limits)
	o.now = func() time.Time { return time.Date(2026, 6, 10, 10, 0, 0, 0, time.UTC) }
	o.isOpen = func(time.Time) bool { return true }
	return o, sink
}

func TestCycleIsolatesSymbolFailure(t *testing.T) {
	symbols := makeSymbols(20)
	feed := &stubFeed{
		symbols: symbols,
		failCodes: map[string]error{
			symbols[6].Code: types.NewServiceError(types.KindPermanent, "feed", errors.New("http 400")),
		},
	}
	o, sink := newTestOrchestrator(t, testConfig(), feed)

	report, err := o.runOnce(context.Background())
	if err != nil {
		t.Fatalf("runOnce: %v", err)
	}

	if len(report.Results) != 20 {
		t.Fatalf("results = %d, want 20", len(report.Results))
	}
	if report.Succeeded != 19 || report.Failed != 1 {
		t.Fatalf("succeeded/failed = %d/%d, want 19/1", report.Succeeded, report.Failed)
	}

	// results keep the screening order, one slot per symbol
	for i, r := range report.Results {
		if r.Symbol.Code != symbols[i].Code {
			t.Fatalf("result %d is %s, want %s", i, r.Symbol.Code, symbols[i].Code)
		}
	}

	bad := report.Results[6]
	if !bad.Failed() || bad.Stage != "price_history" {
		t.Errorf("failed symbol result = %+v", bad)
	}
	for i, r := range report.Results {
		if i == 6 {
			continue
		}
		if r.Failed() {
			t.Errorf("symbol %s unexpectedly failed: %s", r.Symbol.Code, r.Err)
		}
		if r.Rec == nil || r.Indicators == nil {
			t.Errorf("symbol %s missing recommendation or indicators", r.Symbol.Code)
		}
	}

	if got := sink.Reports(); len(got) != 1 {
		t.Fatalf("deliveries = %d, want exactly 1", len(got))
	}
	if o.State() != StateCompleted {
		t.Errorf("state = %s, want %s", o.State(), StateCompleted)
	}
}

func TestClosedMarketMakesNoCalls(t *testing.T) {
	feed := &stubFeed{symbols: makeSymbols(3)}
	o, sink := newTestOrchestrator(t, testConfig(), feed)
	o.isOpen = func(time.Time) bool { return false }
	o.nextOpen = func(t time.Time) time.Time { return t.Add(time.Hour) }

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := o.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v", err)
	}

	if n := feed.screenCalls.Load(); n != 0 {
		t.Errorf("screen calls = %d, want 0 while closed", n)
	}
	if n := feed.historyCalls.Load(); n != 0 {
		t.Errorf("history calls = %d, want 0 while closed", n)
	}
	if len(sink.Reports()) != 0 || len(sink.Failures()) != 0 {
		t.Error("no notification may be sent while the market is closed")
	}
	if o.State() != StateAwaitingOpen {
		t.Errorf("state = %s, want %s", o.State(), StateAwaitingOpen)
	}
}

func TestScreeningFailureAbortsCycle(t *testing.T) {
	feed := &stubFeed{
		screenErr: types.NewServiceError(types.KindPermanent, "feed",
			fmt.Errorf("%w: %q", types.ErrConditionNotFound, "nostars")),
	}
	o, sink := newTestOrchestrator(t, testConfig(), feed)

	_, err := o.runOnce(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if types.KindOf(err) != types.KindCycleFault {
		t.Errorf("kind = %s, want %s", types.KindOf(err), types.KindCycleFault)
	}
	if o.State() != StateAborted {
		t.Errorf("state = %s, want %s", o.State(), StateAborted)
	}

	// the abort notice is the cycle's one notification
	if len(sink.Reports()) != 0 {
		t.Error("no report may be delivered for an aborted cycle")
	}
	if got := sink.Failures(); len(got) != 1 {
		t.Fatalf("failure notices = %d, want 1", len(got))
	}
	if n := feed.historyCalls.Load(); n != 0 {
		t.Errorf("history calls = %d, want 0 after screening failure", n)
	}
}

func TestShutdownMidCycleDeliversNothing(t *testing.T) {
	block := make(chan struct{})
	feed := &stubFeed{symbols: makeSymbols(8), blockUntil: block}
	o, sink := newTestOrchestrator(t, testConfig(), feed)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = o.runOnce(ctx)
	}()

	// let workers start, then pull the plug
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not exit promptly after cancellation")
	}

	if len(sink.Reports()) != 0 || len(sink.Failures()) != 0 {
		t.Error("nothing may be delivered when shut down mid-cycle")
	}
	if o.State() != StateAborted {
		t.Errorf("state = %s, want %s", o.State(), StateAborted)
	}
}

func TestNoOverlappingCycles(t *testing.T) {
	feed := &stubFeed{symbols: makeSymbols(5)}
	cfg := testConfig()
	o, _ := newTestOrchestrator(t, cfg, feed)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_ = o.Run(ctx)

	// RUNNING must always close out before the next RUNNING begins
	running := false
	for _, tr := range o.Transitions() {
		if tr.To == StateRunning {
			if running {
				t.Fatal("observed overlapping RUNNING transitions")
			}
			running = true
		}
		if tr.From == StateRunning {
			running = false
		}
	}
}

func TestMaxSymbolsTruncation(t *testing.T) {
	feed := &stubFeed{symbols: makeSymbols(25)}
	cfg := testConfig()
	cfg.Screening.MaxSymbols = 10
	o, _ := newTestOrchestrator(t, cfg, feed)

	report, err := o.runOnce(context.Background())
	if err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	if len(report.Results) != 10 {
		t.Fatalf("results = %d, want 10 after truncation", len(report.Results))
	}
	// truncation keeps the head of the ranked list
	if report.Results[0].Symbol.Code != "000001" || report.Results[9].Symbol.Code != "000010" {
		t.Errorf("unexpected truncated window: %s..%s",
			report.Results[0].Symbol.Code, report.Results[9].Symbol.Code)
	}
}

func TestEmptyScreeningStillDeliversReport(t *testing.T) {
	feed := &stubFeed{symbols: nil}
	o, sink := newTestOrchestrator(t, testConfig(), feed)

	report, err := o.runOnce(context.Background())
	if err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	if len(report.Results) != 0 || report.Succeeded != 0 || report.Failed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if got := sink.Reports(); len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	if o.State() != StateCompleted {
		t.Errorf("state = %s, want %s", o.State(), StateCompleted)
	}
}

func TestRunOnceRespectsMarketGate(t *testing.T) {
	feed := &stubFeed{symbols: makeSymbols(3)}
	o, _ := newTestOrchestrator(t, testConfig(), feed)
	o.isOpen = func(time.Time) bool { return false }

	_, err := o.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected error when market closed")
	}
	if types.KindOf(err) != types.KindValidation {
		t.Errorf("kind = %s, want %s", types.KindOf(err), types.KindValidation)
	}
	if n := feed.screenCalls.Load(); n != 0 {
		t.Errorf("screen calls = %d, want 0", n)
	}
}
