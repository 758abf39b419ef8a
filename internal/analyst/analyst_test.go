package analyst

import (
	"context"
	"errors"
	"testing"
	"time"

	"stock-analysis-bot/internal/limiter"
	"stock-analysis-bot/internal/llm/noop"
	"stock-analysis-bot/internal/store"
	"stock-analysis-bot/internal/types"
)

type scriptedCompleter struct {
	replies []string
	errs    []error
	calls   int
}

func (s *scriptedCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return s.replies[len(s.replies)-1], nil
}

func fastRegistry() *limiter.Registry {
	return limiter.New(limiter.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
}

func testSet() types.IndicatorSet {
	return types.IndicatorSet{
		RSI:       55.2,
		SMA:       map[int]float64{5: 101, 20: 100, 60: 98},
		MACD:      types.MACDSet{Line: 0.4, Signal: 0.2, Histogram: 0.2, Cross: "HOLD"},
		BB:        types.BollingerSet{Upper: 110, Middle: 100, Lower: 90, Position: types.BandMiddle},
		LastClose: 102,
	}
}

func TestAnalyzeValidReply(t *testing.T) {
	c := &scriptedCompleter{replies: []string{
		`{"action":"BUY","confidence":0.82,"target_price":115000,"stop_loss":98000,"risk_level":"MEDIUM","rationale":"momentum building"}`,
	}}
	a := New(&store.Config{}, c, fastRegistry())

	rec, attempts, err := a.Analyze(context.Background(), types.Symbol{Code: "005930"}, testSet(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
	if rec.Action != "BUY" || rec.Confidence != 0.82 || rec.Risk != types.RiskMedium {
		t.Fatalf("unexpected recommendation: %+v", rec)
	}
}

func TestAnalyzeMalformedReplies(t *testing.T) {
	cases := map[string]string{
		"not json":        `buy it now`,
		"bad action":      `{"action":"YOLO","confidence":0.5,"risk_level":"LOW"}`,
		"confidence high": `{"action":"BUY","confidence":1.5,"risk_level":"LOW"}`,
		"confidence low":  `{"action":"BUY","confidence":-0.1,"risk_level":"LOW"}`,
		"bad risk":        `{"action":"BUY","confidence":0.5,"risk_level":"EXTREME"}`,
		"missing action":  `{"confidence":0.5,"risk_level":"LOW"}`,
		"negative target": `{"action":"BUY","confidence":0.5,"target_price":-5,"risk_level":"LOW"}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			c := &scriptedCompleter{replies: []string{reply}}
			a := New(&store.Config{}, c, fastRegistry())

			_, attempts, err := a.Analyze(context.Background(), types.Symbol{Code: "005930"}, testSet(), nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if types.KindOf(err) != types.KindMalformed {
				t.Fatalf("kind = %s, want %s", types.KindOf(err), types.KindMalformed)
			}
			// schema failures must not burn extra model calls
			if attempts != 1 || c.calls != 1 {
				t.Fatalf("attempts=%d calls=%d, want 1/1", attempts, c.calls)
			}
		})
	}
}

func TestAnalyzeRetriesTransient(t *testing.T) {
	transient := types.NewServiceError(types.KindTransient, "completion", errors.New("http 503"))
	c := &scriptedCompleter{
		errs: []error{transient, transient, nil},
		replies: []string{"", "",
			`{"action":"HOLD","confidence":0.3,"risk_level":"LOW","rationale":"quiet"}`,
		},
	}
	a := New(&store.Config{}, c, fastRegistry())

	rec, attempts, err := a.Analyze(context.Background(), types.Symbol{Code: "000660"}, testSet(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if rec.Action != "HOLD" {
		t.Fatalf("action = %q, want HOLD", rec.Action)
	}
}

func TestAnalyzePermanentNotRetried(t *testing.T) {
	perm := types.NewServiceError(types.KindPermanent, "completion", errors.New("http 401"))
	c := &scriptedCompleter{errs: []error{perm, perm, perm}, replies: []string{""}}
	a := New(&store.Config{}, c, fastRegistry())

	_, attempts, err := a.Analyze(context.Background(), types.Symbol{Code: "000660"}, testSet(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 || c.calls != 1 {
		t.Fatalf("attempts=%d calls=%d, want 1/1", attempts, c.calls)
	}
}

func TestAnalyzeFencedReply(t *testing.T) {
	c := &scriptedCompleter{replies: []string{
		"```json\n{\"action\":\"SELL\",\"confidence\":0.7,\"risk_level\":\"HIGH\",\"rationale\":\"overbought\"}\n```",
	}}
	a := New(&store.Config{}, c, fastRegistry())

	rec, _, err := a.Analyze(context.Background(), types.Symbol{Code: "035420"}, testSet(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Action != "SELL" || rec.Risk != types.RiskHigh {
		t.Fatalf("unexpected recommendation: %+v", rec)
	}
}

func TestAnalyzeNoopCompleterAlwaysParses(t *testing.T) {
	a := New(&store.Config{}, noop.New(), fastRegistry())

	for _, code := range []string{"005930", "000660", "035720"} {
		rec, _, err := a.Analyze(context.Background(), types.Symbol{Code: code}, testSet(), nil)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", code, err)
		}
		if rec.Confidence < 0 || rec.Confidence > 1 {
			t.Fatalf("%s: confidence %v out of bounds", code, rec.Confidence)
		}
	}
}
