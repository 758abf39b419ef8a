package notify

import (
	"strings"
	"testing"
	"time"

	"stock-analysis-bot/internal/types"
)

func sampleReport() *types.CycleReport {
	ind := func(rsi float64) *types.IndicatorSet {
		return &types.IndicatorSet{
			RSI:       rsi,
			SMA:       map[int]float64{5: 100, 20: 99, 60: 95},
			MACD:      types.MACDSet{Cross: "HOLD"},
			BB:        types.BollingerSet{Position: types.BandMiddle},
			LastClose: 71500,
		}
	}
	return &types.CycleReport{
		Condition: "10stars",
		StartedAt: time.Date(2026, 6, 10, 10, 0, 0, 0, time.UTC),
		Duration:  42 * time.Second,
		Succeeded: 2,
		Failed:    1,
		Results: []types.AnalysisResult{
			{
				Symbol:     types.Symbol{Code: "005930", Name: "Samsung Electronics"},
				Indicators: ind(55),
				Rec:        &types.Recommendation{Action: "HOLD", Confidence: 0.4, Risk: types.RiskLow},
			},
			{
				Symbol:   types.Symbol{Code: "000660", Name: "SK Hynix"},
				Err:      "TRANSIENT: feed: http 503",
				Stage:    "price_history",
				Attempts: 3,
			},
			{
				Symbol:     types.Symbol{Code: "035420", Name: "NAVER"},
				Indicators: ind(30),
				Rec: &types.Recommendation{
					Action: "BUY", Confidence: 0.9, Risk: types.RiskMedium,
					TargetPrice: 250000, Rationale: "oversold bounce setup",
				},
			},
		},
	}
}

func TestFormatReportRanksByConfidence(t *testing.T) {
	blocks := FormatReport(sampleReport())

	if len(blocks) < 5 {
		t.Fatalf("expected at least 5 blocks, got %d", len(blocks))
	}
	if blocks[0].Type != "header" {
		t.Errorf("first block type = %q, want header", blocks[0].Type)
	}

	var flat strings.Builder
	for _, b := range blocks {
		if b.Text != nil {
			flat.WriteString(b.Text.Text)
			flat.WriteString("\n")
		}
	}
	text := flat.String()

	// NAVER (0.9) must be ranked above Samsung (0.4)
	naver := strings.Index(text, "NAVER")
	samsung := strings.Index(text, "Samsung Electronics")
	if naver < 0 || samsung < 0 {
		t.Fatal("expected both symbols in output")
	}
	if naver > samsung {
		t.Error("expected NAVER ranked before Samsung Electronics")
	}

	if !strings.Contains(text, "Failed symbols") {
		t.Error("expected a failed-symbols section")
	}
	if !strings.Contains(text, "000660") {
		t.Error("expected the failed symbol code in output")
	}
	if !strings.Contains(text, "2 analyzed, 1 failed") {
		t.Error("expected the summary counts in output")
	}
}

func TestFormatReportEveryResultPresent(t *testing.T) {
	report := sampleReport()
	blocks := FormatReport(report)

	var flat strings.Builder
	for _, b := range blocks {
		if b.Text != nil {
			flat.WriteString(b.Text.Text)
		}
	}
	for _, r := range report.Results {
		if !strings.Contains(flat.String(), r.Symbol.Code) {
			t.Errorf("symbol %s missing from formatted report", r.Symbol.Code)
		}
	}
}

func TestFormatFailure(t *testing.T) {
	blocks := FormatFailure("screening condition not found")

	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Type != "header" {
		t.Errorf("first block type = %q, want header", blocks[0].Type)
	}
	if !strings.Contains(blocks[1].Text.Text, "screening condition not found") {
		t.Error("expected the reason in the body")
	}
}

func TestFormatPrice(t *testing.T) {
	cases := map[float64]string{
		500:     "₩500",
		71500:   "₩71,500",
		250000:  "₩250,000",
		1234567: "₩1,234,567",
	}
	for in, want := range cases {
		if got := formatPrice(in); got != want {
			t.Errorf("formatPrice(%v) = %q, want %q", in, got, want)
		}
	}
}
