package ta

import (
	"math"
	"testing"
)

func TestSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	if got := SMA(closes, 5); got != 3 {
		t.Errorf("SMA(5) = %f, want 3", got)
	}
	if got := SMA(closes, 2); got != 4.5 {
		t.Errorf("SMA(2) = %f, want 4.5", got)
	}
	if got := SMA(closes, 6); !math.IsNaN(got) {
		t.Errorf("SMA over short series = %f, want NaN", got)
	}
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	if got := RSI(closes, 14); got != 100 {
		t.Errorf("RSI on monotone gains = %f, want 100", got)
	}
}

func TestRSIFlat(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	// no losses at all, so RSI reports 100 rather than NaN
	if got := RSI(closes, 14); got != 100 {
		t.Errorf("RSI on flat series = %f, want 100", got)
	}
}

func TestRSIBounds(t *testing.T) {
	closes := []float64{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.8, 46.1, 45.9, 46.2, 45.6, 46.3, 46.2, 46.0}
	got := RSI(closes, 14)
	if got < 0 || got > 100 {
		t.Errorf("RSI = %f, want within [0,100]", got)
	}
}

func TestBollingerOrdering(t *testing.T) {
	closes := []float64{10, 11, 9, 12, 8, 13, 10, 11, 9, 12, 10, 11, 9, 12, 10, 11, 9, 12, 10, 11}
	mid, up, low := Bollinger(closes, 20, 2.0)
	if !(up >= mid && mid >= low) {
		t.Errorf("band ordering violated: up=%f mid=%f low=%f", up, mid, low)
	}
}

func TestBollingerFlat(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}
	mid, up, low := Bollinger(closes, 20, 2.0)
	if mid != 100 || up != 100 || low != 100 {
		t.Errorf("flat series bands = %f/%f/%f, want all 100", up, mid, low)
	}
}

func TestEMASeriesConverges(t *testing.T) {
	vals := make([]float64, 100)
	for i := range vals {
		vals[i] = 50
	}
	out := EMASeries(vals, 12)
	if len(out) != len(vals) {
		t.Fatalf("len = %d, want %d", len(out), len(vals))
	}
	if math.Abs(out[len(out)-1]-50) > 1e-9 {
		t.Errorf("EMA of constant series = %f, want 50", out[len(out)-1])
	}
}

func TestMACDSeriesFlat(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	line, sig, hist := MACDSeries(closes, 12, 26, 9)
	last := len(closes) - 1
	if math.Abs(line[last]) > 1e-9 || math.Abs(sig[last]) > 1e-9 || math.Abs(hist[last]) > 1e-9 {
		t.Errorf("flat MACD = %f/%f/%f, want ~0", line[last], sig[last], hist[last])
	}
}

func TestMACDSeriesLengths(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	line, sig, hist := MACDSeries(closes, 3, 6, 2)
	if len(line) != 10 || len(sig) != 10 || len(hist) != 10 {
		t.Errorf("series lengths = %d/%d/%d, want 10", len(line), len(sig), len(hist))
	}
}

func TestMACDDeterministic(t *testing.T) {
	closes := []float64{10, 10.5, 11, 10.8, 11.2, 11.5, 11.1, 11.8, 12.0, 11.6, 12.2, 12.5}
	a1, s1, h1 := MACDSeries(closes, 3, 6, 2)
	a2, s2, h2 := MACDSeries(closes, 3, 6, 2)
	for i := range closes {
		if a1[i] != a2[i] || s1[i] != s2[i] || h1[i] != h2[i] {
			t.Fatalf("MACD not deterministic at index %d", i)
		}
	}
}
