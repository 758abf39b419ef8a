package indicator

import (
	"fmt"
	"math"

	"stock-analysis-bot/internal/ta"
	"stock-analysis-bot/internal/types"
)

// Indicator periods. MACD's slow EMA is the longest lookback and therefore
// sets the minimum usable series length.
const (
	RSIPeriod   = 14
	MACDFast    = 12
	MACDSlow    = 26
	MACDSignal  = 9
	BBWindow    = 20
	BBStdDev    = 2.0
	MinHistory  = MACDSlow
	bandEpsilon = 1e-6
)

var smaWindows = []int{5, 20, 60}

// Compute derives the full indicator set from a validated price series. It
// is a pure function: same series in, bit-identical set out.
func Compute(series types.PriceSeries) (types.IndicatorSet, error) {
	if err := validate(series); err != nil {
		return types.IndicatorSet{}, err
	}

	closes := series.Closes()
	set := types.IndicatorSet{SMA: map[int]float64{}, LastClose: closes[len(closes)-1]}

	for _, w := range smaWindows {
		if v := ta.SMA(closes, w); !math.IsNaN(v) {
			set.SMA[w] = v
		}
	}

	set.RSI = ta.RSI(closes, RSIPeriod)

	line, sig, hist := ta.MACDSeries(closes, MACDFast, MACDSlow, MACDSignal)
	last := len(closes) - 1
	set.MACD.Line = line[last]
	set.MACD.Signal = sig[last]
	set.MACD.Histogram = hist[last]
	set.MACD.Cross = classifyCross(hist[last-1], hist[last])

	mid, up, low := ta.Bollinger(closes, BBWindow, BBStdDev)
	// a zero-variance window collapses the bands; keep a minimal non-zero
	// width so position math never divides by zero
	if up-low < bandEpsilon {
		up = mid + bandEpsilon/2
		low = mid - bandEpsilon/2
	}
	set.BB.Upper, set.BB.Middle, set.BB.Lower = up, mid, low
	set.BB.Position = classifyPosition(set.LastClose, up, low)

	return set, nil
}

func validate(series types.PriceSeries) error {
	if len(series) < MinHistory {
		return &types.ServiceError{
			Kind:    types.KindValidation,
			Service: "local",
			Stage:   "indicators",
			Err:     fmt.Errorf("%w: got %d candles, need %d", types.ErrInsufficientHistory, len(series), MinHistory),
		}
	}
	for i, c := range series {
		if c.Close <= 0 {
			return types.Validationf("candle %d has non-positive close %f", i, c.Close)
		}
		if i > 0 && series[i].Ts <= series[i-1].Ts {
			return types.Validationf("candles out of order at index %d (ts %d after %d)", i, series[i].Ts, series[i-1].Ts)
		}
	}
	return nil
}

// classifyCross turns the two most recent histogram points into a signal:
// negative→positive is BUY, positive→negative is SELL.
func classifyCross(prev, cur float64) string {
	switch {
	case prev < 0 && cur > 0:
		return "BUY"
	case prev > 0 && cur < 0:
		return "SELL"
	default:
		return "HOLD"
	}
}

func classifyPosition(close, upper, lower float64) types.BandPosition {
	switch {
	case close >= upper:
		return types.BandUpper
	case close <= lower:
		return types.BandLower
	default:
		return types.BandMiddle
	}
}

// Score folds the indicator set into a 0–100 technical score used for
// ranking in the notification. Heuristic weights, not a trading signal.
func Score(set types.IndicatorSet) float64 {
	score := 50.0

	switch {
	case set.RSI < 30:
		score += 15 // oversold
	case set.RSI > 70:
		score -= 15 // overbought
	}

	switch set.MACD.Cross {
	case "BUY":
		score += 20
	case "SELL":
		score -= 20
	}

	switch set.BB.Position {
	case types.BandLower:
		score += 10
	case types.BandUpper:
		score -= 10
	}

	if sma20, ok := set.SMA[20]; ok && set.LastClose > sma20 {
		score += 5
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
