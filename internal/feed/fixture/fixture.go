package fixture

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"stock-analysis-bot/internal/interfaces"
	"stock-analysis-bot/internal/types"
)

// Feed is the TEST-mode data feed. It serves a fixed screened list and
// synthesizes price history from a per-symbol seeded walk, so every run
// over the same symbols produces identical candles.
type Feed struct {
	symbols []types.Symbol
}

var _ interfaces.DataFeed = (*Feed)(nil)

var defaultSymbols = []types.Symbol{
	{Code: "005930", Name: "Samsung Electronics"},
	{Code: "000660", Name: "SK Hynix"},
	{Code: "373220", Name: "LG Energy Solution"},
	{Code: "207940", Name: "Samsung Biologics"},
	{Code: "005380", Name: "Hyundai Motor"},
	{Code: "051910", Name: "LG Chem"},
	{Code: "035420", Name: "NAVER"},
	{Code: "006400", Name: "Samsung SDI"},
	{Code: "035720", Name: "Kakao"},
	{Code: "068270", Name: "Celltrion"},
}

// New returns a fixture feed over the default KOSPI large caps.
func New() *Feed { return &Feed{symbols: defaultSymbols} }

// NewWith returns a fixture feed over a caller-chosen list.
func NewWith(symbols []types.Symbol) *Feed { return &Feed{symbols: symbols} }

func (f *Feed) ScreenSymbols(ctx context.Context, condition string) ([]types.Symbol, error) {
	if condition == "" {
		return nil, types.Validationf("empty screening condition")
	}
	out := make([]types.Symbol, len(f.symbols))
	copy(out, f.symbols)
	return out, nil
}

func (f *Feed) PriceHistory(ctx context.Context, symbol types.Symbol, lookback int) (types.PriceSeries, error) {
	if lookback <= 0 {
		return nil, types.Validationf("lookback must be positive, got %d", lookback)
	}
	if symbol.Code == "" {
		return nil, types.Validationf("empty symbol code")
	}

	rng := rand.New(rand.NewSource(seedFor(symbol.Code)))
	price := 10000 + rng.Float64()*90000

	// anchor candles to fixed midnights ending yesterday so timestamps are
	// strictly ascending and stable within a day
	end := time.Now().Truncate(24 * time.Hour)
	series := make(types.PriceSeries, 0, lookback)
	for i := lookback; i >= 1; i-- {
		day := end.AddDate(0, 0, -i)
		drift := (rng.Float64() - 0.48) * 0.03
		open := price
		price = price * (1 + drift)
		high := maxf(open, price) * (1 + rng.Float64()*0.01)
		low := minf(open, price) * (1 - rng.Float64()*0.01)
		series = append(series, types.Candle{
			Ts:    day.Unix(),
			Open:  round2(open),
			High:  round2(high),
			Low:   round2(low),
			Close: round2(price),
			Vol:   float64(100000 + rng.Intn(900000)),
		})
	}
	return series, nil
}

func seedFor(code string) int64 {
	h := fnv.New64a()
	fmt.Fprint(h, code)
	return int64(h.Sum64())
}

func round2(v float64) float64 { return float64(int64(v*100)) / 100 }

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
