package feedobs

import (
	"context"

	"stock-analysis-bot/internal/interfaces"
	"stock-analysis-bot/internal/logger"
	"stock-analysis-bot/internal/trace"
	"stock-analysis-bot/internal/types"
)

// observableFeed wraps a DataFeed with observability (logging & tracing)
type observableFeed struct {
	feed interfaces.DataFeed
}

// Compile-time interface check
var _ interfaces.DataFeed = (*observableFeed)(nil)

// Wrap wraps a data feed with observability middleware
func Wrap(feed interfaces.DataFeed) interfaces.DataFeed {
	return &observableFeed{
		feed: feed,
	}
}

// ScreenSymbols runs the screening condition with observability
func (of *observableFeed) ScreenSymbols(ctx context.Context, condition string) ([]types.Symbol, error) {
	ctx, span := trace.StartSpan(ctx, "feed.ScreenSymbols")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Screening symbols", "condition", condition)

	symbols, err := of.feed.ScreenSymbols(ctx, condition)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to screen symbols", err, "condition", condition)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Symbols screened successfully", "condition", condition, "count", len(symbols))
	return symbols, nil
}

// PriceHistory fetches daily candles with observability
func (of *observableFeed) PriceHistory(ctx context.Context, symbol types.Symbol, lookback int) (types.PriceSeries, error) {
	ctx, span := trace.StartSpan(ctx, "feed.PriceHistory")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching price history", "symbol", symbol.Code, "lookback", lookback)

	series, err := of.feed.PriceHistory(ctx, symbol, lookback)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch price history", err, "symbol", symbol.Code)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Price history fetched successfully", "symbol", symbol.Code, "candles", len(series))
	return series, nil
}
