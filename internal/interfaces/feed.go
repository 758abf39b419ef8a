package interfaces

import (
	"context"

	"stock-analysis-bot/internal/types"
)

// DataFeed is the brokerage screening and price-history collaborator.
type DataFeed interface {
	// ScreenSymbols resolves a named screening condition to its ranked
	// symbol list.
	ScreenSymbols(ctx context.Context, condition string) ([]types.Symbol, error)
	// PriceHistory returns up to lookback daily candles for the symbol,
	// ascending by timestamp.
	PriceHistory(ctx context.Context, symbol types.Symbol, lookback int) (types.PriceSeries, error)
}
