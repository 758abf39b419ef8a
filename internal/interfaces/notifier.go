package interfaces

import (
	"context"

	"stock-analysis-bot/internal/types"
)

// Notifier is the chat notification sink.
type Notifier interface {
	// Deliver sends the sealed report for a completed cycle.
	Deliver(ctx context.Context, report *types.CycleReport) error
	// DeliverFailure sends a dedicated alert for an aborted cycle.
	DeliverFailure(ctx context.Context, reason string) error
}
