package noop

import (
	"context"
	"fmt"
	"hash/fnv"

	"stock-analysis-bot/internal/interfaces"
	"stock-analysis-bot/internal/logger"
)

// Completer is the TEST-mode stand-in for a real model. It emits a valid
// recommendation document derived from a hash of the prompt, so the same
// prompt always yields the same answer and no credentials are needed.
type Completer struct{}

var _ interfaces.Completer = (*Completer)(nil)

func New() *Completer { return &Completer{} }

var actions = []string{"HOLD", "BUY", "SELL"}
var risks = []string{"LOW", "MEDIUM", "HIGH"}

func (c *Completer) Complete(ctx context.Context, system, prompt string) (string, error) {
	h := fnv.New64a()
	h.Write([]byte(prompt))
	sum := h.Sum64()

	action := actions[sum%3]
	risk := risks[(sum/3)%3]
	confidence := float64(sum%61) / 100.0 // 0.00 .. 0.60

	logger.Debug(ctx, "Noop completer called", "action", action, "confidence", confidence)

	return fmt.Sprintf(
		`{"action":%q,"confidence":%.2f,"target_price":0,"stop_loss":0,"risk_level":%q,"rationale":"deterministic noop completion"}`,
		action, confidence, risk), nil
}
