package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stock-analysis-bot/internal/interfaces"
	"stock-analysis-bot/internal/limiter"
	"stock-analysis-bot/internal/logger"
	"stock-analysis-bot/internal/store"
	"stock-analysis-bot/internal/trace"
	"stock-analysis-bot/internal/types"
)

const defaultSystem = "You are a disciplined Korean equities analyst. " +
	"You receive one stock's technical indicators as JSON and respond ONLY with compact JSON matching the schema. " +
	"Never add prose outside the JSON object."

const schema = `{"action":"BUY|SELL|HOLD","confidence":0.0,"target_price":0.0,"stop_loss":0.0,"risk_level":"LOW|MEDIUM|HIGH","rationale":"one or two sentences"}`

// Analyst turns one symbol's indicator set into a trading recommendation by
// prompting the configured model and strictly validating its reply.
type Analyst struct {
	completer interfaces.Completer
	limits    *limiter.Registry
	system    string
}

func New(cfg *store.Config, completer interfaces.Completer, limits *limiter.Registry) *Analyst {
	system := cfg.LLM.System
	if system == "" {
		system = defaultSystem
	}
	return &Analyst{completer: completer, limits: limits, system: system}
}

// Analyze prompts the model for symbol and returns the validated
// recommendation plus the number of completion attempts made.
func (a *Analyst) Analyze(ctx context.Context, symbol types.Symbol, set types.IndicatorSet, sentiment *types.NewsSentiment) (types.Recommendation, int, error) {
	ctx, span := trace.StartSpan(ctx, "analyst-analyze")
	defer span.End()

	prompt := a.buildPrompt(symbol, set, sentiment)

	var raw string
	attempts, err := a.limits.Execute(ctx, store.ServiceCompletion, func(ctx context.Context) error {
		out, cerr := a.completer.Complete(ctx, a.system, prompt)
		if cerr != nil {
			return cerr
		}
		raw = out
		return nil
	})
	if err != nil {
		return types.Recommendation{}, attempts, err
	}

	rec, err := parseRecommendation(raw)
	if err != nil {
		// a schema failure is a logic problem, not transport; re-asking
		// the same model the same question is not worth an attempt
		return types.Recommendation{}, attempts, err
	}

	logger.Recommendation(ctx, symbol.Code, rec.Action, rec.Confidence, rec.Rationale,
		"risk", string(rec.Risk), "target_price", rec.TargetPrice)
	return rec, attempts, nil
}

func (a *Analyst) buildPrompt(symbol types.Symbol, set types.IndicatorSet, sentiment *types.NewsSentiment) string {
	state := map[string]any{
		"symbol":     symbol,
		"indicators": set,
	}
	if sentiment != nil {
		state["news_sentiment"] = sentiment
	}
	sb, _ := json.Marshal(state)
	return fmt.Sprintf("Schema:%s\nState:%s\n\nRespond ONLY with compact JSON matching the schema.", schema, sb)
}

// parseRecommendation validates the model output against the schema. Every
// field is required; out-of-bounds values are rejected rather than clamped
// so bad model behavior is visible in the report.
func parseRecommendation(raw string) (types.Recommendation, error) {
	t := strings.TrimSpace(raw)
	// tolerate a fenced code block around the object
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	t = strings.TrimSpace(t)

	var doc struct {
		Action      *string  `json:"action"`
		Confidence  *float64 `json:"confidence"`
		TargetPrice *float64 `json:"target_price"`
		StopLoss    *float64 `json:"stop_loss"`
		Risk        *string  `json:"risk_level"`
		Rationale   *string  `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(t), &doc); err != nil {
		return types.Recommendation{}, types.Malformedf("model output is not valid JSON: %v", err)
	}

	if doc.Action == nil || doc.Confidence == nil || doc.Risk == nil {
		return types.Recommendation{}, types.Malformedf("model output missing required fields")
	}

	action := strings.ToUpper(strings.TrimSpace(*doc.Action))
	switch action {
	case "BUY", "SELL", "HOLD":
	default:
		return types.Recommendation{}, types.Malformedf("invalid action %q", *doc.Action)
	}

	if *doc.Confidence < 0 || *doc.Confidence > 1 {
		return types.Recommendation{}, types.Malformedf("confidence %v out of [0,1]", *doc.Confidence)
	}

	risk := types.RiskLevel(strings.ToUpper(strings.TrimSpace(*doc.Risk)))
	switch risk {
	case types.RiskLow, types.RiskMedium, types.RiskHigh:
	default:
		return types.Recommendation{}, types.Malformedf("invalid risk_level %q", *doc.Risk)
	}

	rec := types.Recommendation{
		Action:     action,
		Confidence: *doc.Confidence,
		Risk:       risk,
	}
	if doc.TargetPrice != nil {
		if *doc.TargetPrice < 0 {
			return types.Recommendation{}, types.Malformedf("negative target_price %v", *doc.TargetPrice)
		}
		rec.TargetPrice = *doc.TargetPrice
	}
	if doc.StopLoss != nil {
		if *doc.StopLoss < 0 {
			return types.Recommendation{}, types.Malformedf("negative stop_loss %v", *doc.StopLoss)
		}
		rec.StopLoss = *doc.StopLoss
	}
	if doc.Rationale != nil {
		rec.Rationale = strings.TrimSpace(*doc.Rationale)
	}
	return rec, nil
}
