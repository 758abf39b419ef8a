package llmobs

import (
	"context"

	"stock-analysis-bot/internal/interfaces"
	"stock-analysis-bot/internal/logger"
	"stock-analysis-bot/internal/trace"
)

// observableCompleter wraps a Completer with observability (logging & tracing)
type observableCompleter struct {
	completer interfaces.Completer
}

// Compile-time interface check
var _ interfaces.Completer = (*observableCompleter)(nil)

// Wrap wraps a completer with observability middleware
func Wrap(completer interfaces.Completer) interfaces.Completer {
	return &observableCompleter{
		completer: completer,
	}
}

// Complete invokes the model with observability
func (oc *observableCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Complete")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Requesting completion", "prompt_chars", len(prompt))

	out, err := oc.completer.Complete(ctx, system, prompt)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Completion failed", err)
		return "", err
	}

	logger.DebugSkip(ctx, 1, "Completion received", "response_chars", len(out))
	return out, nil
}
