package interfaces

import "context"

// Completer is the language-model completion collaborator. Implementations
// return the raw assistant text; parsing and validation belong to the
// analyst.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}
