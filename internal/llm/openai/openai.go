package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"stock-analysis-bot/internal/interfaces"
	"stock-analysis-bot/internal/store"
	"stock-analysis-bot/internal/trace"
	"stock-analysis-bot/internal/types"
)

// Completer calls the OpenAI chat completions API with JSON-object output
// forced on, so the analyst always receives a parseable body.
type Completer struct {
	cfg      *store.Config
	endpoint string
	httpc    *http.Client
}

var _ interfaces.Completer = (*Completer)(nil)

func New(cfg *store.Config) *Completer {
	endpoint := "https://api.openai.com/v1/chat/completions"
	if ep := os.Getenv("OPENAI_API_ENDPOINT"); ep != "" {
		endpoint = ep
	}
	return &Completer{
		cfg:      cfg,
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Completer) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return "", types.NewServiceError(types.KindPermanent, "completion", errors.New("OPENAI_API_KEY missing"))
	}

	body := map[string]any{
		"model": c.cfg.LLM.Model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": prompt},
		},
		"temperature":     c.cfg.LLM.Temperature,
		"max_tokens":      c.cfg.LLM.MaxTokens,
		"response_format": map[string]string{"type": "json_object"},
	}
	bb, _ := json.Marshal(body)

	req, _ := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(bb))
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", types.NewServiceError(types.KindTransient, "completion", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", types.NewServiceError(types.KindFromStatus(resp.StatusCode), "completion",
			fmt.Errorf("openai http %d", resp.StatusCode))
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", types.NewServiceError(types.KindPermanent, "completion", fmt.Errorf("decode response: %w", err))
	}
	if len(r.Choices) == 0 {
		return "", types.Malformedf("openai returned no choices")
	}
	return strings.TrimSpace(r.Choices[0].Message.Content), nil
}
