package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"stock-analysis-bot/internal/interfaces"
	"stock-analysis-bot/internal/store"
	"stock-analysis-bot/internal/trace"
	"stock-analysis-bot/internal/types"
)

// Completer calls the Anthropic messages API.
type Completer struct {
	cfg      *store.Config
	endpoint string
	httpc    *http.Client
}

var _ interfaces.Completer = (*Completer)(nil)

func New(cfg *store.Config) *Completer {
	// default messages endpoint (public Anthropic)
	endpoint := "https://api.anthropic.com/v1/messages"
	// If you use a proxy/bedrock/vertex, set endpoint via CLAUDE_API_ENDPOINT env var
	if ep := os.Getenv("CLAUDE_API_ENDPOINT"); ep != "" {
		endpoint = ep
	}
	return &Completer{
		cfg:      cfg,
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Completer) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	apiKey := os.Getenv("CLAUDE_API_KEY")
	if apiKey == "" {
		return "", types.NewServiceError(types.KindPermanent, "completion", errors.New("CLAUDE_API_KEY missing"))
	}

	reqBody := map[string]any{
		"model":  c.cfg.LLM.Model,
		"system": system,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  c.cfg.LLM.MaxTokens,
		"temperature": c.cfg.LLM.Temperature,
	}
	bb, _ := json.Marshal(reqBody)

	req, _ := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(bb))
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", types.NewServiceError(types.KindTransient, "completion", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", types.NewServiceError(types.KindFromStatus(resp.StatusCode), "completion",
			fmt.Errorf("claude http %d: %s", resp.StatusCode, body))
	}

	var r struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", types.NewServiceError(types.KindPermanent, "completion", fmt.Errorf("decode response: %w", err))
	}

	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", types.Malformedf("claude returned no text content")
	}
	return out, nil
}
