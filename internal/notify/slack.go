package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"stock-analysis-bot/internal/interfaces"
	"stock-analysis-bot/internal/limiter"
	"stock-analysis-bot/internal/logger"
	"stock-analysis-bot/internal/store"
	"stock-analysis-bot/internal/trace"
	"stock-analysis-bot/internal/types"
)

// Slack posts cycle reports to a channel via chat.postMessage.
type Slack struct {
	channel  string
	endpoint string
	limits   *limiter.Registry
	httpc    *http.Client
}

var _ interfaces.Notifier = (*Slack)(nil)

func NewSlack(cfg *store.Config, limits *limiter.Registry) *Slack {
	endpoint := "https://slack.com/api/chat.postMessage"
	if ep := os.Getenv("SLACK_API_ENDPOINT"); ep != "" {
		endpoint = ep
	}
	return &Slack{
		channel:  cfg.Slack.Channel,
		endpoint: endpoint,
		limits:   limits,
		httpc:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Deliver posts the sealed cycle report as one Block Kit message.
func (s *Slack) Deliver(ctx context.Context, report *types.CycleReport) error {
	ctx, span := trace.StartSpan(ctx, "slack-deliver-report")
	defer span.End()

	blocks := FormatReport(report)
	fallback := fmt.Sprintf("Analysis cycle %s: %d analyzed, %d failed",
		report.Condition, report.Succeeded, report.Failed)

	return s.post(ctx, blocks, fallback)
}

// DeliverFailure posts a short abort notice when a cycle produced no report.
func (s *Slack) DeliverFailure(ctx context.Context, reason string) error {
	ctx, span := trace.StartSpan(ctx, "slack-deliver-failure")
	defer span.End()

	blocks := FormatFailure(reason)
	return s.post(ctx, blocks, "Analysis cycle aborted: "+reason)
}

func (s *Slack) post(ctx context.Context, blocks []Block, fallback string) error {
	token := os.Getenv("SLACK_BOT_TOKEN")
	if token == "" {
		return types.NewServiceError(types.KindPermanent, "notify", errors.New("SLACK_BOT_TOKEN missing"))
	}

	payload := map[string]any{
		"channel": s.channel,
		"text":    fallback,
		"blocks":  blocks,
	}
	bb, _ := json.Marshal(payload)

	attempts, err := s.limits.Execute(ctx, store.ServiceNotify, func(ctx context.Context) error {
		req, rerr := http.NewRequestWithContext(ctx, "POST", s.endpoint, bytes.NewReader(bb))
		if rerr != nil {
			return types.NewServiceError(types.KindPermanent, "notify", rerr)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json; charset=utf-8")

		resp, derr := s.httpc.Do(req)
		if derr != nil {
			return types.NewServiceError(types.KindTransient, "notify", derr)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return types.NewServiceError(types.KindFromStatus(resp.StatusCode), "notify",
				fmt.Errorf("slack http %d", resp.StatusCode))
		}

		// Slack reports API errors inside a 200 body
		var r struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}
		if derr := json.NewDecoder(resp.Body).Decode(&r); derr != nil {
			return types.NewServiceError(types.KindPermanent, "notify", fmt.Errorf("decode response: %w", derr))
		}
		if !r.OK {
			kind := types.KindPermanent
			if r.Error == "ratelimited" {
				kind = types.KindTransient
			}
			return types.NewServiceError(kind, "notify", fmt.Errorf("slack api: %s", r.Error))
		}
		return nil
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Slack delivery failed", err, "attempts", attempts)
		return err
	}

	logger.Info(ctx, "Slack message delivered", "channel", s.channel, "attempts", attempts)
	return nil
}
