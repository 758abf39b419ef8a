package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"stock-analysis-bot/internal/indicator"
	"stock-analysis-bot/internal/types"
)

// Block is one Slack Block Kit element.
type Block struct {
	Type   string `json:"type"`
	Text   *Text  `json:"text,omitempty"`
	Fields []Text `json:"fields,omitempty"`
}

// Text is a Block Kit text object.
type Text struct {
	Type string `json:"type"` // plain_text or mrkdwn
	Text string `json:"text"`
}

func header(s string) Block {
	return Block{Type: "header", Text: &Text{Type: "plain_text", Text: s}}
}

func section(md string) Block {
	return Block{Type: "section", Text: &Text{Type: "mrkdwn", Text: md}}
}

func divider() Block { return Block{Type: "divider"} }

// FormatReport renders a sealed cycle report as Block Kit blocks. Successful
// symbols are ranked by model confidence, then by technical score; failures
// are listed at the bottom so the cycle outcome is never silently partial.
func FormatReport(report *types.CycleReport) []Block {
	blocks := []Block{
		header(fmt.Sprintf("📊 Analysis Cycle: %s", report.Condition)),
		section(fmt.Sprintf("*%s* KST  |  %d analyzed, %d failed  |  took %s",
			report.StartedAt.Format("2006-01-02 15:04"),
			report.Succeeded, report.Failed,
			report.Duration.Round(time.Second))),
		divider(),
	}

	succeeded := make([]types.AnalysisResult, 0, len(report.Results))
	failed := make([]types.AnalysisResult, 0)
	for _, r := range report.Results {
		if r.Failed() {
			failed = append(failed, r)
		} else {
			succeeded = append(succeeded, r)
		}
	}

	sort.SliceStable(succeeded, func(i, j int) bool {
		ci, cj := succeeded[i].Rec.Confidence, succeeded[j].Rec.Confidence
		if ci != cj {
			return ci > cj
		}
		return techScore(succeeded[i]) > techScore(succeeded[j])
	})

	for i, r := range succeeded {
		blocks = append(blocks, section(formatResult(i+1, r)))
	}

	if len(failed) > 0 {
		blocks = append(blocks, divider())
		var sb strings.Builder
		sb.WriteString("*Failed symbols:*\n")
		for _, r := range failed {
			fmt.Fprintf(&sb, "• `%s` %s (stage: %s, attempts: %d)\n",
				r.Symbol.Code, r.Symbol.Name, r.Stage, r.Attempts)
		}
		blocks = append(blocks, section(sb.String()))
	}

	return blocks
}

// FormatFailure renders the abort notice for a cycle that never produced a
// report.
func FormatFailure(reason string) []Block {
	return []Block{
		header("⚠️ Analysis Cycle Aborted"),
		section(fmt.Sprintf("No symbols were analyzed this cycle.\n*Reason:* %s", reason)),
	}
}

func formatResult(rank int, r types.AnalysisResult) string {
	rec := r.Rec
	emoji := map[string]string{"BUY": "🟢", "SELL": "🔴", "HOLD": "⚪"}[rec.Action]

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d. %s *%s* (`%s`)  %s  conf %.0f%%  risk %s\n",
		rank, emoji, r.Symbol.Name, r.Symbol.Code, rec.Action, rec.Confidence*100, rec.Risk)

	if r.Indicators != nil {
		set := r.Indicators
		fmt.Fprintf(&sb, "   close %s | RSI %.1f | MACD %s | BB %s",
			formatPrice(set.LastClose), set.RSI, set.MACD.Cross, set.BB.Position)
	}
	if rec.TargetPrice > 0 {
		fmt.Fprintf(&sb, " | target %s", formatPrice(rec.TargetPrice))
	}
	if rec.Rationale != "" {
		fmt.Fprintf(&sb, "\n   _%s_", rec.Rationale)
	}
	return sb.String()
}

func techScore(r types.AnalysisResult) float64 {
	if r.Indicators == nil {
		return 0
	}
	return indicator.Score(*r.Indicators)
}

func formatPrice(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	// group thousands for readability
	n := len(s)
	if n <= 3 {
		return "₩" + s
	}
	var sb strings.Builder
	sb.WriteString("₩")
	rem := n % 3
	if rem > 0 {
		sb.WriteString(s[:rem])
		if n > rem {
			sb.WriteString(",")
		}
	}
	for i := rem; i < n; i += 3 {
		sb.WriteString(s[i : i+3])
		if i+3 < n {
			sb.WriteString(",")
		}
	}
	return sb.String()
}
