package news

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stock-analysis-bot/internal/interfaces"
	"stock-analysis-bot/internal/limiter"
	"stock-analysis-bot/internal/logger"
	"stock-analysis-bot/internal/store"
	"stock-analysis-bot/internal/trace"
	"stock-analysis-bot/internal/types"
)

const analyzerSystem = "You are a financial analyst expert at analyzing Korean market news sentiment for investment decisions. Respond ONLY with valid JSON."

// ArticleSentiment is the per-article verdict before aggregation.
type ArticleSentiment struct {
	Sentiment string
	Score     float64
	Reasoning string
}

// SentimentAnalyzer scores scraped articles through the configured model.
type SentimentAnalyzer struct {
	completer interfaces.Completer
	limits    *limiter.Registry
}

// NewSentimentAnalyzer creates a new sentiment analyzer
func NewSentimentAnalyzer(completer interfaces.Completer, limits *limiter.Registry) *SentimentAnalyzer {
	return &SentimentAnalyzer{completer: completer, limits: limits}
}

// AnalyzeArticle analyzes sentiment of a single article
func (a *SentimentAnalyzer) AnalyzeArticle(ctx context.Context, article types.NewsArticle) (ArticleSentiment, error) {
	ctx, span := trace.StartSpan(ctx, "analyze-article-sentiment")
	defer span.End()

	prompt := buildArticlePrompt(article)

	var raw string
	_, err := a.limits.Execute(ctx, store.ServiceCompletion, func(ctx context.Context) error {
		out, cerr := a.completer.Complete(ctx, analyzerSystem, prompt)
		if cerr != nil {
			return cerr
		}
		raw = out
		return nil
	})
	if err != nil {
		return ArticleSentiment{}, err
	}

	var doc struct {
		Sentiment string  `json:"sentiment"`
		Score     float64 `json:"score"`
		Reasoning string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &doc); err != nil {
		return ArticleSentiment{}, types.Malformedf("sentiment output is not valid JSON: %v", err)
	}

	sent := strings.ToUpper(strings.TrimSpace(doc.Sentiment))
	switch sent {
	case "POSITIVE", "NEGATIVE", "NEUTRAL":
	default:
		sent = "NEUTRAL"
	}
	if doc.Score < -1 {
		doc.Score = -1
	}
	if doc.Score > 1 {
		doc.Score = 1
	}

	return ArticleSentiment{Sentiment: sent, Score: doc.Score, Reasoning: doc.Reasoning}, nil
}

// AnalyzeMultipleArticles analyzes sentiment from multiple articles and aggregates
func (a *SentimentAnalyzer) AnalyzeMultipleArticles(ctx context.Context, symbol types.Symbol, articles []types.NewsArticle) (types.NewsSentiment, error) {
	logger.Info(ctx, "Analyzing sentiment for multiple articles", "symbol", symbol.Code, "count", len(articles))

	if len(articles) == 0 {
		return types.NewsSentiment{
			Symbol:           symbol.Code,
			OverallSentiment: "NEUTRAL",
			Summary:          "No articles found for analysis",
			Timestamp:        time.Now().Unix(),
		}, nil
	}

	sentiments := []ArticleSentiment{}
	for _, article := range articles {
		sentiment, err := a.AnalyzeArticle(ctx, article)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to analyze article", err, "article", article.Title)
			continue
		}
		sentiments = append(sentiments, sentiment)
	}

	aggregated := aggregateSentiments(symbol, sentiments)

	logger.Info(ctx, "Sentiment analysis completed", "symbol", symbol.Code,
		"overall", aggregated.OverallSentiment, "score", aggregated.OverallScore)

	return aggregated, nil
}

// aggregateSentiments combines multiple article sentiments into overall sentiment
func aggregateSentiments(symbol types.Symbol, sentiments []ArticleSentiment) types.NewsSentiment {
	if len(sentiments) == 0 {
		return types.NewsSentiment{
			Symbol:           symbol.Code,
			OverallSentiment: "NEUTRAL",
			Timestamp:        time.Now().Unix(),
		}
	}

	totalScore := 0.0
	counts := map[string]int{"POSITIVE": 0, "NEGATIVE": 0, "NEUTRAL": 0}
	for _, s := range sentiments {
		totalScore += s.Score
		counts[s.Sentiment]++
	}

	count := float64(len(sentiments))
	avgScore := totalScore / count

	overall := "NEUTRAL"
	if counts["POSITIVE"] > counts["NEGATIVE"]*2 {
		overall = "POSITIVE"
	} else if counts["NEGATIVE"] > counts["POSITIVE"]*2 {
		overall = "NEGATIVE"
	} else if counts["POSITIVE"] > 0 && counts["NEGATIVE"] > 0 {
		overall = "MIXED"
	}

	summary := fmt.Sprintf("Analyzed %d articles: %d positive, %d negative, %d neutral.",
		len(sentiments), counts["POSITIVE"], counts["NEGATIVE"], counts["NEUTRAL"])

	return types.NewsSentiment{
		Symbol:           symbol.Code,
		OverallSentiment: overall,
		OverallScore:     avgScore,
		Confidence:       calculateConfidence(len(sentiments), counts),
		Summary:          summary,
		ArticleCount:     len(sentiments),
		Timestamp:        time.Now().Unix(),
	}
}

// calculateConfidence determines confidence level based on data quality
func calculateConfidence(articleCount int, counts map[string]int) float64 {
	var confidence float64
	switch {
	case articleCount >= 10:
		confidence = 0.9
	case articleCount >= 5:
		confidence = 0.7
	case articleCount >= 3:
		confidence = 0.5
	default:
		confidence = 0.3
	}

	// very mixed coverage deserves less weight
	total := float64(counts["POSITIVE"] + counts["NEGATIVE"] + counts["NEUTRAL"])
	if total > 0 {
		maxCount := float64(max3(counts["POSITIVE"], counts["NEGATIVE"], counts["NEUTRAL"]))
		confidence *= maxCount / total
	}

	return confidence
}

// buildArticlePrompt creates the prompt for analyzing a single article
func buildArticlePrompt(article types.NewsArticle) string {
	schema := `{"sentiment":"POSITIVE|NEGATIVE|NEUTRAL","score":-1.0 to 1.0,"reasoning":"brief explanation"}`

	content := article.Content
	if len(content) > 2000 {
		content = content[:2000] + "..."
	}

	return fmt.Sprintf(`Analyze the sentiment of this news article about stock %s for investment purposes.

Article Title: %s
Source: %s
Content: %s

Respond ONLY with valid JSON matching this schema:
%s`, article.Symbol, article.Title, article.Source, content, schema)
}

func max3(a, b, c int) int {
	if a > b && a > c {
		return a
	}
	if b > c {
		return b
	}
	return c
}
