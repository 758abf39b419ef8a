package types

import "time"

// Symbol identifies one listed equity. Code is the exchange ticker
// (e.g. "005930"), Name the display name. Immutable for the cycle that
// screened it.
type Symbol struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Candle is one OHLCV price point.
type Candle struct {
	Ts                          int64
	Open, High, Low, Close, Vol float64
}

// PriceSeries is an ascending, duplicate-free candle sequence for one symbol.
type PriceSeries []Candle

// Closes extracts the closing prices in series order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// BandPosition classifies the latest close relative to the Bollinger bands.
type BandPosition string

const (
	BandUpper  BandPosition = "UPPER"
	BandMiddle BandPosition = "MIDDLE"
	BandLower  BandPosition = "LOWER"
)

// MACDSet is the MACD line/signal/histogram plus the cross classification
// over the two most recent points.
type MACDSet struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
	Cross     string  `json:"cross"` // BUY, SELL or HOLD
}

// BollingerSet is the 20-period band set and the close's position in it.
type BollingerSet struct {
	Upper    float64      `json:"upper"`
	Middle   float64      `json:"middle"`
	Lower    float64      `json:"lower"`
	Position BandPosition `json:"position"`
}

// IndicatorSet holds the technical indicators computed for one symbol in one
// cycle. Recomputed from a fresh PriceSeries every cycle, never persisted.
type IndicatorSet struct {
	RSI       float64         `json:"rsi"`
	SMA       map[int]float64 `json:"sma"`
	MACD      MACDSet         `json:"macd"`
	BB        BollingerSet    `json:"bb"`
	LastClose float64         `json:"last_close"`
}

// RiskLevel buckets the analyst's risk assessment.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Recommendation is the AI-synthesized verdict for one symbol. Immutable
// once produced. The AI output is authoritative for Action/Confidence/
// TargetPrice; indicators travel alongside as supporting evidence.
type Recommendation struct {
	Action      string    `json:"action"` // BUY, SELL or HOLD
	Confidence  float64   `json:"confidence"`
	TargetPrice float64   `json:"target_price"`
	StopLoss    float64   `json:"stop_loss"`
	Risk        RiskLevel `json:"risk_level"`
	Rationale   string    `json:"rationale"`
}

// NewsArticle is one scraped headline used for sentiment context.
type NewsArticle struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	Symbol      string `json:"symbol"`
}

// NewsSentiment summarizes scraped coverage for one symbol.
type NewsSentiment struct {
	Symbol           string  `json:"symbol"`
	OverallSentiment string  `json:"overall_sentiment"` // POSITIVE, NEGATIVE, NEUTRAL or MIXED
	OverallScore     float64 `json:"overall_score"`     // -1..1
	Confidence       float64 `json:"confidence"`
	Summary          string  `json:"summary"`
	ArticleCount     int     `json:"article_count"`
	Timestamp        int64   `json:"timestamp"`
}

// AnalysisResult pairs one symbol's indicators with its recommendation, or
// carries the error that stopped its pipeline. Exactly one per screened
// symbol per cycle.
type AnalysisResult struct {
	Symbol     Symbol          `json:"symbol"`
	Indicators *IndicatorSet   `json:"indicators,omitempty"`
	Rec        *Recommendation `json:"recommendation,omitempty"`
	Err        string          `json:"error,omitempty"`
	Stage      string          `json:"stage,omitempty"`
	Attempts   int             `json:"attempts,omitempty"`
	At         time.Time       `json:"at"`
}

// Failed reports whether this symbol's pipeline ended in an error.
func (r AnalysisResult) Failed() bool { return r.Err != "" }

// CycleReport is the sealed outcome of one full analysis cycle. Results keep
// the screening collaborator's ranking order.
type CycleReport struct {
	Condition string           `json:"condition"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Results   []AnalysisResult `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}
