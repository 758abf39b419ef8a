package kiwoom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"stock-analysis-bot/internal/interfaces"
	"stock-analysis-bot/internal/trace"
	"stock-analysis-bot/internal/types"
)

const defaultEndpoint = "https://api.kiwoom.com"

// Kiwoom is the REST data-feed client: condition screening plus daily
// chart history.
type Kiwoom struct {
	endpoint  string
	appKey    string
	appSecret string
	httpc     *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

var _ interfaces.DataFeed = (*Kiwoom)(nil)

// New creates a Kiwoom client. Credentials come from KIWOOM_APP_KEY and
// KIWOOM_APP_SECRET; the endpoint can be overridden for sandboxes.
func New(endpoint string) *Kiwoom {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if ep := os.Getenv("KIWOOM_API_ENDPOINT"); ep != "" {
		endpoint = ep
	}
	return &Kiwoom{
		endpoint:  endpoint,
		appKey:    os.Getenv("KIWOOM_APP_KEY"),
		appSecret: os.Getenv("KIWOOM_APP_SECRET"),
		httpc:     &http.Client{Timeout: 30 * time.Second},
	}
}

// ScreenSymbols resolves a saved screening condition to its ranked symbol
// list.
func (k *Kiwoom) ScreenSymbols(ctx context.Context, condition string) ([]types.Symbol, error) {
	ctx, span := trace.StartSpan(ctx, "kiwoom-screen-symbols")
	defer span.End()

	reqBody := map[string]any{"cond_nm": condition}
	var out struct {
		Stocks []struct {
			Code string `json:"stk_cd"`
			Name string `json:"stk_nm"`
		} `json:"stks"`
	}
	if err := k.post(ctx, "/api/dostk/condition-search", reqBody, &out); err != nil {
		// the API reports an unknown condition name as a 404
		if httpStatus(err) == http.StatusNotFound {
			return nil, types.NewServiceError(types.KindPermanent, "feed",
				fmt.Errorf("%w: %q", types.ErrConditionNotFound, condition))
		}
		return nil, err
	}

	symbols := make([]types.Symbol, 0, len(out.Stocks))
	for _, s := range out.Stocks {
		if s.Code == "" {
			continue
		}
		name := s.Name
		if name == "" {
			name = s.Code
		}
		symbols = append(symbols, types.Symbol{Code: s.Code, Name: name})
	}
	return symbols, nil
}

// PriceHistory returns up to lookback daily candles, ascending.
func (k *Kiwoom) PriceHistory(ctx context.Context, symbol types.Symbol, lookback int) (types.PriceSeries, error) {
	ctx, span := trace.StartSpan(ctx, "kiwoom-price-history")
	defer span.End()

	reqBody := map[string]any{
		"stk_cd":     symbol.Code,
		"period":     "D",
		"req_cnt":    lookback,
		"adj_prc_tp": "1",
	}
	var out struct {
		Candles []struct {
			Date   string `json:"dt"` // yyyymmdd
			Open   string `json:"open_prc"`
			High   string `json:"high_prc"`
			Low    string `json:"low_prc"`
			Close  string `json:"cur_prc"`
			Volume string `json:"trde_qty"`
		} `json:"chart"`
	}
	if err := k.post(ctx, "/api/dostk/daily-chart", reqBody, &out); err != nil {
		return nil, err
	}

	series := make(types.PriceSeries, 0, len(out.Candles))
	for _, c := range out.Candles {
		day, err := time.ParseInLocation("20060102", c.Date, time.Local)
		if err != nil {
			continue
		}
		series = append(series, types.Candle{
			Ts:    day.Unix(),
			Open:  parsePrice(c.Open),
			High:  parsePrice(c.High),
			Low:   parsePrice(c.Low),
			Close: parsePrice(c.Close),
			Vol:   parsePrice(c.Volume),
		})
	}
	// the API returns newest-first
	for i, j := 0, len(series)-1; i < j; i, j = i+1, j-1 {
		series[i], series[j] = series[j], series[i]
	}
	return series, nil
}

func (k *Kiwoom) post(ctx context.Context, path string, body any, out any) error {
	token, err := k.token(ctx)
	if err != nil {
		return err
	}

	bb, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, "POST", k.endpoint+path, bytes.NewReader(bb))
	if err != nil {
		return types.NewServiceError(types.KindPermanent, "feed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := k.httpc.Do(req)
	if err != nil {
		// connection errors and timeouts are worth another try
		return types.NewServiceError(types.KindTransient, "feed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{
			ServiceError: types.ServiceError{
				Kind:    types.KindFromStatus(resp.StatusCode),
				Service: "feed",
				Err:     fmt.Errorf("kiwoom http %d: %s", resp.StatusCode, payload),
			},
			status: resp.StatusCode,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewServiceError(types.KindPermanent, "feed", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// token returns a cached OAuth access token, refreshing when expired.
func (k *Kiwoom) token(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.accessToken != "" && time.Now().Before(k.tokenExpiry) {
		return k.accessToken, nil
	}
	if k.appKey == "" || k.appSecret == "" {
		return "", types.NewServiceError(types.KindPermanent, "feed",
			errors.New("KIWOOM_APP_KEY or KIWOOM_APP_SECRET missing"))
	}

	bb, _ := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     k.appKey,
		"secretkey":  k.appSecret,
	})
	req, err := http.NewRequestWithContext(ctx, "POST", k.endpoint+"/oauth2/token", bytes.NewReader(bb))
	if err != nil {
		return "", types.NewServiceError(types.KindPermanent, "feed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.httpc.Do(req)
	if err != nil {
		return "", types.NewServiceError(types.KindTransient, "feed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", types.NewServiceError(types.KindFromStatus(resp.StatusCode), "feed",
			fmt.Errorf("kiwoom token http %d", resp.StatusCode))
	}

	var tok struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", types.NewServiceError(types.KindPermanent, "feed", fmt.Errorf("decode token: %w", err))
	}
	if tok.Token == "" {
		return "", types.NewServiceError(types.KindPermanent, "feed", errors.New("empty access token"))
	}

	expiry := time.Duration(tok.ExpiresIn) * time.Second
	if expiry == 0 {
		expiry = time.Hour
	}
	k.accessToken = tok.Token
	k.tokenExpiry = time.Now().Add(expiry - time.Minute)
	return k.accessToken, nil
}

// statusError keeps the HTTP status alongside the classification.
type statusError struct {
	types.ServiceError
	status int
}

func (e *statusError) Unwrap() error { return &e.ServiceError }

func httpStatus(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return 0
}

func parsePrice(s string) float64 {
	// Kiwoom prefixes signed prices with +/-
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
