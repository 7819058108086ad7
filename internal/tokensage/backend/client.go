// Package backend implements the HTTP client for the upstream market-data
// API. The pipeline core never talks to it directly (only the bound
// operations do), so its surface stays minimal: one method per endpoint,
// api-key header auth, page/limit pagination, and a JSON result envelope.
//
// Failures are returned as typed dispatch errors so the retry policy can
// classify them without inspecting message text: HTTP 401/403 become auth
// failures, everything else network- or server-shaped is transient.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avelnar/tokensage/internal/tokensage/dispatch"
)

const (
	defaultBaseURL = "https://api.tokenmetrics.com/v2"
	defaultTimeout = 30 * time.Second
)

// Config configures the market-data client.
type Config struct {
	// APIKey is sent in the x-api-key header on every request.
	APIKey string

	// BaseURL overrides the API endpoint. Defaults to the public endpoint
	// when empty.
	BaseURL string

	// Timeout is the per-request HTTP timeout. Defaults to 30 s.
	Timeout time.Duration
}

// Client is the market-data API client. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a Client for the given configuration.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether an API key is present. Operations use this as
// their precondition check.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// envelope is the API's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// get performs an authenticated GET against path, decoding the envelope's
// data field into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return &dispatch.OperationError{Kind: dispatch.KindTransient, Err: fmt.Errorf("backend: %s: %w", path, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &dispatch.OperationError{Kind: dispatch.KindTransient, Err: fmt.Errorf("backend: read %s: %w", path, err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &dispatch.OperationError{
			Kind: dispatch.KindAuth,
			Err:  fmt.Errorf("backend: %s: API key rejected (status %d)", path, resp.StatusCode),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &dispatch.OperationError{
			Kind: dispatch.KindTransient,
			Err:  fmt.Errorf("backend: %s: status %d: %s", path, resp.StatusCode, truncate(body, 200)),
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &dispatch.OperationError{Kind: dispatch.KindTransient, Err: fmt.Errorf("backend: decode %s: %w", path, err)}
	}
	if !env.Success {
		return &dispatch.OperationError{Kind: dispatch.KindTransient, Err: fmt.Errorf("backend: %s: %s", path, env.Message)}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &dispatch.OperationError{Kind: dispatch.KindTransient, Err: fmt.Errorf("backend: decode %s data: %w", path, err)}
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// paged builds the standard pagination query values.
func paged(page, limit int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

// ---------------------------------------------------------------------------
// Endpoints
// ---------------------------------------------------------------------------

// TokenInfo describes one listed token.
type TokenInfo struct {
	TokenID   int64   `json:"token_id"`
	Symbol    string  `json:"token_symbol"`
	Name      string  `json:"token_name"`
	MarketCap float64 `json:"market_cap,omitempty"`
}

// Tokens looks tokens up by symbol; an empty symbol lists tokens by market
// cap rank (used by the top-tokens operation).
func (c *Client) Tokens(ctx context.Context, symbol string, page, limit int) ([]TokenInfo, error) {
	q := paged(page, limit)
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	var out []TokenInfo
	if err := c.get(ctx, "/tokens", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TokenPrice is the current price snapshot for one token.
type TokenPrice struct {
	TokenID         int64   `json:"token_id"`
	Symbol          string  `json:"token_symbol"`
	Name            string  `json:"token_name"`
	Price           float64 `json:"current_price"`
	PercentChange24 float64 `json:"price_change_percentage_24h"`
}

// Price fetches current prices for the given token IDs.
func (c *Client) Price(ctx context.Context, tokenIDs []int64, page, limit int) ([]TokenPrice, error) {
	q := paged(page, limit)
	if len(tokenIDs) > 0 {
		ids := make([]string, len(tokenIDs))
		for i, id := range tokenIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		q.Set("token_id", strings.Join(ids, ","))
	}
	var out []TokenPrice
	if err := c.get(ctx, "/price", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Candle is one OHLCV bar.
type Candle struct {
	TokenID   int64   `json:"token_id"`
	Symbol    string  `json:"token_symbol"`
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// OHLCV fetches candles at the given interval ("daily" or "hourly").
func (c *Client) OHLCV(ctx context.Context, interval, symbol string, page, limit int) ([]Candle, error) {
	path := "/daily-ohlcv"
	if interval == "hourly" {
		path = "/hourly-ohlcv"
	}
	q := paged(page, limit)
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	var out []Candle
	if err := c.get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Grade is one dated grade observation (trader or investor scale).
type Grade struct {
	TokenID int64   `json:"token_id"`
	Symbol  string  `json:"token_symbol"`
	Date    string  `json:"date"`
	Grade   float64 `json:"grade"`
	Change  float64 `json:"grade_change_24h,omitempty"`
}

// TraderGrades fetches short-term technical grades.
func (c *Client) TraderGrades(ctx context.Context, symbol string, page, limit int) ([]Grade, error) {
	q := paged(page, limit)
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	var out []Grade
	if err := c.get(ctx, "/trader-grades", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InvestorGrades fetches long-term fundamental grades.
func (c *Client) InvestorGrades(ctx context.Context, symbol string, page, limit int) ([]Grade, error) {
	q := paged(page, limit)
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	var out []Grade
	if err := c.get(ctx, "/investor-grades", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Signal is one dated trading signal: 1 bullish, -1 bearish, 0 neutral.
type Signal struct {
	TokenID int64   `json:"token_id"`
	Symbol  string  `json:"token_symbol"`
	Date    string  `json:"date"`
	Signal  int     `json:"signal"`
	Returns float64 `json:"signal_returns,omitempty"`
}

// TradingSignals fetches model trading signals.
func (c *Client) TradingSignals(ctx context.Context, symbol string, page, limit int) ([]Signal, error) {
	q := paged(page, limit)
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	var out []Signal
	if err := c.get(ctx, "/trading-signals", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SentimentPoint is one dated market-sentiment reading.
type SentimentPoint struct {
	Date  string  `json:"date"`
	Grade float64 `json:"sentiment_grade"`
	Label string  `json:"sentiment_label"`
}

// MarketSentiment fetches recent market-wide sentiment readings.
func (c *Client) MarketSentiment(ctx context.Context, page, limit int) ([]SentimentPoint, error) {
	var out []SentimentPoint
	if err := c.get(ctx, "/sentiments", paged(page, limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}
