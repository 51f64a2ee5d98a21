package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Tonic56/coinfolio/internal/config"
	"github.com/Tonic56/coinfolio/lib/errs"
	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://api.coincap.io/v2"

// Asset mirrors the upstream asset record. Numeric fields arrive as strings.
type Asset struct {
	ID                string              `json:"id"`
	Rank              string              `json:"rank"`
	Symbol            string              `json:"symbol"`
	Name              string              `json:"name"`
	Supply            decimal.Decimal     `json:"supply"`
	MaxSupply         decimal.NullDecimal `json:"maxSupply"`
	MarketCapUSD      decimal.Decimal     `json:"marketCapUsd"`
	VolumeUSD24Hr     decimal.Decimal     `json:"volumeUsd24Hr"`
	PriceUSD          decimal.Decimal     `json:"priceUsd"`
	ChangePercent24Hr decimal.Decimal     `json:"changePercent24Hr"`
	VWAP24Hr          decimal.NullDecimal `json:"vwap24Hr"`
}

// DisplayName renders "Name (SYMBOL)", falling back to the id.
func (a Asset) DisplayName() string {
	if a.Name == "" || a.Symbol == "" {
		return a.ID
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.Symbol)
}

type PricePoint struct {
	Price decimal.Decimal `json:"priceUsd"`
	Time  int64           `json:"time"`
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Client talks to the market-data API. It holds no per-request state.
type Client struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	attempts int
	delay    time.Duration
	now      func() time.Time
}

func NewClient(cfg config.MarketConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}

	return &Client{
		baseURL:  baseURL,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		attempts: attempts,
		delay:    cfg.RetryDelay,
		now:      time.Now,
	}
}

func (c *Client) Assets(ctx context.Context, limit int) ([]Asset, error) {
	const op = "market.Assets"

	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var env envelope
	if err := c.getJSON(ctx, "/assets", q, &env); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var assets []Asset
	if err := json.Unmarshal(env.Data, &assets); err != nil {
		return nil, fmt.Errorf("%s: decode data: %w", op, err)
	}
	return assets, nil
}

func (c *Client) Asset(ctx context.Context, id string) (*Asset, error) {
	const op = "market.Asset"

	var env envelope
	if err := c.getJSON(ctx, "/assets/"+url.PathEscape(id), nil, &env); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if isNull(env.Data) {
		return nil, fmt.Errorf("%s: asset %q: %w", op, id, errs.ErrNotFound)
	}

	var asset Asset
	if err := json.Unmarshal(env.Data, &asset); err != nil {
		return nil, fmt.Errorf("%s: decode data: %w", op, err)
	}
	return &asset, nil
}

// History returns the series for the interval's lookback window ending now.
func (c *Client) History(ctx context.Context, id string, interval Interval) ([]PricePoint, error) {
	w, ok := interval.Window()
	if !ok {
		return nil, fmt.Errorf("market.History: unknown interval %q: %w", interval, errs.ErrInvalidInput)
	}
	end := c.now()
	return c.HistoryRange(ctx, id, w.Granularity, end.Add(-w.Lookback), end)
}

// HistoryRange returns samples at the given granularity between start and end.
// A non-array data field yields an empty series.
func (c *Client) HistoryRange(ctx context.Context, id, granularity string, start, end time.Time) ([]PricePoint, error) {
	const op = "market.HistoryRange"

	q := url.Values{}
	q.Set("interval", granularity)
	q.Set("start", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("end", strconv.FormatInt(end.UnixMilli(), 10))

	var env envelope
	if err := c.getJSON(ctx, "/assets/"+url.PathEscape(id)+"/history", q, &env); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	trimmed := bytes.TrimSpace(env.Data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []PricePoint{}, nil
	}

	var points []PricePoint
	if err := json.Unmarshal(trimmed, &points); err != nil {
		return []PricePoint{}, nil
	}
	return points, nil
}

// getJSON fetches path with retries and decodes the final body into out.
// Transport failures and non-2xx answers are retried with a linearly growing delay.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	var (
		body []byte
		err  error
	)

	for attempt := 1; attempt <= c.attempts; attempt++ {
		body, err = c.fetch(ctx, path, query)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == c.attempts {
			return fmt.Errorf("giving up after %d attempts: %w", c.attempts, err)
		}

		timer := time.NewTimer(c.delay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("%w: status %d: %s", errs.ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return io.ReadAll(resp.Body)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
