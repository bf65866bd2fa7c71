// Package ratesapi is the HTTP client of the upstream rates and accounts
// API consumed by the dashboard.
package ratesapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rezkym/fx-exchange/pkg/balance"
	"github.com/rezkym/fx-exchange/pkg/config"
	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/rezkym/fx-exchange/pkg/provider"
	"github.com/rezkym/fx-exchange/pkg/rate"
)

// maxErrorBody bounds how much of a failed response is kept in APIError.
const maxErrorBody = 4 << 10

// APIError is returned for a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("rates api: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("rates api: status %d", e.StatusCode)
}

// Unwrap lets errors.Is match provider.ErrProviderUnavailable for server
// side failures.
func (e *APIError) Unwrap() error {
	if e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests {
		return provider.ErrProviderUnavailable
	}
	return nil
}

// envelope is the response wrapper of every endpoint.
type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client implements provider.RateAPI and provider.AccountLister.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client from the RATES_API configuration.
func New(cfg config.RatesAPI, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:  cfg.ApiKey,
		baseURL: strings.TrimRight(cfg.ApiUrl, "/"),
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		logger: logger.With("provider", "ratesapi"),
	}
}

type livePayload struct {
	Time   flexTime `json:"time"`
	Value  float64  `json:"value"`
	Source string   `json:"source"`
	Target string   `json:"target"`
}

// GetLive fetches the current rate of pair. The returned point carries the
// pair the server answered with, which may differ from the request.
func (c *Client) GetLive(ctx context.Context, pair currency.Pair) (rate.Point, error) {
	q := url.Values{}
	q.Set("source", string(pair.Source))
	q.Set("target", string(pair.Target))

	var p livePayload
	if err := c.get(ctx, "/rates/live", q, &p); err != nil {
		return rate.Point{}, err
	}
	source, err := answeredCode(p.Source, pair.Source)
	if err != nil {
		return rate.Point{}, fmt.Errorf("%w: /rates/live: source: %w", provider.ErrMalformedResponse, err)
	}
	target, err := answeredCode(p.Target, pair.Target)
	if err != nil {
		return rate.Point{}, fmt.Errorf("%w: /rates/live: target: %w", provider.ErrMalformedResponse, err)
	}
	return rate.Point{Time: p.Time.Time, Value: p.Value, Source: source, Target: target}, nil
}

// answeredCode normalizes a code echoed by the server. An omitted code
// falls back to the requested one.
func answeredCode(raw string, requested currency.Code) (currency.Code, error) {
	if strings.TrimSpace(raw) == "" {
		return requested, nil
	}
	return currency.ParseCode(raw)
}

type historyPayload struct {
	Time  flexTime `json:"time"`
	Value float64  `json:"value"`
}

// GetHistory fetches the history of pair for window, in the order served.
func (c *Client) GetHistory(ctx context.Context, pair currency.Pair, window provider.HistoryWindow) ([]rate.Point, error) {
	q := url.Values{}
	q.Set("source", string(pair.Source))
	q.Set("target", string(pair.Target))
	q.Set("length", strconv.Itoa(window.Length))
	q.Set("unit", window.Unit)
	q.Set("resolution", window.Resolution)

	var payload []historyPayload
	if err := c.get(ctx, "/rates/history", q, &payload); err != nil {
		return nil, err
	}
	points := make([]rate.Point, len(payload))
	for i, p := range payload {
		points[i] = rate.Point{Time: p.Time.Time, Value: p.Value, Source: pair.Source, Target: pair.Target}
	}
	return points, nil
}

// Convert converts amount of from into to.
func (c *Client) Convert(ctx context.Context, from, to currency.Code, amount float64) (provider.Conversion, error) {
	q := url.Values{}
	q.Set("source", string(from))
	q.Set("target", string(to))
	q.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))

	var conv provider.Conversion
	if err := c.get(ctx, "/rates/convert", q, &conv); err != nil {
		return provider.Conversion{}, err
	}
	return conv, nil
}

// ListAccounts fetches the user's accounts and wallets.
func (c *Client) ListAccounts(ctx context.Context) ([]balance.Account, error) {
	var accounts []balance.Account
	if err := c.get(ctx, "/accounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", provider.ErrProviderUnavailable, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	c.logger.Debug("Upstream request", "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
		var env envelope
		if json.Unmarshal(body, &env) == nil {
			apiErr.Message = env.Message
		}
		return apiErr
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: %s: decode envelope: %w", provider.ErrMalformedResponse, path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: %s: empty data", provider.ErrMalformedResponse, path)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s: decode data: %w", provider.ErrMalformedResponse, path, err)
	}
	return nil
}

// flexTime accepts an RFC 3339 string or Unix epoch milliseconds.
type flexTime struct {
	time.Time
}

var errBadTime = errors.New("time must be RFC 3339 or epoch milliseconds")

func (t *flexTime) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		return errBadTime
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		if ms, err := strconv.ParseInt(str, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return fmt.Errorf("%w: %q", errBadTime, str)
		}
		t.Time = parsed
		return nil
	}
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", errBadTime, s)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

var (
	_ provider.RateAPI       = (*Client)(nil)
	_ provider.AccountLister = (*Client)(nil)
)
