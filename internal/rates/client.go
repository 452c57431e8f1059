package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/core"
)

const (
	// DefaultBaseURL is the free conversion API. It only serves tables
	// relative to a single base per call: GET {base-url}/{currency}.
	DefaultBaseURL = "https://api.exchangerate-api.com/v4/latest"

	// DefaultTimeout bounds a single rate fetch. Conversion callers fall
	// back to the static table rather than wait longer.
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrNetwork means the remote call failed or timed out.
	ErrNetwork = errors.New("rate provider unreachable")
	// ErrParse means the response did not carry a rates table.
	ErrParse = errors.New("rate provider response missing rates")
)

// Provider is the outbound port for anything that can produce a rate table.
type Provider interface {
	Fetch(ctx context.Context, base core.CurrencyCode) (Table, error)
}

// Client fetches live rate tables over HTTP.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

// latestResponse mirrors the provider's wire format. The free API signals
// nothing beyond the rates map and a unix-seconds refresh stamp; absence of
// "rates" is the only hard failure signal.
type latestResponse struct {
	Rates           map[string]float64 `json:"rates"`
	TimeLastUpdated int64              `json:"time_last_updated"`
}

func (c *Client) Fetch(ctx context.Context, base core.CurrencyCode) (Table, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Table{}, fmt.Errorf("build rates request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Table{}, fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Table{}, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}

	var parsed latestResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(parsed.Rates) == 0 {
		return Table{}, ErrParse
	}

	asOf := time.Now()
	if parsed.TimeLastUpdated > 0 {
		asOf = time.Unix(parsed.TimeLastUpdated, 0)
	}

	table := Table{
		Base:  base,
		AsOf:  asOf,
		Rates: make(map[core.CurrencyCode]float64, len(parsed.Rates)),
	}
	for code, rate := range parsed.Rates {
		table.Rates[core.CurrencyCode(code)] = rate
	}
	// Invariant: the base always maps to 1, whatever the provider sent.
	table.Rates[base] = 1

	slog.DebugContext(ctx, "Fetched rate table",
		"base", base,
		"currencies", len(table.Rates),
		"as_of", table.AsOf)

	return table, nil
}
