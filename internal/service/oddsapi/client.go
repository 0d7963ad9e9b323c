package oddsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"ArbPull/internal/domain/models"
	apphttp "ArbPull/pkg/http"
	applogger "ArbPull/pkg/logger"
)

const apiVersion = "v4"

// Option configures Client.
type Option func(*config)

type config struct {
	baseURL    string
	regions    string
	markets    string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

// Client talks to The Odds API. It tracks the provider-reported request
// budget from the x-requests-remaining/x-requests-used response headers.
type Client struct {
	apiKey  string
	cfg     config
	httpc   *apphttp.Client
	logger  *applogger.Logger
	mu      sync.RWMutex
	quota   models.ProviderQuota
	sawOnce bool
}

// NewClient creates an odds provider client.
func NewClient(apiKey string, logger *applogger.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("oddsapi: api key is required")
	}

	cfg := config{
		baseURL:    "https://api.the-odds-api.com",
		regions:    "us",
		markets:    "h2h,spreads,totals",
		timeout:    10 * time.Second,
		maxRetries: 3,
		retryDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{
		apiKey: apiKey,
		cfg:    cfg,
		httpc:  apphttp.NewClient(apphttp.WithTimeout(cfg.timeout)),
		logger: logger.With("oddsapi"),
	}, nil
}

// WithBaseURL overrides the provider base URL, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *config) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithRegions sets the bookmaker regions parameter.
func WithRegions(regions string) Option {
	return func(c *config) {
		if regions != "" {
			c.regions = regions
		}
	}
}

// WithMarkets sets the markets parameter.
func WithMarkets(markets string) Option {
	return func(c *config) {
		if markets != "" {
			c.markets = markets
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry sets retry count and base backoff delay.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *config) {
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// Regions returns the configured regions parameter.
func (c *Client) Regions() string { return c.cfg.regions }

// Markets returns the configured markets parameter.
func (c *Client) Markets() string { return c.cfg.markets }

// FetchSports returns the provider's sports catalogue.
func (c *Client) FetchSports(ctx context.Context, allSports bool) ([]models.SportPayload, error) {
	params := map[string][]string{
		"apiKey": {c.apiKey},
	}
	if allSports {
		params["all"] = []string{"true"}
	}

	endpoint := fmt.Sprintf("%s/%s/sports", c.cfg.baseURL, apiVersion)

	body, err := c.doWithRetry(ctx, endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("fetch sports: %w", err)
	}

	var sports []models.SportPayload
	if err := json.Unmarshal(body, &sports); err != nil {
		return nil, fmt.Errorf("parse sports response: %w", err)
	}

	return sports, nil
}

// FetchOdds returns raw events with bookmaker prices for one sport key.
func (c *Client) FetchOdds(ctx context.Context, sportKey string) ([]models.EventPayload, error) {
	endpoint := fmt.Sprintf("%s/%s/sports/%s/odds", c.cfg.baseURL, apiVersion, sportKey)

	params := map[string][]string{
		"apiKey":     {c.apiKey},
		"regions":    {c.cfg.regions},
		"markets":    {c.cfg.markets},
		"oddsFormat": {"american"},
		"dateFormat": {"iso"},
	}

	body, err := c.doWithRetry(ctx, endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("fetch odds for %s: %w", sportKey, err)
	}

	var events []models.EventPayload
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("parse odds response: %w", err)
	}

	return events, nil
}

// FetchEvents returns upcoming events for one sport key, without prices.
func (c *Client) FetchEvents(ctx context.Context, sportKey string) ([]models.EventPayload, error) {
	endpoint := fmt.Sprintf("%s/%s/sports/%s/events", c.cfg.baseURL, apiVersion, sportKey)

	params := map[string][]string{
		"apiKey":     {c.apiKey},
		"dateFormat": {"iso"},
	}

	body, err := c.doWithRetry(ctx, endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("fetch events for %s: %w", sportKey, err)
	}

	var events []models.EventPayload
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("parse events response: %w", err)
	}

	return events, nil
}

// LastQuota reports the most recent provider-authoritative quota figures.
func (c *Client) LastQuota() (models.ProviderQuota, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quota, c.sawOnce
}

func (c *Client) doWithRetry(ctx context.Context, endpoint string, params map[string][]string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.cfg.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.retryDelay * time.Duration(1<<uint(attempt-1))
			c.logger.Warn("retrying provider request",
				applogger.Int("attempt", attempt),
				applogger.Duration("backoff", backoff),
				applogger.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := c.do(ctx, endpoint, params)
		if err == nil {
			return body, nil
		}
		lastErr = err

		// 4xx other than 429 will not get better on retry
		var httpErr *statusError
		if errors.As(err, &httpErr) {
			if httpErr.code >= 400 && httpErr.code < 500 && httpErr.code != http.StatusTooManyRequests {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) do(ctx context.Context, endpoint string, params map[string][]string) ([]byte, error) {
	resp, err := c.httpc.SendRequest(ctx, &apphttp.RequestOptions{
		Method:      apphttp.MethodGet,
		URL:         endpoint,
		QueryParams: params,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	c.updateQuota(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}

	return body, nil
}

func (c *Client) updateQuota(headers http.Header) {
	remaining, okR := atoiHeader(headers, "x-requests-remaining")
	used, okU := atoiHeader(headers, "x-requests-used")
	if !okR && !okU {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if okR {
		c.quota.RequestsRemaining = remaining
	}
	if okU {
		c.quota.RequestsUsed = used
	}
	c.quota.ReportedAt = time.Now()
	c.sawOnce = true
}

func atoiHeader(headers http.Header, name string) (int, bool) {
	v := headers.Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}
