// Package fdc provides a rate-limited client for the USDA FoodData Central
// search API. All requests share one pacing budget: the provider throttles
// on aggregate requests per hour, so the interval between requests is
// enforced across every caller of a Client.
package fdc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/savori/ingredient-sync/internal/types"
)

const (
	// DefaultBaseURL is the production FoodData Central endpoint.
	DefaultBaseURL = "https://api.nal.usda.gov/fdc"

	// DefaultTimeout bounds each individual HTTP call so a hung connection
	// cannot stall a multi-week run.
	DefaultTimeout = 30 * time.Second

	// defaultRetryAfter applies when a 429 response carries no Retry-After
	// header. The provider's quota window is hourly.
	defaultRetryAfter = time.Hour

	maxAttempts = 3
)

// Options configures a Client. RequestsPerHour is the primary throughput
// knob and differs by credential tier: 30/hour for demo keys, up to
// 1000/hour for provisioned ones.
type Options struct {
	BaseURL         string
	APIKey          string
	RequestsPerHour int
	PageSize        int
	ThrottleCeiling time.Duration
	Timeout         time.Duration
	RetryDelay      time.Duration
}

// Page is one page of search results plus the provider's pagination and
// rate-budget hints.
type Page struct {
	Records       []types.SourceRecord
	TotalHits     int
	TotalPages    int
	RateRemaining int // -1 when the provider sent no rate header
}

// Client fetches paginated food records while enforcing a steady
// inter-request interval. Safe for concurrent use; the pacing budget is
// shared across goroutines.
type Client struct {
	httpClient *http.Client
	opts       Options
	interval   time.Duration

	mu       sync.Mutex
	nextSlot time.Time
}

// NewClient builds a Client from options, filling unset fields with
// defaults.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RequestsPerHour <= 0 {
		opts.RequestsPerHour = 30
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 25
	}
	if opts.ThrottleCeiling == 0 {
		opts.ThrottleCeiling = 4 * time.Hour
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 30 * time.Second
	}

	// ceil(1h / requestsPerHour) keeps the aggregate rate under the quota
	// even when the division is not exact.
	delayMs := (3_600_000 + opts.RequestsPerHour - 1) / opts.RequestsPerHour
	interval := time.Duration(delayMs) * time.Millisecond

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		interval:   interval,
	}
}

// Interval returns the enforced delay between requests.
func (c *Client) Interval() time.Duration {
	return c.interval
}

// FetchPage retrieves one page of records for a partition. Pages are
// 1-based. An empty Records slice means the partition is exhausted.
//
// Failure modes: *ThrottledError when the provider's retry hint exceeds the
// ceiling, *TransientNetworkError after the retry bound, *FatalAuthError on
// credential rejection.
func (c *Client) FetchPage(ctx context.Context, partition types.Partition, pageNumber int) (*Page, error) {
	return c.search(ctx, partition, pageNumber, c.opts.PageSize)
}

// Count estimates the total number of records in a partition using a
// minimal one-item query. The result is approximate and only feeds ETA
// display.
func (c *Client) Count(ctx context.Context, partition types.Partition) (int, error) {
	page, err := c.search(ctx, partition, 1, 1)
	if err != nil {
		return 0, err
	}
	return page.TotalHits, nil
}

// searchResponse mirrors the provider's JSON envelope.
type searchResponse struct {
	Foods      []types.SourceRecord `json:"foods"`
	TotalHits  int                  `json:"totalHits"`
	TotalPages int                  `json:"totalPages"`
}

func (c *Client) search(ctx context.Context, partition types.Partition, pageNumber, pageSize int) (*Page, error) {
	endpoint, err := c.searchURL(partition, pageNumber, pageSize)
	if err != nil {
		return nil, err
	}

	attempts := 0
	var lastErr error
	for attempts < maxAttempts {
		if err := c.awaitSlot(ctx); err != nil {
			return nil, err
		}

		page, throttled, retryAfter, err := c.doRequest(ctx, endpoint)
		switch {
		case err == nil:
			return page, nil
		case throttled:
			// Throttled. A wait within the ceiling is absorbed here; a
			// longer one must surface as an explicit halt rather than an
			// unobservable multi-hour sleep.
			if retryAfter > c.opts.ThrottleCeiling {
				return nil, &ThrottledError{RetryAfter: retryAfter, Ceiling: c.opts.ThrottleCeiling}
			}
			if err := sleepCtx(ctx, retryAfter); err != nil {
				return nil, err
			}
			continue // throttling does not consume a transient attempt
		default:
			var authErr *FatalAuthError
			if errors.As(err, &authErr) {
				return nil, err
			}
			attempts++
			lastErr = err
			if attempts < maxAttempts {
				if err := sleepCtx(ctx, c.opts.RetryDelay); err != nil {
					return nil, err
				}
			}
		}
	}
	return nil, &TransientNetworkError{Attempts: attempts, Cause: lastErr}
}

// doRequest performs a single HTTP round trip. throttled reports a 429
// response, with retryAfter carrying the provider's wait hint.
func (c *Client) doRequest(ctx context.Context, endpoint string) (page *Page, throttled bool, retryAfter time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, parseRetryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("HTTP 429")
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
		return nil, false, 0, &FatalAuthError{StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return nil, false, 0, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, false, 0, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	remaining := -1
	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			remaining = n
		}
	}

	return &Page{
		Records:       sr.Foods,
		TotalHits:     sr.TotalHits,
		TotalPages:    sr.TotalPages,
		RateRemaining: remaining,
	}, false, 0, nil
}

func (c *Client) searchURL(partition types.Partition, pageNumber, pageSize int) (string, error) {
	base, err := url.Parse(c.opts.BaseURL + "/v1/foods/search")
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", c.opts.BaseURL, err)
	}
	q := base.Query()
	q.Set("dataType", string(partition))
	q.Set("pageNumber", strconv.Itoa(pageNumber))
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("sortBy", "fdcId")
	q.Set("api_key", c.opts.APIKey)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// awaitSlot blocks until the shared inter-request interval has elapsed.
// The slot is reserved under the lock so concurrent callers queue instead
// of bursting.
func (c *Client) awaitSlot(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	wait := c.nextSlot.Sub(now)
	if wait < 0 {
		wait = 0
		c.nextSlot = now.Add(c.interval)
	} else {
		c.nextSlot = c.nextSlot.Add(c.interval)
	}
	c.mu.Unlock()

	return sleepCtx(ctx, wait)
}

// parseRetryAfter interprets the provider's Retry-After header as seconds,
// defaulting to a full quota window when absent or malformed.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
