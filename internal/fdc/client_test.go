package fdc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savori/ingredient-sync/internal/types"
)

// testClient returns a client pointed at the server with pacing fast enough
// for tests: 3.6M requests/hour gives a 1ms interval.
func testClient(srv *httptest.Server, opts Options) *Client {
	opts.BaseURL = srv.URL
	opts.APIKey = "test-key"
	if opts.RequestsPerHour == 0 {
		opts.RequestsPerHour = 3_600_000
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	return NewClient(opts)
}

func TestFetchPageParsesResponse(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"dataType":   q.Get("dataType"),
			"pageNumber": q.Get("pageNumber"),
			"pageSize":   q.Get("pageSize"),
			"api_key":    q.Get("api_key"),
		}
		w.Header().Set("X-RateLimit-Remaining", "27")
		_, _ = w.Write([]byte(`{
			"totalHits": 2, "totalPages": 1,
			"foods": [
				{"fdcId": 1, "description": "Apple", "dataType": "Foundation",
				 "foodNutrients": [{"nutrientId": 1008, "value": 52}]},
				{"fdcId": 2, "description": "Banana", "dataType": "Foundation"}
			]
		}`))
	}))
	defer srv.Close()

	c := testClient(srv, Options{PageSize: 25})
	page, err := c.FetchPage(context.Background(), types.PartitionFoundation, 3)
	require.NoError(t, err)

	assert.Equal(t, "Foundation", gotQuery["dataType"])
	assert.Equal(t, "3", gotQuery["pageNumber"])
	assert.Equal(t, "25", gotQuery["pageSize"])
	assert.Equal(t, "test-key", gotQuery["api_key"])

	require.Len(t, page.Records, 2)
	assert.Equal(t, int64(1), page.Records[0].ExternalID)
	assert.Equal(t, "Apple", page.Records[0].Description)
	require.Len(t, page.Records[0].Nutrients, 1)
	assert.Equal(t, 1008, page.Records[0].Nutrients[0].Code)
	assert.Equal(t, 2, page.TotalHits)
	assert.Equal(t, 27, page.RateRemaining)
}

func TestFetchPageThrottleWithinCeilingRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"totalHits": 0, "totalPages": 0, "foods": []}`))
	}))
	defer srv.Close()

	c := testClient(srv, Options{ThrottleCeiling: time.Hour})
	page, err := c.FetchPage(context.Background(), types.PartitionBranded, 1)
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Equal(t, 2, calls, "throttled request should be retried")
}

func TestFetchPageThrottleCeilingAborts(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "7200")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv, Options{ThrottleCeiling: time.Hour})
	_, err := c.FetchPage(context.Background(), types.PartitionBranded, 1)

	var throttled *ThrottledError
	require.ErrorAs(t, err, &throttled)
	assert.Equal(t, 2*time.Hour, throttled.RetryAfter)
	assert.Equal(t, 1, calls, "no retry once the hint exceeds the ceiling")
}

func TestFetchPageMissingRetryHintDefaultsToAnHour(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	// Default hint is one hour, above a 30-minute ceiling, so the run halts.
	c := testClient(srv, Options{ThrottleCeiling: 30 * time.Minute})
	_, err := c.FetchPage(context.Background(), types.PartitionBranded, 1)

	var throttled *ThrottledError
	require.ErrorAs(t, err, &throttled)
	assert.Equal(t, time.Hour, throttled.RetryAfter)
}

func TestFetchPageAuthFailureNoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := testClient(srv, Options{})
	_, err := c.FetchPage(context.Background(), types.PartitionFoundation, 1)

	var auth *FatalAuthError
	require.ErrorAs(t, err, &auth)
	assert.Equal(t, http.StatusForbidden, auth.StatusCode)
	assert.Equal(t, 1, calls, "credential failures must not be retried")
}

func TestFetchPageTransientFailureBounded(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv, Options{})
	_, err := c.FetchPage(context.Background(), types.PartitionFoundation, 1)

	var transient *TransientNetworkError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, 3, transient.Attempts)
	assert.Equal(t, 3, calls)
}

func TestFetchPageTransientThenSuccess(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"totalHits": 1, "totalPages": 1, "foods": [{"fdcId": 9, "description": "Rice", "dataType": "SR Legacy"}]}`))
	}))
	defer srv.Close()

	c := testClient(srv, Options{})
	page, err := c.FetchPage(context.Background(), types.PartitionSRLegacy, 1)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, 3, calls)
}

func TestCountUsesMinimalPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("pageSize"))
		_, _ = w.Write([]byte(`{"totalHits": 41523, "totalPages": 41523, "foods": [{"fdcId": 1, "description": "x", "dataType": "Branded"}]}`))
	}))
	defer srv.Close()

	c := testClient(srv, Options{PageSize: 200})
	n, err := c.Count(context.Background(), types.PartitionBranded)
	require.NoError(t, err)
	assert.Equal(t, 41523, n)
}

func TestIntervalFromRequestsPerHour(t *testing.T) {
	tests := []struct {
		name            string
		requestsPerHour int
		expected        time.Duration
	}{
		{"demo tier", 30, 2 * time.Minute},
		{"standard tier", 900, 4 * time.Second},
		// ceil(3_600_000 / 7) = 514286 ms
		{"non-exact division rounds up", 7, 514286 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(Options{APIKey: "k", RequestsPerHour: tt.requestsPerHour})
			assert.Equal(t, tt.expected, c.Interval())
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected time.Duration
	}{
		{"seconds value", "120", 2 * time.Minute},
		{"missing header defaults", "", time.Hour},
		{"malformed header defaults", "soon", time.Hour},
		{"negative value defaults", "-5", time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseRetryAfter(tt.header))
		})
	}
}

func TestSharedPacingBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalHits": 0, "totalPages": 0, "foods": []}`))
	}))
	defer srv.Close()

	// 120_000 req/h -> 30ms interval. Three sequential requests must take at
	// least two full intervals.
	c := testClient(srv, Options{RequestsPerHour: 120_000})
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.FetchPage(context.Background(), types.PartitionFoundation, i+1)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestFetchPageHonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv, Options{ThrottleCeiling: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.FetchPage(ctx, types.PartitionFoundation, 1)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not honor cancellation during throttle sleep")
	}
}
