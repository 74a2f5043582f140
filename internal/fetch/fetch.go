package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"pokeflow/internal/model"
)

const maxBackoff = 30 * time.Second

// Client fetches JSON records from one API. All requests are plain GETs;
// the target API is public and unauthenticated.
type Client struct {
	BaseURL     string
	ResultsPath string // dot path to the record array inside a page envelope
	NextPath    string // dot path to the next-page link
	RetryCount  int
	PageLimit   int // 0 = unlimited
	Prefetch    int // concurrent workers for id-range fetches

	HTTPClient *http.Client

	// initial retry delay, shortened in tests
	backoff time.Duration
}

// NewClient builds a client for the given source and fetch settings.
func NewClient(src model.Source, f model.Fetch) *Client {
	timeout := time.Duration(f.TimeoutSeconds * float64(time.Second))
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:     src.BaseURL,
		ResultsPath: src.ResultsPath,
		NextPath:    src.NextPath,
		RetryCount:  f.RetryCount,
		PageLimit:   f.PageLimit,
		Prefetch:    f.Prefetch,
		HTTPClient:  &http.Client{Timeout: timeout},
		backoff:     time.Second,
	}
}

// FetchOne issues a single GET and expects one JSON object back.
func (c *Client) FetchOne(ctx context.Context, endpoint string, params map[string]string) (map[string]interface{}, error) {
	pageURL := c.buildURL(endpoint, params)
	raw, err := c.getJSON(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	rec, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &DecodeError{Endpoint: pageURL, Err: fmt.Errorf("expected JSON object, got %T", raw)}
	}
	return rec, nil
}

// FetchAll fetches every page of an endpoint and returns the records in
// page order, then within-page order. Pagination follows the next-page
// link until exhausted or PageLimit pages have been read. One page is in
// flight at a time to respect API rate limits.
func (c *Client) FetchAll(ctx context.Context, endpoint string, params map[string]string) ([]map[string]interface{}, error) {
	pageURL := c.buildURL(endpoint, params)
	fmt.Printf("🌐 Starting fetch: %s\n", pageURL)

	var records []map[string]interface{}
	pages := 0
	for pageURL != "" {
		if c.PageLimit > 0 && pages >= c.PageLimit {
			fmt.Printf("🌐 Page limit %d reached, stopping pagination\n", c.PageLimit)
			break
		}

		raw, err := c.getJSON(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		pageRecords, next, err := c.parsePage(raw, pageURL)
		if err != nil {
			return nil, err
		}
		records = append(records, pageRecords...)
		pages++
		fmt.Printf("📄 Page %d: %d records (%d total)\n", pages, len(pageRecords), len(records))
		pageURL = next
	}

	fmt.Printf("✅ Fetch done: %d records from %d pages\n", len(records), pages)
	return records, nil
}

// FetchRange fetches endpoint/{id} for every id in [from, to] and returns
// one record per id, ordered by id. When Prefetch > 1, up to that many
// requests run concurrently; result order still matches id order.
func (c *Client) FetchRange(ctx context.Context, endpoint string, from, to int) ([]map[string]interface{}, error) {
	if to < from {
		return nil, fmt.Errorf("fetch: invalid id range %d..%d", from, to)
	}

	n := to - from + 1
	workers := c.Prefetch
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	fmt.Printf("🌐 Fetching ids %d..%d from %s (%d workers)\n", from, to, endpoint, workers)

	records := make([]map[string]interface{}, n)
	errs := make([]error, n)
	ids := make(chan int, n)
	for id := from; id <= to; id++ {
		ids <- id
	}
	close(ids)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for id := range ids {
				select {
				case <-ctx.Done():
					return
				default:
				}
				rec, err := c.FetchOne(ctx, fmt.Sprintf("%s/%d", strings.TrimRight(endpoint, "/"), id), nil)
				records[id-from] = rec
				errs[id-from] = err
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Err: err}
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	fmt.Printf("✅ Fetch done: %d records\n", n)
	return records, nil
}

// parsePage extracts the records and the next-page link from one response
// body. Supported shapes: a bare array, a paginated envelope, or a single
// object (treated as one record).
func (c *Client) parsePage(raw interface{}, pageURL string) ([]map[string]interface{}, string, error) {
	switch data := raw.(type) {
	case []interface{}:
		records, err := castRecords(data, pageURL)
		return records, "", err
	case map[string]interface{}:
		resultsPath := c.ResultsPath
		if resultsPath == "" {
			resultsPath = "results"
		}
		if results, ok := lookupPath(data, resultsPath); ok {
			arr, isArr := results.([]interface{})
			if !isArr {
				return nil, "", &DecodeError{Endpoint: pageURL, Err: fmt.Errorf("%s is not an array", resultsPath)}
			}
			records, err := castRecords(arr, pageURL)
			if err != nil {
				return nil, "", err
			}
			return records, c.nextLink(data), nil
		}
		// No envelope: the object is the record.
		return []map[string]interface{}{data}, "", nil
	default:
		return nil, "", &DecodeError{Endpoint: pageURL, Err: fmt.Errorf("unexpected JSON structure %T", raw)}
	}
}

func (c *Client) nextLink(page map[string]interface{}) string {
	nextPath := c.NextPath
	if nextPath == "" {
		nextPath = "next"
	}
	if v, ok := lookupPath(page, nextPath); ok {
		if s, isStr := v.(string); isStr {
			return s
		}
	}
	return ""
}

func castRecords(items []interface{}, pageURL string) ([]map[string]interface{}, error) {
	records := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, &DecodeError{Endpoint: pageURL, Err: fmt.Errorf("record is %T, not an object", item)}
		}
		records = append(records, m)
	}
	return records, nil
}

// lookupPath resolves a dot-joined path inside nested JSON objects.
func lookupPath(m map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = m
	for _, part := range parts {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// getJSON issues one GET with retry and backoff. Connection failures,
// timeouts and 5xx responses are retried up to RetryCount times; 4xx and
// malformed bodies fail immediately.
func (c *Client) getJSON(ctx context.Context, rawURL string) (interface{}, error) {
	var lastErr error
	for attempt := 0; attempt <= c.RetryCount; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.initialBackoff()) * math.Pow(2, float64(attempt-1)))
			if delay > maxBackoff {
				delay = maxBackoff
			}
			fmt.Printf("🔄 Retry %d/%d for %s in %v\n", attempt, c.RetryCount, rawURL, delay)
			select {
			case <-ctx.Done():
				return nil, &NetworkError{Endpoint: rawURL, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, &NetworkError{Endpoint: rawURL, Err: err}
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = &NetworkError{Endpoint: rawURL, Err: err}
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = &HTTPStatusError{Endpoint: rawURL, Status: resp.StatusCode}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, &HTTPStatusError{Endpoint: rawURL, Status: resp.StatusCode}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = &NetworkError{Endpoint: rawURL, Err: err}
			continue
		}

		var raw interface{}
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, &DecodeError{Endpoint: rawURL, Err: err}
		}
		return raw, nil
	}
	return nil, lastErr
}

func (c *Client) initialBackoff() time.Duration {
	if c.backoff > 0 {
		return c.backoff
	}
	return time.Second
}

// SetBackoff overrides the initial retry delay. Used by tests.
func (c *Client) SetBackoff(d time.Duration) { c.backoff = d }

func (c *Client) buildURL(endpoint string, params map[string]string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	path := strings.Trim(endpoint, "/")
	full := base + "/" + path
	if len(params) == 0 {
		return full
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return full + "?" + q.Encode()
}
