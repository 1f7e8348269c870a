package api

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

	"github.com/colthorp/headlines-go/internal/core"
)

// APIError is returned when the news API returns an error response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Client is the HTTP wrapper around the newsdata.io REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	verbose    bool
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a new API client. An empty apiKey falls back to NEWS_API_KEY.
func NewClient(apiKey string, verbose bool) *Client {
	return NewClientWithBase(apiKey, core.NewsAPIBaseURL, nil, verbose)
}

// NewClientWithBase creates a client against baseURL; a nil httpClient gets a 60s timeout.
func NewClientWithBase(apiKey, baseURL string, httpClient *http.Client, verbose bool) *Client {
	if apiKey == "" {
		apiKey = core.GetAPIKey()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		verbose:    verbose,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// SetBackoff changes the base retry delay (for testing).
func (c *Client) SetBackoff(d time.Duration) {
	c.backoff = d
}

// log writes a message to stderr if verbose mode is enabled.
func (c *Client) log(msg string) {
	core.Eprint(fmt.Sprintf("[API] %s", msg), c.verbose)
}

// Request performs a GET request and decodes the JSON payload.
// Retries automatically on HTTP 5xx or 429 responses with exponential back-off.
func (c *Client) Request(ctx context.Context, endpoint string, params map[string]string) (map[string]interface{}, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("missing API key: set %s or api.key in config", core.APIKeyEnvVar)
	}

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	logURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, q.Encode())
	q.Set("apikey", c.apiKey)
	urlStr := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, q.Encode())

	c.log(fmt.Sprintf("GET %s", logURL))

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		result, retryAfter, err := c.do(ctx, urlStr)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if retryAfter < 0 || attempt == c.maxRetries {
			return nil, err
		}

		wait := c.backoff * time.Duration(1<<(attempt-1))
		if retryAfter > 0 {
			wait = retryAfter
		}
		c.log(fmt.Sprintf("Attempt %d failed (%v); retrying in %v...", attempt, err, wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// do performs one attempt. retryAfter is negative when the error is not
// retryable, zero for the default back-off, positive to honor Retry-After.
func (c *Client) do(ctx context.Context, urlStr string) (map[string]interface{}, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, -1, ctx.Err()
		}
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		var wait time.Duration
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		return nil, wait, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	if resp.StatusCode >= 400 {
		return nil, -1, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, -1, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if status, _ := result["status"].(string); status == "error" {
		return nil, -1, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	count := 0
	if results, ok := result["results"].([]interface{}); ok {
		count = len(results)
	}
	nextPage, _ := result["nextPage"].(string)
	pageInfo := ", no more pages"
	if nextPage != "" {
		pageInfo = fmt.Sprintf(", nextPage: %s", nextPage)
	}
	c.log(fmt.Sprintf("Response: HTTP %d, %d articles returned%s", resp.StatusCode, count, pageInfo))

	return result, 0, nil
}

// errorMessage extracts results.message from an error body, or returns it raw.
func errorMessage(body []byte) string {
	var payload struct {
		Results struct {
			Message string `json:"message"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Results.Message != "" {
		return payload.Results.Message
	}
	return strings.TrimSpace(string(body))
}

// IsVerbose returns whether verbose logging is enabled.
func (c *Client) IsVerbose() bool {
	return c.verbose
}
