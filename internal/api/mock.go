package api

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

// InMemoryTransport is a lightweight simulation of the newsdata.io /news endpoint.
// Only implements filtering and nextPage paging sufficient for unit tests.
type InMemoryTransport struct {
	mu         sync.Mutex
	articles   []map[string]interface{}
	PageSize   int
	RequestLog []RequestLogEntry
	Verbose    bool
}

// RequestLogEntry records a request made to the transport.
type RequestLogEntry struct {
	Endpoint string
	Params   map[string]string
}

// NewInMemoryTransport creates a new in-memory transport for testing.
func NewInMemoryTransport(verbose bool) *InMemoryTransport {
	return &InMemoryTransport{
		articles:   make([]map[string]interface{}, 0),
		PageSize:   10,
		RequestLog: make([]RequestLogEntry, 0),
		Verbose:    verbose,
	}
}

// Seed adds one or more article objects to the in-memory store.
func (t *InMemoryTransport) Seed(articles ...map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.articles = append(t.articles, articles...)
}

// RequestsMade returns the number of requests made to this transport.
func (t *InMemoryTransport) RequestsMade() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.RequestLog)
}

// Reset clears all stored articles and recorded requests.
func (t *InMemoryTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.articles = make([]map[string]interface{}, 0)
	t.RequestLog = make([]RequestLogEntry, 0)
}

// Request simulates a newsdata.io request (/news only).
func (t *InMemoryTransport) Request(ctx context.Context, endpoint string, params map[string]string) (map[string]interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.RequestLog = append(t.RequestLog, RequestLogEntry{
		Endpoint: endpoint,
		Params:   copyParams(params),
	})

	if endpoint != "news" {
		return map[string]interface{}{"status": "success", "results": []interface{}{}}, nil
	}

	subset := make([]map[string]interface{}, 0, len(t.articles))
	for _, a := range t.articles {
		if lang := params["language"]; lang != "" && str(a["language"]) != "" && str(a["language"]) != lang {
			continue
		}
		if q := strings.ToLower(params["q"]); q != "" {
			text := strings.ToLower(str(a["title"]) + " " + str(a["description"]))
			if !containsAnyWord(text, q) {
				continue
			}
		}
		subset = append(subset, a)
	}

	start := 0
	if page := params["page"]; page != "" {
		if idx, err := strconv.Atoi(page); err == nil {
			start = idx
		}
	}
	if start > len(subset) {
		start = len(subset)
	}
	end := start + t.PageSize
	if end > len(subset) {
		end = len(subset)
	}

	result := map[string]interface{}{
		"status":       "success",
		"totalResults": len(subset),
		"results":      toInterfaceSlice(subset[start:end]),
	}
	if end < len(subset) {
		result["nextPage"] = strconv.Itoa(end)
	}
	return result, nil
}

// containsAnyWord matches newsdata's loose q semantics: any query word.
func containsAnyWord(text, q string) bool {
	for _, w := range strings.Fields(q) {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// copyParams creates a copy of the params map.
func copyParams(params map[string]string) map[string]string {
	result := make(map[string]string)
	for k, v := range params {
		result[k] = v
	}
	return result
}

// toInterfaceSlice converts a slice of maps to a slice of interfaces.
func toInterfaceSlice(items []map[string]interface{}) []interface{} {
	result := make([]interface{}, len(items))
	for i, item := range items {
		result[i] = item
	}
	return result
}

// MockTransport is an in-memory fake suitable for deterministic unit tests.
// Pages are served in order; page N is selected by the "page" parameter.
type MockTransport struct {
	Pages      []map[string]interface{}
	Errors     map[int]error
	RequestLog []RequestLogEntry
}

// NewMockTransport creates a new mock transport with the given pages.
func NewMockTransport(pages ...map[string]interface{}) *MockTransport {
	return &MockTransport{
		Pages:      pages,
		Errors:     make(map[int]error),
		RequestLog: make([]RequestLogEntry, 0),
	}
}

// Request simulates an API request using fixtures.
func (t *MockTransport) Request(ctx context.Context, endpoint string, params map[string]string) (map[string]interface{}, error) {
	t.RequestLog = append(t.RequestLog, RequestLogEntry{
		Endpoint: endpoint,
		Params:   copyParams(params),
	})

	idx := 0
	if page := params["page"]; page != "" {
		if parsed, err := strconv.Atoi(page); err == nil {
			idx = parsed
		}
	}
	if err, ok := t.Errors[idx]; ok {
		return nil, err
	}
	if idx < len(t.Pages) {
		return t.Pages[idx], nil
	}
	return map[string]interface{}{"status": "success", "results": []interface{}{}}, nil
}
