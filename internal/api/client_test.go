package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClientRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/news" {
			t.Errorf("path = %s, want /news", r.URL.Path)
		}
		if r.URL.Query().Get("apikey") != "k123" || r.URL.Query().Get("q") != "solar" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","totalResults":1,"results":[{"title":"Solar"}],"nextPage":"abc"}`))
	}))
	defer srv.Close()

	client := NewClientWithBase("k123", srv.URL, srv.Client(), false)
	result, err := client.Request(context.Background(), "news", map[string]string{"q": "solar"})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if result["nextPage"] != "abc" {
		t.Errorf("nextPage = %v", result["nextPage"])
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"success","results":[]}`))
	}))
	defer srv.Close()

	client := NewClientWithBase("k", srv.URL, srv.Client(), false)
	client.SetBackoff(time.Millisecond)
	if _, err := client.Request(context.Background(), "news", nil); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestClientNonRetryableError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","results":{"message":"API key invalid","code":"Unauthorized"}}`))
	}))
	defer srv.Close()

	client := NewClientWithBase("bad", srv.URL, srv.Client(), false)
	_, err := client.Request(context.Background(), "news", nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 401 || apiErr.Message != "API key invalid" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if calls != 1 {
		t.Errorf("Expected 1 attempt, got %d", calls)
	}
}

func TestClientMissingKey(t *testing.T) {
	t.Setenv("NEWS_API_KEY", "")
	client := NewClientWithBase("", "http://127.0.0.1:0", nil, false)
	if _, err := client.Request(context.Background(), "news", nil); err == nil {
		t.Error("Expected error without API key")
	}
}

func TestClientCanceledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClientWithBase("k", srv.URL, srv.Client(), false)
	start := time.Now()
	_, err := client.Request(ctx, "news", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Retry-After wait ignored cancellation")
	}
}
