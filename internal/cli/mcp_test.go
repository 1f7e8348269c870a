package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/colthorp/headlines-go/internal/analyze"
	"github.com/colthorp/headlines-go/internal/cache"
	"github.com/colthorp/headlines-go/internal/core"
)

var testNow = time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC)

func newTestMCP(t *testing.T, store cache.Store, trig cache.Trigger) (*mcpServer, *bytes.Buffer) {
	t.Helper()
	resolver := cache.NewResolver(store, trig,
		cache.WithClock(func() time.Time { return testNow }),
		cache.WithLocation(time.UTC),
		cache.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	analyzer := &analyze.Analyzer{
		Summarize: func(ctx context.Context, url string) (string, error) { return "A good day at " + url, nil },
		Sentiment: analyze.LexiconSentiment,
	}
	var out bytes.Buffer
	return newMCPServer(resolver, analyzer, core.DefaultMaxAgeHours, &out), &out
}

// responses runs input through the server and decodes each output line.
func responses(t *testing.T, s *mcpServer, out *bytes.Buffer, input string) []map[string]interface{} {
	t.Helper()
	if err := s.run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("run: %v", err)
	}
	var resps []map[string]interface{}
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("Invalid response line %q: %v", scanner.Text(), err)
		}
		resps = append(resps, m)
	}
	return resps
}

// toolText returns the text content of a tools/call result.
func toolText(t *testing.T, resp map[string]interface{}) (string, bool) {
	t.Helper()
	result, ok := resp["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("No result in %v", resp)
	}
	content := result["content"].([]interface{})
	text := content[0].(map[string]interface{})["text"].(string)
	isErr, _ := result["isError"].(bool)
	return text, isErr
}

func TestMCPInitializeAndList(t *testing.T) {
	s, out := newTestMCP(t, cache.NewMemoryStore(), nil)
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`not json`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","method":"unknown/notification"}`,
	}, "\n")

	resps := responses(t, s, out, input)
	if len(resps) != 3 {
		t.Fatalf("Expected 3 responses, got %d: %v", len(resps), resps)
	}

	info := resps[0]["result"].(map[string]interface{})["serverInfo"].(map[string]interface{})
	if info["name"] != "headlines" || info["version"] != core.Version {
		t.Errorf("serverInfo = %v", info)
	}

	tools := resps[1]["result"].(map[string]interface{})["tools"].([]interface{})
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.(map[string]interface{})["name"].(string))
	}
	if strings.Join(names, ",") != "smart_news,analyze_article" {
		t.Errorf("tools = %v", names)
	}

	errObj, ok := resps[2]["error"].(map[string]interface{})
	if !ok || errObj["code"].(float64) != -32601 {
		t.Errorf("Expected method not found, got %v", resps[2])
	}
}

func TestMCPSmartNews(t *testing.T) {
	store := cache.NewMemoryStore()
	d, _ := core.ParseDate("2025-01-02")
	store.Seed(d, testNow.Add(-26*time.Hour), cache.Record{"title": "Robots plant trees", "link": "https://example.com/r"})
	calls := 0
	trig := cache.TriggerFunc(func(context.Context) cache.Outcome {
		calls++
		return cache.Outcome{OK: false, Message: "offline"}
	})

	s, out := newTestMCP(t, store, trig)
	resps := responses(t, s, out,
		`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"smart_news","arguments":{"max_age_hours":2}}}`)
	if len(resps) != 1 {
		t.Fatalf("Expected 1 response, got %d", len(resps))
	}

	text, isErr := toolText(t, resps[0])
	if isErr {
		t.Fatalf("Unexpected tool error: %s", text)
	}
	var body cache.Response
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		t.Fatalf("Tool text is not a response: %v", err)
	}
	if body.CacheInfo.Source != cache.SourceLatestAvailable {
		t.Errorf("source = %s, want %s", body.CacheInfo.Source, cache.SourceLatestAvailable)
	}
	if len(body.News) != 1 || body.News[0]["title"] != "Robots plant trees" {
		t.Errorf("news = %v", body.News)
	}
	if calls != 1 {
		t.Errorf("Trigger called %d times, want 1", calls)
	}
}

func TestMCPSmartNewsStorageError(t *testing.T) {
	store := cache.NewMemoryStore()
	store.RemoveRoot()
	s, out := newTestMCP(t, store, nil)

	resps := responses(t, s, out,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"smart_news"}}`)
	text, isErr := toolText(t, resps[0])
	if !isErr || !strings.Contains(text, "storage unavailable") {
		t.Errorf("Expected storage error, got %q (isError=%v)", text, isErr)
	}
}

func TestMCPAnalyzeArticle(t *testing.T) {
	s, out := newTestMCP(t, cache.NewMemoryStore(), nil)
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"analyze_article","arguments":{"url":"https://example.com/a"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"analyze_article","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"delete_news","arguments":{}}}`,
	}, "\n")

	resps := responses(t, s, out, input)
	if len(resps) != 3 {
		t.Fatalf("Expected 3 responses, got %d", len(resps))
	}

	text, isErr := toolText(t, resps[0])
	var res analyze.Result
	if isErr || json.Unmarshal([]byte(text), &res) != nil {
		t.Fatalf("analyze result = %q", text)
	}
	if res.Summary != "A good day at https://example.com/a" || res.Sentiment != analyze.Positive {
		t.Errorf("result = %+v", res)
	}

	text, isErr = toolText(t, resps[1])
	if !isErr || !strings.Contains(text, "URL is required") {
		t.Errorf("missing url = %q (isError=%v)", text, isErr)
	}

	if errObj, ok := resps[2]["error"].(map[string]interface{}); !ok || errObj["message"] != "Unknown tool" {
		t.Errorf("Expected unknown tool error, got %v", resps[2])
	}
}

func TestSmartNewsParamsDefaults(t *testing.T) {
	var args SmartNewsParams
	if err := json.Unmarshal([]byte(`{}`), &args); err != nil {
		t.Fatal(err)
	}
	if args.Force || args.MaxAgeHours != nil {
		t.Errorf("defaults = %+v", args)
	}
}
