package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/colthorp/headlines-go/internal/analyze"
	"github.com/colthorp/headlines-go/internal/cache"
	"github.com/colthorp/headlines-go/internal/core"
)

// MCP Protocol types
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type MCPToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type MCPInitializeResult struct {
	ProtocolVersion string        `json:"protocolVersion"`
	ServerInfo      MCPServerInfo `json:"serverInfo"`
	Capabilities    interface{}   `json:"capabilities"`
}

// SmartNewsParams are the parameters for the smart_news tool
type SmartNewsParams struct {
	Force       bool     `json:"force"`
	MaxAgeHours *float64 `json:"max_age_hours"`
}

// AnalyzeArticleParams are the parameters for the analyze_article tool
type AnalyzeArticleParams struct {
	URL string `json:"url"`
}

// mcpServer answers JSON-RPC requests read line by line.
type mcpServer struct {
	resolver    *cache.Resolver
	analyzer    *analyze.Analyzer
	maxAgeHours float64
	out         io.Writer
}

func newMCPServer(resolver *cache.Resolver, analyzer *analyze.Analyzer, maxAgeHours float64, out io.Writer) *mcpServer {
	return &mcpServer{
		resolver:    resolver,
		analyzer:    analyzer,
		maxAgeHours: maxAgeHours,
		out:         out,
	}
}

// run serves requests from in until EOF or ctx is done.
func (s *mcpServer) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	// Increase buffer size for large messages
	const maxCapacity = 10 * 1024 * 1024 // 10MB
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxCapacity)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			// For parse errors, we can't know the ID, so we log to stderr
			// but don't send a response (which would have id: null and confuse clients)
			fmt.Fprintf(os.Stderr, "[MCP] Parse error: %v\n", err)
			continue
		}

		s.handleRequest(ctx, &req)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

func (s *mcpServer) handleRequest(ctx context.Context, req *MCPRequest) {
	switch req.Method {
	case "initialize":
		s.handleInitialize(req)
	case "initialized", "notifications/initialized":
		// Notifications don't get responses
		return
	case "tools/list":
		s.handleToolsList(req)
	case "tools/call":
		s.handleToolsCall(ctx, req)
	default:
		// Notifications (no ID) are silently ignored
		if req.ID != nil {
			s.sendError(req.ID, -32601, "Method not found", req.Method)
		}
	}
}

func (s *mcpServer) handleInitialize(req *MCPRequest) {
	s.sendResponse(req.ID, MCPInitializeResult{
		ProtocolVersion: "2024-11-05",
		ServerInfo: MCPServerInfo{
			Name:    "headlines",
			Version: core.Version,
		},
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{},
		},
	})
}

func (s *mcpServer) handleToolsList(req *MCPRequest) {
	tools := []MCPToolInfo{
		{
			Name:        "smart_news",
			Description: "Get today's positive technology headlines from the snapshot cache.\n\nServes today's snapshot if it is fresh, otherwise runs a refresh and falls back to the latest snapshot.\n\nArgs:\n    force: Refresh before serving\n    max_age_hours: Hours after which today's snapshot is stale\n\nReturns:\n    Dictionary with the news records and cache_info describing where they came from",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"force": map[string]interface{}{
						"type":        "boolean",
						"description": "Refresh before serving",
						"default":     false,
					},
					"max_age_hours": map[string]interface{}{
						"type":        "number",
						"description": "Hours after which today's snapshot is stale",
						"default":     s.maxAgeHours,
					},
				},
			},
		},
		{
			Name:        "analyze_article",
			Description: "Summarize an article and score the sentiment of the summary.\n\nArgs:\n    url: Article URL\n\nReturns:\n    Dictionary with summary and sentiment (POSITIVE, NEGATIVE or NEUTRAL)",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"url": map[string]interface{}{
						"type":        "string",
						"description": "Article URL",
					},
				},
				"required": []string{"url"},
			},
		},
	}

	s.sendResponse(req.ID, map[string]interface{}{"tools": tools})
}

func (s *mcpServer) handleToolsCall(ctx context.Context, req *MCPRequest) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, -32602, "Invalid params", err.Error())
		return
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	switch params.Name {
	case "smart_news":
		s.handleSmartNews(ctx, req.ID, params.Arguments)
	case "analyze_article":
		s.handleAnalyzeArticle(ctx, req.ID, params.Arguments)
	default:
		s.sendError(req.ID, -32602, "Unknown tool", params.Name)
	}
}

func (s *mcpServer) handleSmartNews(ctx context.Context, id interface{}, argsJSON json.RawMessage) {
	var args SmartNewsParams
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		s.sendToolError(id, fmt.Sprintf("Invalid arguments: %v", err))
		return
	}

	req := cache.Request{Force: args.Force, MaxAgeHours: s.maxAgeHours}
	if args.MaxAgeHours != nil {
		req.MaxAgeHours = *args.MaxAgeHours
	}

	d, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		s.sendToolError(id, fmt.Sprintf("Failed to get news: %v", err))
		return
	}
	s.sendToolResult(id, d.Response())
}

func (s *mcpServer) handleAnalyzeArticle(ctx context.Context, id interface{}, argsJSON json.RawMessage) {
	var args AnalyzeArticleParams
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		s.sendToolError(id, fmt.Sprintf("Invalid arguments: %v", err))
		return
	}

	res, err := s.analyzer.Analyze(ctx, args.URL)
	if err != nil {
		s.sendToolError(id, fmt.Sprintf("Failed to analyze article: %v", err))
		return
	}
	s.sendToolResult(id, res)
}

func (s *mcpServer) write(resp MCPResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[MCP] Encode error: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, string(data))
}

func (s *mcpServer) sendResponse(id interface{}, result interface{}) {
	s.write(MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

func (s *mcpServer) sendError(id interface{}, code int, message, data string) {
	s.write(MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	})
}

func (s *mcpServer) sendToolResult(id interface{}, result interface{}) {
	s.sendResponse(id, map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": mustMarshal(result),
			},
		},
	})
}

func (s *mcpServer) sendToolError(id interface{}, message string) {
	s.sendResponse(id, map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": message,
			},
		},
		"isError": true,
	})
}

func mustMarshal(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(data)
}
