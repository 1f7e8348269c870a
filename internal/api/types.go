// Package api provides the HTTP client and types for the newsdata.io news API.
package api

import "context"

// Article is one news item returned by the API.
type Article struct {
	ArticleID   string   `json:"article_id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Link        string   `json:"link"`
	PubDate     string   `json:"pubDate"`
	SourceID    string   `json:"source_id,omitempty"`
	Category    []string `json:"category,omitempty"`
	Language    string   `json:"language,omitempty"`
}

// Query selects articles from the /news endpoint.
type Query struct {
	Q        string
	Language string
	Category string
	MaxPages int
}

// Params converts the query into request parameters.
func (q Query) Params() map[string]string {
	params := make(map[string]string)
	if q.Q != "" {
		params["q"] = q.Q
	}
	if q.Language != "" {
		params["language"] = q.Language
	}
	if q.Category != "" {
		params["category"] = q.Category
	}
	return params
}

// Transport is the interface for making API requests.
type Transport interface {
	Request(ctx context.Context, endpoint string, params map[string]string) (map[string]interface{}, error)
}
