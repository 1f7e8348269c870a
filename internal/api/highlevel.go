package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/colthorp/headlines-go/internal/core"
)

// NewsAPI provides a typed convenience layer over the news REST API.
type NewsAPI struct {
	transport Transport
	verbose   bool
	keywords  []string
}

// NewNewsAPI creates a new high-level API client.
func NewNewsAPI(transport Transport) *NewsAPI {
	if transport == nil {
		transport = NewClient("", false)
	}
	api := &NewsAPI{
		transport: transport,
		keywords:  core.NegativeKeywords,
	}
	if c, ok := transport.(*Client); ok {
		api.verbose = c.IsVerbose()
	}
	return api
}

// SetNegativeKeywords replaces the keyword list used by FetchPositiveNews.
func (api *NewsAPI) SetNegativeKeywords(keywords []string) {
	api.keywords = keywords
}

func (api *NewsAPI) log(msg string) {
	core.Eprint(fmt.Sprintf("[API] %s", msg), api.verbose)
}

// Paginate collects articles across up to maxPages pages of /news.
// Pages are linked by the "nextPage" token; maxPages <= 0 means DefaultMaxPages.
func (api *NewsAPI) Paginate(ctx context.Context, params map[string]string, maxPages int) ([]Article, error) {
	if maxPages <= 0 {
		maxPages = core.DefaultMaxPages
	}

	currentParams := make(map[string]string, len(params)+1)
	for k, v := range params {
		currentParams[k] = v
	}

	articles := make([]Article, 0)
	page := ""
	for pages := 1; pages <= maxPages; pages++ {
		if page != "" {
			currentParams["page"] = page
		}

		data, err := api.transport.Request(ctx, "news", currentParams)
		if err != nil {
			if len(articles) > 0 {
				api.log(fmt.Sprintf("Pagination stopped after %d pages: %v", pages-1, err))
				return articles, nil
			}
			return nil, err
		}

		results, _ := data["results"].([]interface{})
		for _, item := range results {
			if m, ok := item.(map[string]interface{}); ok {
				articles = append(articles, articleFromMap(m))
			}
		}
		api.log(fmt.Sprintf("Fetched page %d: %d items, total so far %d", pages, len(results), len(articles)))

		page, _ = data["nextPage"].(string)
		if page == "" || len(results) == 0 {
			break
		}
	}
	return articles, nil
}

// FetchPositiveNews fetches articles for q and drops any that mention a negative keyword.
func (api *NewsAPI) FetchPositiveNews(ctx context.Context, q Query) ([]Article, error) {
	articles, err := api.Paginate(ctx, q.Params(), q.MaxPages)
	if err != nil {
		return nil, err
	}
	kept := FilterNegative(articles, api.keywords)
	api.log(fmt.Sprintf("Kept %d of %d articles after keyword filter", len(kept), len(articles)))
	return kept, nil
}

// FilterNegative drops articles whose lower-cased title and description
// contain any of keywords.
func FilterNegative(articles []Article, keywords []string) []Article {
	kept := make([]Article, 0, len(articles))
	for _, a := range articles {
		if !IsNegative(a.Title+" "+a.Description, keywords) {
			kept = append(kept, a)
		}
	}
	return kept
}

// IsNegative reports whether text contains any keyword, case-insensitively.
func IsNegative(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func articleFromMap(m map[string]interface{}) Article {
	a := Article{
		ArticleID:   str(m["article_id"]),
		Title:       str(m["title"]),
		Description: str(m["description"]),
		Link:        str(m["link"]),
		PubDate:     str(m["pubDate"]),
		SourceID:    str(m["source_id"]),
		Language:    str(m["language"]),
	}
	switch cat := m["category"].(type) {
	case []interface{}:
		for _, c := range cat {
			if s := str(c); s != "" {
				a.Category = append(a.Category, s)
			}
		}
	case []string:
		a.Category = append(a.Category, cat...)
	case string:
		a.Category = []string{cat}
	}
	return a
}

// str returns v as a string; JSON nulls and non-strings become "".
func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
