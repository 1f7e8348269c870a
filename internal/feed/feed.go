// Package feed pulls articles from RSS and Atom sources.
package feed

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mrz1836/go-sanitize"
	"golang.org/x/sync/errgroup"

	"github.com/colthorp/headlines-go/internal/api"
	"github.com/colthorp/headlines-go/internal/config"
	"github.com/colthorp/headlines-go/internal/core"
)

const descriptionMaxChars = 300

type Fetcher interface {
	Fetch(ctx context.Context, source config.Source) ([]api.Article, error)
}

type RSSFetcher struct {
	parser *gofeed.Parser
	maxAge time.Duration
	now    func() time.Time
}

// NewRSSFetcher returns a fetcher that drops items older than maxAge (0 keeps all).
func NewRSSFetcher(maxAge time.Duration) *RSSFetcher {
	return &RSSFetcher{parser: gofeed.NewParser(), maxAge: maxAge, now: time.Now}
}

func (f *RSSFetcher) Fetch(ctx context.Context, source config.Source) ([]api.Article, error) {
	feed, err := f.parser.ParseURLWithContext(source.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", source.Name, err)
	}
	return f.articles(feed, source), nil
}

// Parse reads a feed document from r.
func (f *RSSFetcher) Parse(r io.Reader, source config.Source) ([]api.Article, error) {
	feed, err := f.parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", source.Name, err)
	}
	return f.articles(feed, source), nil
}

func (f *RSSFetcher) articles(feed *gofeed.Feed, source config.Source) []api.Article {
	now := f.now()
	articles := make([]api.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}

		var pub *time.Time
		if item.PublishedParsed != nil {
			pub = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pub = item.UpdatedParsed
		}
		if f.maxAge > 0 && pub != nil && pub.Before(now.Add(-f.maxAge)) {
			continue
		}

		desc := item.Description
		if desc == "" {
			desc = item.Content
		}

		pubDate := item.Published
		if pub != nil {
			pubDate = pub.Format(core.DatetimeFmt)
		}

		articles = append(articles, api.Article{
			Title:       CleanText(item.Title),
			Description: core.Truncate(CleanText(desc), descriptionMaxChars),
			Link:        item.Link,
			PubDate:     pubDate,
			SourceID:    source.Name,
		})
	}
	return articles
}

// CleanText strips markup and collapses whitespace.
func CleanText(s string) string {
	return strings.Join(strings.Fields(sanitize.HTML(s)), " ")
}

type FetchResult struct {
	Articles []api.Article
	Errors   []error
}

// FetchAll fetches every source with at most limit concurrent requests.
// A failing source is recorded in Errors and does not stop the others.
// Articles keep source order.
func FetchAll(ctx context.Context, fetcher Fetcher, sources []config.Source, limit int) FetchResult {
	if limit <= 0 {
		limit = 4
	}

	perSource := make([][]api.Article, len(sources))
	var (
		mu     sync.Mutex
		result FetchResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, src := range sources {
		g.Go(func() error {
			articles, err := fetcher.Fetch(gctx, src)
			if err != nil {
				mu.Lock()
				result.Errors = append(result.Errors, err)
				mu.Unlock()
				return nil
			}
			perSource[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	for _, articles := range perSource {
		result.Articles = append(result.Articles, articles...)
	}
	return result
}
