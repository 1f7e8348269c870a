// Package fetch is the refresh action: it pulls positive articles from the
// news API and any enabled feeds and writes today's snapshot.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/colthorp/headlines-go/internal/analyze"
	"github.com/colthorp/headlines-go/internal/api"
	"github.com/colthorp/headlines-go/internal/cache"
	"github.com/colthorp/headlines-go/internal/config"
	"github.com/colthorp/headlines-go/internal/core"
	"github.com/colthorp/headlines-go/internal/feed"
)

// ErrNoArticles means nothing survived fetching and filtering; no snapshot is written.
var ErrNoArticles = errors.New("no positive articles found")

// Columns is the snapshot header written by the pipeline.
var Columns = []string{
	"title", "description", "link", "pubDate", "source",
	"Processed Date", "Processed Time", "Sentiment", "Summary",
}

// SnapshotWriter persists one day's records. cache.FilesystemStore implements it.
type SnapshotWriter interface {
	Write(day time.Time, columns []string, records []cache.Record) (string, error)
}

// Result describes one pipeline run.
type Result struct {
	Path       string  `json:"path"`
	Count      int     `json:"count"`
	Fetched    int     `json:"fetched"`
	FeedErrors []error `json:"-"`
}

// Pipeline fetches, filters, annotates and writes articles.
type Pipeline struct {
	News     *api.NewsAPI
	Query    api.Query
	Feeds    feed.Fetcher
	Sources  []config.Source
	Keywords []string
	Writer   SnapshotWriter

	Location *time.Location
	Now      func() time.Time
	Verbose  bool
	Quiet    bool
}

func (p *Pipeline) log(msg string) {
	core.Eprint(fmt.Sprintf("[Fetch] %s", msg), p.Verbose)
}

// Run executes the pipeline once.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	keywords := p.Keywords
	if keywords == nil {
		keywords = core.NegativeKeywords
	}

	var articles []api.Article
	var apiErr error

	if p.News != nil {
		core.ProgressPrint(fmt.Sprintf("Fetching %q news from the news API…", p.Query.Q), p.Quiet)
		found, err := p.News.FetchPositiveNews(ctx, p.Query)
		if err != nil {
			apiErr = err
			p.log(fmt.Sprintf("News API failed: %v", err))
		} else {
			for i := range found {
				if found[i].SourceID == "" {
					found[i].SourceID = "newsdata"
				}
			}
			articles = append(articles, found...)
		}
	}

	result := &Result{}
	if len(p.Sources) > 0 && p.Feeds != nil {
		core.ProgressPrint(fmt.Sprintf("Fetching %d feeds…", len(p.Sources)), p.Quiet)
		fr := feed.FetchAll(ctx, p.Feeds, p.Sources, 4)
		for _, err := range fr.Errors {
			p.log(fmt.Sprintf("Feed error: %v", err))
		}
		result.FeedErrors = fr.Errors
		articles = append(articles, api.FilterNegative(fr.Articles, keywords)...)
	}

	result.Fetched = len(articles)
	articles = dedupe(articles)
	if len(articles) == 0 {
		if apiErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoArticles, apiErr)
		}
		return nil, ErrNoArticles
	}

	stamp := now().In(loc)
	records := make([]cache.Record, 0, len(articles))
	for _, a := range articles {
		records = append(records, Annotate(a, stamp))
	}

	path, err := p.Writer.Write(core.DateOnly(stamp), Columns, records)
	if err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}
	result.Path = path
	result.Count = len(records)

	core.ProgressPrint(fmt.Sprintf("Saved %d articles to %s", result.Count, path), p.Quiet)
	return result, nil
}

// Annotate converts an article into a snapshot row stamped with processedAt.
func Annotate(a api.Article, processedAt time.Time) cache.Record {
	return cache.Record{
		"title":          a.Title,
		"description":    a.Description,
		"link":           a.Link,
		"pubDate":        a.PubDate,
		"source":         a.SourceID,
		"Processed Date": processedAt.Format(core.DateFmt),
		"Processed Time": processedAt.Format(core.TimeFmt),
		"Sentiment":      analyze.Score(a.Title),
		"Summary":        Summary(a.Description),
	}
}

// Summary is the first SummaryMaxChars runes of description followed by "...".
func Summary(description string) string {
	runes := []rune(description)
	if len(runes) > core.SummaryMaxChars {
		runes = runes[:core.SummaryMaxChars]
	}
	return string(runes) + "..."
}

// dedupe keeps the first article per link; articles without a link are dropped.
func dedupe(articles []api.Article) []api.Article {
	seen := make(map[string]bool, len(articles))
	out := make([]api.Article, 0, len(articles))
	for _, a := range articles {
		if a.Link == "" || seen[a.Link] {
			continue
		}
		seen[a.Link] = true
		out = append(out, a)
	}
	return out
}
