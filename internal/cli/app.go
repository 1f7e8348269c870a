package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/colthorp/headlines-go/internal/analyze"
	"github.com/colthorp/headlines-go/internal/api"
	"github.com/colthorp/headlines-go/internal/cache"
	"github.com/colthorp/headlines-go/internal/config"
	"github.com/colthorp/headlines-go/internal/core"
	"github.com/colthorp/headlines-go/internal/feed"
	"github.com/colthorp/headlines-go/internal/fetch"
	"github.com/colthorp/headlines-go/internal/history"
	"github.com/colthorp/headlines-go/internal/refresh"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg      *config.Config
	store    *cache.FilesystemStore
	journal  *history.Journal
	trigger  cache.Trigger
	resolver *cache.Resolver
}

// newApp loads config and wires the store, trigger, journal and resolver.
// A journal that cannot be opened is logged and skipped.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:   cfg,
		store: cache.NewFilesystemStore(cfg.SnapshotDir()),
	}

	if cfg.History.Enabled {
		j, err := history.Open(cfg.HistoryPath(), verbose)
		if err != nil {
			core.Eprint(fmt.Sprintf("[History] Disabled: %v", err), true)
		} else {
			a.journal = j
			if n, err := j.Prune(ctx, time.Now().Add(-cfg.RetentionDuration())); err == nil && n > 0 {
				core.Eprint(fmt.Sprintf("[History] Pruned %d old entries", n), verbose)
			}
		}
	}

	a.trigger, err = buildTrigger(cfg, a.store)
	if err != nil {
		a.close()
		return nil, err
	}

	opts := []cache.Option{
		cache.WithWaits(cfg.ForcedWaitDuration(), cfg.RefreshWaitDuration()),
		cache.WithLocation(cfg.Location()),
		cache.WithVerbose(verbose),
	}
	if a.journal != nil {
		opts = append(opts, cache.WithJournal(a.journal))
	}
	a.resolver = cache.NewResolver(a.store, a.trigger, opts...)
	return a, nil
}

func (a *app) close() {
	if a.journal != nil {
		a.journal.Close()
	}
}

// buildNewsAPI creates the news API client with the configured keyword filter.
func buildNewsAPI(cfg *config.Config) *api.NewsAPI {
	client := api.NewClientWithBase(cfg.APIKey(), cfg.API.BaseURL, nil, verbose)
	news := api.NewNewsAPI(client)
	if len(cfg.NegativeKeywords) > 0 {
		news.SetNegativeKeywords(cfg.NegativeKeywords)
	}
	return news
}

func newsQuery(cfg *config.Config) api.Query {
	return api.Query{
		Q:        cfg.API.Query,
		Language: cfg.API.Language,
		Category: cfg.API.Category,
		MaxPages: cfg.API.MaxPages,
	}
}

// buildPipeline creates the fetch pipeline writing into store.
func buildPipeline(cfg *config.Config, store fetch.SnapshotWriter) *fetch.Pipeline {
	p := &fetch.Pipeline{
		News:     buildNewsAPI(cfg),
		Query:    newsQuery(cfg),
		Keywords: cfg.NegativeKeywords,
		Writer:   store,
		Location: cfg.Location(),
		Verbose:  verbose,
		Quiet:    quiet,
	}
	if sources := cfg.EnabledSources(); len(sources) > 0 {
		p.Feeds = feed.NewRSSFetcher(48 * time.Hour)
		p.Sources = sources
	}
	return p
}

// buildTrigger returns the refresh action selected by refresh.mode.
func buildTrigger(cfg *config.Config, store *cache.FilesystemStore) (cache.Trigger, error) {
	switch cfg.Refresh.Mode {
	case config.RefreshInProcess:
		return &refresh.InProcessTrigger{
			Pipeline: buildPipeline(cfg, store),
			Timeout:  cfg.RefreshTimeout(),
		}, nil
	default:
		command := cfg.Refresh.Command
		if len(command) == 0 {
			var err error
			command, err = refresh.SelfCommand("--quiet", "--data-dir", store.Root())
			if err != nil {
				return nil, err
			}
			if configPath != "" {
				command = append(command, "--config", configPath)
			}
		}
		return &refresh.CommandTrigger{
			Command: command,
			Dir:     cfg.Refresh.Workdir,
			Timeout: cfg.RefreshTimeout(),
			Verbose: verbose,
		}, nil
	}
}

// buildAnalyzer returns the analyzer selected by analyze.mode.
func buildAnalyzer(cfg *config.Config) *analyze.Analyzer {
	if cfg.Analyze.Mode == config.AnalyzeScript {
		return &analyze.Analyzer{
			Summarize: analyze.ScriptFunc(cfg.Analyze.Script, "summarize"),
			Sentiment: analyze.ScriptFunc(cfg.Analyze.Script, "sentiment"),
		}
	}
	scraper := analyze.NewScrapeSummarizer(nil, cfg.Analyze.SummarySentences)
	return &analyze.Analyzer{
		Summarize: scraper.Summarize,
		Sentiment: analyze.LexiconSentiment,
	}
}
