package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/colthorp/headlines-go/internal/cache"
	"github.com/colthorp/headlines-go/internal/core"
	"github.com/colthorp/headlines-go/internal/output"
	"github.com/colthorp/headlines-go/internal/server"
)

func init() {
	// Add all subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Serve command flags
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")

	// News command flags
	newsCmd.Flags().BoolP("force", "f", false, "Refresh before serving")
	newsCmd.Flags().Float64("max-age", core.DefaultMaxAgeHours, "Hours after which today's snapshot is stale")

	// Status command flags
	statusCmd.Flags().Float64("hours", core.DefaultMaxAgeHours, "Freshness threshold in hours")
}

// serveCmd starts the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the news API over HTTP",
	RunE:  handleServe,
}

// newsCmd resolves news through the cache
var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Get news, refreshing the cache only when needed",
	RunE:  handleNews,
}

// refreshCmd runs the configured refresh action
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run the configured refresh action once",
	RunE:  handleRefresh,
}

// fetchCmd is the built-in refresh action
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch positive articles and write today's snapshot",
	RunE:  handleFetch,
}

// statusCmd reports cache and journal state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show snapshot freshness and refresh history",
	RunE:  handleStatus,
}

// clearCmd wipes the journal
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the refresh and decision history",
	RunE:  handleClear,
}

// snapshotsCmd lists snapshot files
var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List snapshot files",
	RunE:  handleSnapshots,
}

// showCmd prints one snapshot
var showCmd = &cobra.Command{
	Use:   "show [date_spec]",
	Short: "Print a snapshot (e.g. today, yesterday, d-3, 2025-01-03; default latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  handleShow,
}

// analyzeCmd summarizes an article
var analyzeCmd = &cobra.Command{
	Use:   "analyze [url]",
	Short: "Summarize an article and score its sentiment",
	Args:  cobra.ExactArgs(1),
	RunE:  handleAnalyze,
}

// watchCmd reports snapshot changes
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the snapshot directory for changes",
	RunE:  handleWatch,
}

// mcpCmd starts the MCP server
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI integration",
	RunE:  handleMCP,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("headlines %s\n", core.Version)
	},
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func handleServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = a.cfg.ListenAddr
	}

	if err := a.store.EnsureRoot(); err != nil {
		return err
	}
	go func() {
		err := cache.WatchSnapshots(ctx, a.store.Root(), func(c cache.Change) {
			if c.Removed {
				core.Eprint(fmt.Sprintf("[Cache] Snapshot removed: %s", c.Name), verbose)
			} else {
				core.Eprint(fmt.Sprintf("[Cache] Snapshot updated: %s", c.Name), verbose)
			}
		})
		if err != nil {
			core.Eprint(fmt.Sprintf("[Cache] Watcher stopped: %v", err), verbose)
		}
	}()

	srv := server.New(server.Options{
		Resolver:    a.resolver,
		Trigger:     a.trigger,
		Analyzer:    buildAnalyzer(a.cfg),
		Journal:     a.journal,
		News:        buildNewsAPI(a.cfg),
		Query:       newsQuery(a.cfg),
		Addr:        addr,
		MaxAgeHours: a.cfg.MaxAgeHours,
		Location:    a.cfg.Location(),
		Verbose:     verbose,
	})
	return srv.Run(ctx)
}

func handleNews(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	force, _ := cmd.Flags().GetBool("force")
	req := cache.Request{Force: force, MaxAgeHours: a.cfg.MaxAgeHours}
	if cmd.Flags().Changed("max-age") {
		req.MaxAgeHours, _ = cmd.Flags().GetFloat64("max-age")
	}

	d, err := a.resolver.Resolve(ctx, req)
	if err != nil {
		return err
	}

	resp := d.Response()
	if raw {
		return output.WriteJSON(os.Stdout, resp)
	}
	if !quiet {
		output.PrintCacheInfo(os.Stderr, resp.CacheInfo)
	}
	output.PrintNews(os.Stdout, resp.News)
	return nil
}

func handleRefresh(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.EnsureRoot(); err != nil {
		return err
	}

	core.ProgressPrint("Running refresh action…", quiet)
	start := time.Now()
	out := a.trigger.Trigger(ctx)
	if a.journal != nil {
		if err := a.journal.RecordRefresh(ctx, true, out, time.Since(start)); err != nil {
			core.Eprint(fmt.Sprintf("[History] Failed to record refresh: %v", err), verbose)
		}
	}

	if raw {
		if err := output.WriteJSON(os.Stdout, server.RefreshResponse{Success: out.OK, Output: out.Message}); err != nil {
			return err
		}
	} else if out.Message != "" {
		fmt.Println(out.Message)
	}
	if !out.OK {
		return fmt.Errorf("refresh failed")
	}
	return nil
}

func handleFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store := cache.NewFilesystemStore(cfg.SnapshotDir())

	res, err := buildPipeline(cfg, store).Run(ctx)
	if err != nil {
		return err
	}
	if raw {
		return output.WriteJSON(os.Stdout, res)
	}
	fmt.Printf("Saved %d articles to %s\n", res.Count, res.Path)
	return nil
}

func handleStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	hours := a.cfg.MaxAgeHours
	if cmd.Flags().Changed("hours") {
		hours, _ = cmd.Flags().GetFloat64("hours")
	}

	st, err := a.resolver.Status(hours)
	if err != nil {
		return err
	}
	resp := server.StatusResponse{Status: st}
	if a.journal != nil {
		if resp.History, err = a.journal.Summary(ctx); err != nil {
			return err
		}
	}

	if raw {
		return output.WriteJSON(os.Stdout, resp)
	}
	output.PrintStatus(os.Stdout, st)
	if resp.History != nil {
		output.PrintHistory(os.Stdout, resp.History)
	}
	return nil
}

func handleClear(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.journal == nil {
		return fmt.Errorf("history is disabled")
	}
	if err := a.journal.Clear(ctx); err != nil {
		return err
	}
	core.ProgressPrint(fmt.Sprintf("Cleared history at %s", a.journal.Path()), quiet)
	return nil
}

func handleSnapshots(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	list, err := cache.NewFilesystemStore(cfg.SnapshotDir()).List()
	if err != nil {
		return err
	}
	if raw {
		return output.WriteJSON(os.Stdout, list)
	}
	output.PrintSnapshots(os.Stdout, list)
	return nil
}

func handleShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store := cache.NewFilesystemStore(cfg.SnapshotDir())

	var snap *cache.Snapshot
	if len(args) == 0 || args[0] == "latest" {
		snap, err = store.Latest()
	} else {
		day, perr := core.ParseDateSpec(args[0], time.Now().In(cfg.Location()))
		if perr != nil {
			return perr
		}
		snap, err = store.ForDate(day)
	}
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("no snapshot found")
	}

	records, err := store.Load(*snap)
	if err != nil {
		return err
	}
	core.ProgressPrint(fmt.Sprintf("%s (%d records)", snap.Name, len(records)), quiet)
	if raw {
		return output.WriteRecordsJSON(os.Stdout, records)
	}
	output.PrintNews(os.Stdout, records)
	return nil
}

func handleAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	core.ProgressPrint(fmt.Sprintf("Analyzing %s…", args[0]), quiet)
	res, err := buildAnalyzer(cfg).Analyze(ctx, args[0])
	if err != nil {
		return err
	}
	if raw {
		return output.WriteJSON(os.Stdout, res)
	}
	fmt.Printf("Sentiment: %s\n\n%s\n", res.Sentiment, res.Summary)
	return nil
}

func handleWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root := cfg.SnapshotDir()

	core.ProgressPrint(fmt.Sprintf("Watching %s (Ctrl-C to stop)…", root), quiet)
	return cache.WatchSnapshots(ctx, root, func(c cache.Change) {
		if raw {
			output.WriteJSON(os.Stdout, map[string]interface{}{
				"name":    c.Name,
				"date":    core.FormatDate(c.Date),
				"removed": c.Removed,
			})
			return
		}
		action := "updated"
		if c.Removed {
			action = "removed"
		}
		fmt.Printf("%s  %s %s\n", core.FormatDatetime(time.Now()), c.Name, action)
	})
}

func handleMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	srv := newMCPServer(a.resolver, buildAnalyzer(a.cfg), a.cfg.MaxAgeHours, os.Stdout)
	return srv.run(ctx, os.Stdin)
}
