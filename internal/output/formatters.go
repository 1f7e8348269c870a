// Package output provides output formatting utilities for the headlines CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/colthorp/headlines-go/internal/cache"
	"github.com/colthorp/headlines-go/internal/core"
	"github.com/colthorp/headlines-go/internal/history"
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// WriteRecordsJSON writes records as a compact JSON array, one element at a time.
func WriteRecordsJSON(w io.Writer, records []cache.Record) error {
	fmt.Fprint(w, "[")
	for i, rec := range records {
		if i > 0 {
			fmt.Fprint(w, ",")
		}
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		w.Write(data)
	}
	_, err := fmt.Fprintln(w, "]")
	return err
}

// PrintNews prints records as a numbered markdown list.
func PrintNews(w io.Writer, records []cache.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No headlines.")
		return
	}
	for i, rec := range records {
		fmt.Fprintf(w, "%d. **%s**\n", i+1, rec["title"])
		meta := make([]string, 0, 3)
		for _, key := range []string{"source", "pubDate", "Sentiment"} {
			if v := rec[key]; v != "" {
				meta = append(meta, v)
			}
		}
		if len(meta) > 0 {
			fmt.Fprintf(w, "   _%s_\n", strings.Join(meta, " · "))
		}
		if desc := rec["description"]; desc != "" {
			fmt.Fprintf(w, "   %s\n", core.Truncate(desc, 160))
		}
		if link := rec["link"]; link != "" {
			fmt.Fprintf(w, "   %s\n", link)
		}
	}
}

// PrintCacheInfo prints the provenance of a smart news response.
func PrintCacheInfo(w io.Writer, info cache.CacheInfo) {
	fmt.Fprintf(w, "Source: %s\n", info.Source)
	if info.Note != "" {
		fmt.Fprintf(w, "Note: %s\n", info.Note)
	}
	if info.FilePath != "" {
		fmt.Fprintf(w, "File: %s\n", info.FilePath)
	}
	if info.RecordCount != nil {
		fmt.Fprintf(w, "Records: %d\n", *info.RecordCount)
	}
	if info.LastFetch != nil {
		fmt.Fprintf(w, "Last fetch: %s\n", core.FormatDatetime(info.LastFetch.Local()))
	}
	if info.AgeHours != "" {
		fmt.Fprintf(w, "Age: %sh\n", info.AgeHours)
	}
}

// PrintSnapshots prints a table of snapshots, newest first.
func PrintSnapshots(w io.Writer, list []cache.Snapshot) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No snapshots.")
		return
	}
	fmt.Fprintf(w, "%-10s  %-19s  %s\n", "DATE", "MODIFIED", "FILE")
	for i := len(list) - 1; i >= 0; i-- {
		s := list[i]
		fmt.Fprintf(w, "%-10s  %-19s  %s\n", core.FormatDate(s.Date), core.FormatDatetime(s.ModifiedAt.Local()), s.Name)
	}
}

// PrintStatus prints the store status.
func PrintStatus(w io.Writer, st *cache.Status) {
	fmt.Fprintf(w, "Root: %s\n", st.Root)
	fmt.Fprintf(w, "Snapshots: %d\n", len(st.Snapshots))
	if st.Latest != nil {
		fmt.Fprintf(w, "Latest: %s\n", st.Latest.Name)
	} else {
		fmt.Fprintln(w, "Latest: none")
	}
	if st.Today == nil {
		fmt.Fprintln(w, "Today: none")
		return
	}
	state := "stale"
	if st.TodayFresh {
		state = "fresh"
	}
	fmt.Fprintf(w, "Today: %s (%sh old, %s at max age %gh)\n", st.Today.Name, st.TodayAge, state, st.MaxAgeHours)
}

// PrintHistory prints the journal summary.
func PrintHistory(w io.Writer, s *history.Summary) {
	fmt.Fprintf(w, "Refreshes: %d  Decisions: %d\n", s.Refreshes, s.Decisions)
	if s.LastRefresh != nil {
		fmt.Fprintf(w, "Last refresh: %s (%s)\n", core.FormatDatetime(s.LastRefresh.At.Local()), refreshState(s.LastRefresh))
	}
	if s.LastSuccess != nil {
		fmt.Fprintf(w, "Last success: %s\n", core.FormatDatetime(s.LastSuccess.At.Local()))
	}
	if d := s.LastDecision; d != nil {
		fmt.Fprintf(w, "Last decision: %s %s (%d records)\n", core.FormatDatetime(d.At.Local()), d.Source, d.RecordCount)
	}
}

func refreshState(e *history.RefreshEntry) string {
	state := "failed"
	if e.OK {
		state = "ok"
	}
	if e.Forced {
		state += ", forced"
	}
	if !e.OK && e.Message != "" {
		state += ": " + core.Truncate(e.Message, 80)
	}
	return state
}
