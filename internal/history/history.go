// Package history journals refresh attempts and cache decisions in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/colthorp/headlines-go/internal/cache"
	"github.com/colthorp/headlines-go/internal/core"
)

// timeLayout is fixed-width UTC so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var _ cache.Journal = (*Journal)(nil)

// Journal is a cache.Journal backed by SQLite.
type Journal struct {
	db      *sql.DB
	path    string
	now     func() time.Time
	verbose bool
}

// RefreshEntry is one recorded refresh attempt.
type RefreshEntry struct {
	ID      string        `json:"id"`
	At      time.Time     `json:"at"`
	Forced  bool          `json:"forced"`
	OK      bool          `json:"ok"`
	Message string        `json:"message,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// DecisionEntry is one recorded resolution.
type DecisionEntry struct {
	ID          string       `json:"id"`
	At          time.Time    `json:"at"`
	Source      cache.Source `json:"source"`
	FilePath    string       `json:"file_path,omitempty"`
	RecordCount int          `json:"record_count"`
	Note        string       `json:"note,omitempty"`
}

// Summary is what the status command and endpoint report.
type Summary struct {
	Refreshes    int            `json:"refreshes"`
	Decisions    int            `json:"decisions"`
	LastRefresh  *RefreshEntry  `json:"last_refresh,omitempty"`
	LastSuccess  *RefreshEntry  `json:"last_success,omitempty"`
	LastDecision *DecisionEntry `json:"last_decision,omitempty"`
}

// Open opens (creating if needed) the journal database at path.
func Open(path string, verbose bool) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	// SQLite works best with a single writer connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db, path: path, now: time.Now, verbose: verbose}
	if err := j.init(); err != nil {
		db.Close()
		return nil, err
	}
	j.log(fmt.Sprintf("Journal opened at %s", path))
	return j, nil
}

func (j *Journal) init() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS refreshes (
			id         TEXT PRIMARY KEY,
			at         TEXT NOT NULL,
			forced     INTEGER NOT NULL,
			ok         INTEGER NOT NULL,
			message    TEXT NOT NULL DEFAULT '',
			elapsed_ns INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_refreshes_at ON refreshes(at);

		CREATE TABLE IF NOT EXISTS decisions (
			id           TEXT PRIMARY KEY,
			at           TEXT NOT NULL,
			source       TEXT NOT NULL,
			file_path    TEXT NOT NULL DEFAULT '',
			record_count INTEGER NOT NULL DEFAULT 0,
			note         TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_decisions_at ON decisions(at);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (j *Journal) log(msg string) {
	core.Eprint(fmt.Sprintf("[History] %s", msg), j.verbose)
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordRefresh implements cache.Journal.
func (j *Journal) RecordRefresh(ctx context.Context, forced bool, out cache.Outcome, elapsed time.Duration) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO refreshes (id, at, forced, ok, message, elapsed_ns) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), j.now().UTC().Format(timeLayout), boolInt(forced), boolInt(out.OK), out.Message, int64(elapsed))
	if err != nil {
		return fmt.Errorf("recording refresh: %w", err)
	}
	return nil
}

// RecordDecision implements cache.Journal.
func (j *Journal) RecordDecision(ctx context.Context, d *cache.Decision) error {
	count := 0
	if d.Detail.RecordCount != nil {
		count = *d.Detail.RecordCount
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO decisions (id, at, source, file_path, record_count, note) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), j.now().UTC().Format(timeLayout), string(d.Source), d.Detail.Path, count, d.Detail.Note)
	if err != nil {
		return fmt.Errorf("recording decision: %w", err)
	}
	return nil
}

// Summary returns counts and the most recent entries.
func (j *Journal) Summary(ctx context.Context) (*Summary, error) {
	s := &Summary{}
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM refreshes`).Scan(&s.Refreshes); err != nil {
		return nil, fmt.Errorf("counting refreshes: %w", err)
	}
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions`).Scan(&s.Decisions); err != nil {
		return nil, fmt.Errorf("counting decisions: %w", err)
	}

	var err error
	if s.LastRefresh, err = j.lastRefresh(ctx, false); err != nil {
		return nil, err
	}
	if s.LastSuccess, err = j.lastRefresh(ctx, true); err != nil {
		return nil, err
	}
	decisions, err := j.RecentDecisions(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(decisions) > 0 {
		s.LastDecision = &decisions[0]
	}
	return s, nil
}

func (j *Journal) lastRefresh(ctx context.Context, okOnly bool) (*RefreshEntry, error) {
	query := `SELECT id, at, forced, ok, message, elapsed_ns FROM refreshes`
	if okOnly {
		query += ` WHERE ok = 1`
	}
	query += ` ORDER BY at DESC LIMIT 1`

	var (
		e          RefreshEntry
		at         string
		forced, ok int
		elapsed    int64
	)
	err := j.db.QueryRowContext(ctx, query).Scan(&e.ID, &at, &forced, &ok, &e.Message, &elapsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying refreshes: %w", err)
	}
	e.At, _ = time.Parse(timeLayout, at)
	e.Forced = forced == 1
	e.OK = ok == 1
	e.Elapsed = time.Duration(elapsed)
	return &e, nil
}

// RecentDecisions returns up to n decisions, newest first.
func (j *Journal) RecentDecisions(ctx context.Context, n int) ([]DecisionEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, at, source, file_path, record_count, note FROM decisions ORDER BY at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionEntry
	for rows.Next() {
		var (
			e      DecisionEntry
			at     string
			source string
		)
		if err := rows.Scan(&e.ID, &at, &source, &e.FilePath, &e.RecordCount, &e.Note); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		e.At, _ = time.Parse(timeLayout, at)
		e.Source = cache.Source(source)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries older than cutoff and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ts := cutoff.UTC().Format(timeLayout)
	var total int64
	for _, table := range []string{"refreshes", "decisions"} {
		res, err := j.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE at < ?`, ts)
		if err != nil {
			return total, fmt.Errorf("pruning %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if total > 0 {
		j.log(fmt.Sprintf("Pruned %d entries older than %s", total, core.FormatDatetime(cutoff)))
	}
	return total, nil
}

// Clear deletes every entry.
func (j *Journal) Clear(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM refreshes; DELETE FROM decisions;`); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
