// Package cache decides where the news served to a caller comes from.
//
// # Overview
//
// Articles live in dated CSV snapshots under a single data directory:
//
//	data/headline_2025-01-03.csv
//
// Snapshots are written by an external refresh action (see internal/fetch and
// internal/refresh). This package only reads them and may ask for a new one.
//
// # Resolution tiers
//
// Resolver.Resolve walks a fixed priority chain and stops at the first match:
//
//   - forced_refresh: the caller asked for a refresh, it succeeded, and a snapshot
//     is visible after ForcedWait
//   - today_fresh: today's snapshot exists and is younger than maxAgeHours
//   - newly_fetched: a refresh was triggered, it succeeded, and a snapshot is
//     visible after RefreshWait
//   - latest_available: any snapshot at all, regardless of age
//   - none: nothing to serve
//
// Each resolution triggers the refresh action at most once. Storage and parse
// faults (ErrStorageUnavailable, ErrMalformedData) abort the request; a failed
// refresh only demotes the result to a lower tier.
package cache

import (
	"errors"
	"time"
)

var (
	// ErrStorageUnavailable means the snapshot root is missing or unreadable.
	ErrStorageUnavailable = errors.New("snapshot storage unavailable")

	// ErrMalformedData means a snapshot could not be parsed as CSV with a header.
	ErrMalformedData = errors.New("malformed snapshot data")
)

// Record is one article row keyed by CSV header.
type Record map[string]string

// Snapshot describes one dated snapshot file. Records are loaded on demand via Store.Load.
type Snapshot struct {
	Date       time.Time `json:"date"` // calendar day from the file name (midnight UTC)
	Name       string    `json:"name"` // raw file name, used as the tie-break
	Path       string    `json:"path"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Store is the interface for snapshot storage backends.
// The default implementation is FilesystemStore; MemoryStore is used in tests.
type Store interface {
	// List returns every snapshot under the root.
	// Fails with ErrStorageUnavailable if the root does not exist.
	List() ([]Snapshot, error)

	// Latest returns the snapshot with the greatest date, or nil if none exist.
	Latest() (*Snapshot, error)

	// ForDate returns the snapshot for exactly that calendar day, or nil.
	ForDate(day time.Time) (*Snapshot, error)

	// Load parses the snapshot's rows. Fails with ErrMalformedData.
	Load(s Snapshot) ([]Record, error)

	// EnsureRoot creates the storage root if it is missing.
	EnsureRoot() error

	// Root returns the storage location (for logs and status output).
	Root() string
}

// Source tags which tier served a resolution.
type Source string

const (
	SourceForcedRefresh   Source = "forced_refresh"
	SourceTodayFresh      Source = "today_fresh"
	SourceNewlyFetched    Source = "newly_fetched"
	SourceLatestAvailable Source = "latest_available"
	SourceNone            Source = "none"
)

// Sources lists every tag in priority order.
var Sources = []Source{
	SourceForcedRefresh,
	SourceTodayFresh,
	SourceNewlyFetched,
	SourceLatestAvailable,
	SourceNone,
}

// Notes attached to the tiers that carry one.
const (
	NoteForcedRefresh   = "Data refreshed by force request"
	NoteNewlyFetched    = "Data freshly fetched from API"
	NoteLatestAvailable = "Using latest available data (fetch failed)"
	NoteNone            = "No data available and fetch failed"
)

// Request is the caller's input to a resolution.
type Request struct {
	Force       bool
	MaxAgeHours float64
}

// NewRequest returns a request with the default max age.
func NewRequest(force bool) Request {
	return Request{Force: force, MaxAgeHours: defaultMaxAgeHours}
}

// Detail is the tag-dependent provenance of a Decision.
type Detail struct {
	Path         string
	RecordCount  *int
	LastModified *time.Time
	AgeHours     *float64
	Note         string
}

// Decision is the result of one resolution.
type Decision struct {
	Source  Source
	Records []Record
	Detail  Detail

	// Snapshot is the snapshot that was served, nil for SourceNone.
	Snapshot *Snapshot
}

// Response is the JSON shape returned to callers of the smart news endpoint.
type Response struct {
	News      []Record  `json:"news"`
	CacheInfo CacheInfo `json:"cache_info"`
}

// CacheInfo is the provenance block of a Response.
type CacheInfo struct {
	Source       Source     `json:"source"`
	LastFetch    *time.Time `json:"last_fetch,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	FilePath     string     `json:"file_path,omitempty"`
	RecordCount  *int       `json:"record_count,omitempty"`
	AgeHours     string     `json:"age_hours,omitempty"`
	Note         string     `json:"note,omitempty"`
}
