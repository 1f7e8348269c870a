package cache

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/colthorp/headlines-go/internal/core"
)

// FilesystemStore reads snapshot CSV files from a flat directory:
// <root>/headline_YYYY-MM-DD.csv
type FilesystemStore struct {
	root      string
	prefix    string
	suffix    string
	writeLock sync.Mutex
}

// NewFilesystemStore creates a filesystem snapshot store rooted at root.
func NewFilesystemStore(root string) *FilesystemStore {
	return &FilesystemStore{
		root:   root,
		prefix: core.SnapshotPrefix,
		suffix: core.SnapshotSuffix,
	}
}

// Root returns the snapshot directory.
func (s *FilesystemStore) Root() string {
	return s.root
}

// Path returns the canonical file path for the given day.
func (s *FilesystemStore) Path(day time.Time) string {
	return filepath.Join(s.root, s.prefix+core.FormatDate(day)+s.suffix)
}

// EnsureRoot creates the snapshot directory if it is missing.
func (s *FilesystemStore) EnsureRoot() error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrStorageUnavailable, s.root, err)
	}
	return nil
}

// List scans the root for snapshot files.
func (s *FilesystemStore) List() ([]Snapshot, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrStorageUnavailable, s.root)
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	snapshots := make([]Snapshot, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		day, ok := parseSnapshotName(entry.Name(), s.prefix, s.suffix)
		if !ok {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		snapshots = append(snapshots, Snapshot{
			Date:       day,
			Name:       entry.Name(),
			Path:       filepath.Join(s.root, entry.Name()),
			ModifiedAt: fi.ModTime(),
		})
	}

	sortSnapshots(snapshots)
	return snapshots, nil
}

// Latest returns the newest snapshot, or nil if none exist.
func (s *FilesystemStore) Latest() (*Snapshot, error) {
	list, err := s.List()
	if err != nil {
		return nil, err
	}
	return latestOf(list, nil), nil
}

// ForDate returns the snapshot for day, or nil.
func (s *FilesystemStore) ForDate(day time.Time) (*Snapshot, error) {
	list, err := s.List()
	if err != nil {
		return nil, err
	}
	d := core.DateOnly(day)
	return latestOf(list, &d), nil
}

// Load reads and parses the snapshot's CSV file.
func (s *FilesystemStore) Load(snap Snapshot) ([]Record, error) {
	f, err := os.Open(snap.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrStorageUnavailable, snap.Path, err)
	}
	defer f.Close()

	return parseRecords(f, snap.Path)
}

// Write persists a snapshot for day atomically using temp file + rename.
// Only the fetch action calls this; the resolver never writes.
func (s *FilesystemStore) Write(day time.Time, columns []string, records []Record) (string, error) {
	var buf bytes.Buffer
	if err := writeRecords(&buf, columns, records); err != nil {
		return "", err
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if err := s.EnsureRoot(); err != nil {
		return "", err
	}

	path := s.Path(day)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return path, nil
}

// parseSnapshotName extracts the date from <prefix>YYYY-MM-DD...<suffix>.
func parseSnapshotName(name, prefix, suffix string) (time.Time, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return time.Time{}, false
	}
	middle := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
	if len(middle) < len(core.DateFmt) {
		return time.Time{}, false
	}
	day, err := time.Parse(core.DateFmt, middle[:len(core.DateFmt)])
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// sortSnapshots orders by date then raw name, both ascending.
func sortSnapshots(list []Snapshot) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.Before(list[j].Date)
		}
		return list[i].Name < list[j].Name
	})
}

// latestOf picks the canonical snapshot: greatest date, then greatest raw name.
// When day is non-nil only snapshots for that day are considered.
func latestOf(list []Snapshot, day *time.Time) *Snapshot {
	var best *Snapshot
	for i := range list {
		s := list[i]
		if day != nil && !s.Date.Equal(*day) {
			continue
		}
		if best == nil || s.Date.After(best.Date) || (s.Date.Equal(best.Date) && s.Name > best.Name) {
			best = &s
		}
	}
	return best
}

// parseRecords reads CSV with a header row into records.
func parseRecords(r io.Reader, path string) ([]Record, error) {
	reader := csv.NewReader(r)
	// Every row must match the header width.
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: %s: missing header row", ErrMalformedData, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedData, path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	records := make([]Record, 0)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedData, path, err)
		}
		rec := make(Record, len(header))
		for i, col := range header {
			rec[col] = row[i]
		}
		records = append(records, rec)
	}
	return records, nil
}

// writeRecords writes records as CSV using columns as the header.
func writeRecords(w io.Writer, columns []string, records []Record) error {
	if len(columns) == 0 {
		return fmt.Errorf("writing snapshot: no columns")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	row := make([]string, len(columns))
	for _, rec := range records {
		for i, col := range columns {
			row[i] = rec[col]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
