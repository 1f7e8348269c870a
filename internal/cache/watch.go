package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/colthorp/headlines-go/internal/core"
)

// Change is a snapshot file event seen by WatchSnapshots.
type Change struct {
	Name    string
	Date    time.Time
	Removed bool
}

// WatchSnapshots calls onChange for every snapshot file created, written,
// or removed under root until ctx is done. Temp files written by the fetch
// action do not match the snapshot pattern and are ignored; the rename that
// publishes them arrives as a create.
func WatchSnapshots(ctx context.Context, root string, onChange func(Change)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("%w: watching %s: %v", ErrStorageUnavailable, root, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			day, match := parseSnapshotName(name, core.SnapshotPrefix, core.SnapshotSuffix)
			if !match {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				onChange(Change{Name: name, Date: day})
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				onChange(Change{Name: name, Date: day, Removed: true})
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching %s: %w", root, err)
		}
	}
}
