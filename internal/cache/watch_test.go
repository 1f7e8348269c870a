package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchSnapshots(t *testing.T) {
	tmpDir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Change, 16)
	done := make(chan error, 1)
	go func() {
		done <- WatchSnapshots(ctx, tmpDir, func(c Change) { changes <- c })
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	store := NewFilesystemStore(tmpDir)
	if _, err := store.Write(day("2025-01-03"), []string{"title"}, []Record{{"title": "a"}}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		if c.Name != "headline_2025-01-03.csv" || c.Removed {
			t.Errorf("Change = %+v", c)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for snapshot change")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WatchSnapshots returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watcher did not stop on cancel")
	}
}

func TestWatchSnapshotsMissingRoot(t *testing.T) {
	err := WatchSnapshots(context.Background(), filepath.Join(t.TempDir(), "missing"), func(Change) {})
	if err == nil {
		t.Error("Expected error for missing root")
	}
}
