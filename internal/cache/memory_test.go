package cache

import (
	"errors"
	"testing"
	"time"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	mtime := time.Date(2025, 1, 3, 8, 0, 0, 0, time.UTC)

	store.Seed(day("2025-01-03"), mtime, Record{"title": "a, with comma", "link": "l1"})
	store.Seed(day("2025-01-01"), mtime, Record{"title": "b", "link": "l2"})
	store.SeedRaw("unrelated.txt", mtime, "x")

	list, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(list))
	}
	if list[0].Name != "headline_2025-01-01.csv" {
		t.Errorf("List not sorted ascending: %v", list)
	}

	latest, _ := store.Latest()
	records, err := store.Load(*latest)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 1 || records[0]["title"] != "a, with comma" {
		t.Errorf("Load = %v", records)
	}

	// Loaded records are independent copies.
	records[0]["title"] = "mutated"
	again, _ := store.Load(*latest)
	if again[0]["title"] != "a, with comma" {
		t.Error("Expected Load to return a fresh copy")
	}
	if store.Loads() != 2 {
		t.Errorf("Loads() = %d, want 2", store.Loads())
	}
}

func TestMemoryStoreRemoveRoot(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(day("2025-01-03"), time.Now(), rec("a"))
	store.RemoveRoot()

	if _, err := store.List(); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("List() error = %v, want ErrStorageUnavailable", err)
	}
	if err := store.EnsureRoot(); err != nil {
		t.Fatal(err)
	}
	list, err := store.List()
	if err != nil || len(list) != 0 {
		t.Errorf("List() after EnsureRoot = %v, %v", list, err)
	}
}
