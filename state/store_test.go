package state

import (
	"os"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestLoadEmptyState(t *testing.T) {
	store := testStore(t)
	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if state.LastSessionID != "" || state.LastDocumentID != "" {
		t.Errorf("Expected empty state, got %+v", state)
	}
}

func TestSaveAndLoad(t *testing.T) {
	store := testStore(t)
	err := store.Save(&State{
		LastSessionID:  "session-1",
		LastDocumentID: "doc-1",
		CaretStart:     120,
		CaretEnd:       180,
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if state.LastSessionID != "session-1" || state.CaretEnd != 180 {
		t.Errorf("Loaded state = %+v", state)
	}
	if state.Updated.IsZero() {
		t.Error("Updated timestamp not set on save")
	}
}

func TestUpdateMergesNonZeroFields(t *testing.T) {
	store := testStore(t)
	if err := store.Save(&State{LastSessionID: "session-1", LastDocumentID: "doc-1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	merged, err := store.Update(&State{LastSessionID: "session-2"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if merged.LastSessionID != "session-2" {
		t.Errorf("LastSessionID = %q; want session-2", merged.LastSessionID)
	}
	if merged.LastDocumentID != "doc-1" {
		t.Errorf("LastDocumentID = %q; zero field in update overwrote it", merged.LastDocumentID)
	}

	// And it persisted
	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if state.LastSessionID != "session-2" || state.LastDocumentID != "doc-1" {
		t.Errorf("Persisted state = %+v", state)
	}
}

func TestClear(t *testing.T) {
	store := testStore(t)
	if err := store.Save(&State{LastSessionID: "session-1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load after Clear failed: %v", err)
	}
	if state.LastSessionID != "" {
		t.Errorf("State survived Clear: %+v", state)
	}

	// Clearing again is fine
	if err := store.Clear(); err != nil {
		t.Errorf("Second Clear failed: %v", err)
	}
}

func TestCorruptStateStartsFresh(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed on corrupt state: %v", err)
	}
	if state.LastSessionID != "" {
		t.Errorf("Expected fresh state, got %+v", state)
	}
}
