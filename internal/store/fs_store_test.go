package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}

	return store, tempDir
}

// createTestRun creates a completed run with test data.
func createTestRun(id string) *Run {
	end := time.Now()
	return &Run{
		ID:          id,
		Status:      StatusCompleted,
		BestFitness: 0.4123,
		BestRound:   3,
		Accuracy:    0.87,
		Rounds:      5,
		StartTime:   end.Add(-time.Minute),
		EndTime:     &end,
		Config: RunConfig{
			Dataset:             "blobs",
			Shape:               []int{2, 8, 3},
			Activation:          "relu",
			Engine:              "genetic",
			IntervalLow:         -1,
			IntervalHigh:        1,
			Partitions:          9,
			PopulationSize:      150,
			MaxStaleGenerations: 15,
			Rounds:              5,
			BatchSize:           32,
			BatchPolicy:         "per-evaluation",
			Seed:                42,
		},
	}
}

func TestNewFSStore(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if store.BaseDir() != tempDir {
		t.Errorf("BaseDir = %s, want %s", store.BaseDir(), tempDir)
	}

	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Fatal("Base directory was not created")
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	store, tempDir := setupTestStore(t)
	run := createTestRun("run-1")

	if err := store.SaveRun(run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "runs", "run-1", "run.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Run file was not created at %s", expectedPath)
	}
	if _, err := os.Stat(expectedPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file should not remain after save")
	}

	loaded, err := store.LoadRun("run-1")
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if loaded.BestFitness != run.BestFitness {
		t.Errorf("BestFitness = %f, want %f", loaded.BestFitness, run.BestFitness)
	}
	if loaded.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed", loaded.Status)
	}
	if len(loaded.Config.Shape) != 3 || loaded.Config.Shape[1] != 8 {
		t.Errorf("Shape not preserved: %v", loaded.Config.Shape)
	}
	if loaded.EndTime == nil {
		t.Error("EndTime not preserved")
	}
}

func TestSaveRun_Invalid(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveRun(nil); err == nil {
		t.Error("Expected error for nil run")
	}

	run := createTestRun("")
	err := store.SaveRun(run)
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "ID" {
		t.Errorf("Expected ID validation error, got %v", err)
	}
}

func TestSaveRun_Overwrite(t *testing.T) {
	store, _ := setupTestStore(t)

	run := createTestRun("run-1")
	run.Status = StatusRunning
	if err := store.SaveRun(run); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	run.Complete(0.1, 2, 5, 0.9)
	if err := store.SaveRun(run); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := store.LoadRun("run-1")
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if loaded.Status != StatusCompleted || loaded.BestFitness != 0.1 {
		t.Errorf("Expected overwritten record, got status=%s fitness=%f", loaded.Status, loaded.BestFitness)
	}
}

func TestLoadRun_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadRun("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if _, err := store.LoadRun(""); err == nil {
		t.Error("Expected error for empty runID")
	}
}

func TestListRuns(t *testing.T) {
	store, tempDir := setupTestStore(t)

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("Expected no runs, got %d", len(infos))
	}

	older := createTestRun("older")
	older.StartTime = time.Now().Add(-time.Hour)
	newer := createTestRun("newer")
	for _, r := range []*Run{newer, older} {
		if err := store.SaveRun(r); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	// Directories without a record and corrupt records are skipped.
	if err := os.MkdirAll(filepath.Join(tempDir, "runs", "empty"), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	corrupt := filepath.Join(tempDir, "runs", "corrupt")
	if err := os.MkdirAll(corrupt, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(corrupt, "run.json"), []byte("{"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt record: %v", err)
	}

	infos, err = store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(infos))
	}
	if infos[0].ID != "older" || infos[1].ID != "newer" {
		t.Errorf("Expected oldest first, got %s, %s", infos[0].ID, infos[1].ID)
	}
	if infos[0].Engine != "genetic" || infos[0].Dataset != "blobs" {
		t.Errorf("Unexpected info: %+v", infos[0])
	}
}

func TestDeleteRun(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.SaveRun(createTestRun("run-1")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	writer, err := NewTraceWriter(tempDir, "run-1", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	writer.Close()

	if err := store.DeleteRun("run-1"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := os.Stat(store.RunDir("run-1")); !os.IsNotExist(err) {
		t.Error("Run directory still exists")
	}

	if err := store.DeleteRun("run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
	if err := store.DeleteRun(""); err == nil {
		t.Error("Expected error for empty runID")
	}
}

func TestConcurrentSave(t *testing.T) {
	store, _ := setupTestStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run := createTestRun("run-" + string(rune('a'+i)))
			errs <- store.SaveRun(run)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent save failed: %v", err)
		}
	}

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 10 {
		t.Errorf("Expected 10 runs, got %d", len(infos))
	}
}
