package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/geneticweights/internal/data"
	"github.com/cwbudde/geneticweights/internal/search"
	"github.com/cwbudde/geneticweights/internal/store"
	"github.com/cwbudde/geneticweights/internal/tune"
)

func noneChanged(string) bool { return false }

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tune.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadTrainConfig_Defaults(t *testing.T) {
	cfg, err := loadTrainConfig("", noneChanged)
	if err != nil {
		t.Fatalf("loadTrainConfig failed: %v", err)
	}

	want := tune.DefaultConfig()
	if cfg.Partitions != want.Partitions || cfg.PopulationSize != want.PopulationSize ||
		cfg.Rounds != want.Rounds || cfg.Interval != want.Interval {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
	if cfg.BatchPolicy != data.PerEvaluation {
		t.Errorf("BatchPolicy = %s, want per-evaluation", cfg.BatchPolicy)
	}
	if cfg.Seeding != search.SeedRandom {
		t.Errorf("Seeding = %s, want random", cfg.Seeding)
	}
}

func TestLoadTrainConfig_File(t *testing.T) {
	path := writeConfig(t, `
partitions = 5
population_size = 40
rounds = 3
batch_policy = "per-round"

[interval]
low = -2.0
high = 3.0
`)

	cfg, err := loadTrainConfig(path, noneChanged)
	if err != nil {
		t.Fatalf("loadTrainConfig failed: %v", err)
	}

	if cfg.Partitions != 5 || cfg.PopulationSize != 40 || cfg.Rounds != 3 {
		t.Errorf("File values not applied: %+v", cfg)
	}
	if cfg.Interval.Low != -2 || cfg.Interval.High != 3 {
		t.Errorf("Interval = %v, want [-2, 3]", cfg.Interval)
	}
	if cfg.BatchPolicy != data.PerRound {
		t.Errorf("BatchPolicy = %s, want per-round", cfg.BatchPolicy)
	}
	if cfg.MaxStaleGenerations != tune.DefaultConfig().MaxStaleGenerations {
		t.Errorf("Unset keys should keep defaults, got stale=%d", cfg.MaxStaleGenerations)
	}
}

func TestLoadTrainConfig_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "partitions = 5\nrounds = 3\n")

	oldPartitions, oldHigh := partitions, intervalHigh
	defer func() { partitions, intervalHigh = oldPartitions, oldHigh }()
	partitions = 7
	intervalHigh = 4

	changed := func(name string) bool { return name == "partitions" || name == "high" }
	cfg, err := loadTrainConfig(path, changed)
	if err != nil {
		t.Fatalf("loadTrainConfig failed: %v", err)
	}

	if cfg.Partitions != 7 {
		t.Errorf("Partitions = %d, want flag value 7", cfg.Partitions)
	}
	if cfg.Rounds != 3 {
		t.Errorf("Rounds = %d, want file value 3", cfg.Rounds)
	}
	if cfg.Interval.Low != -1 || cfg.Interval.High != 4 {
		t.Errorf("Interval = %v, want [-1, 4]", cfg.Interval)
	}
}

func TestLoadTrainConfig_Errors(t *testing.T) {
	if _, err := loadTrainConfig(filepath.Join(t.TempDir(), "missing.toml"), noneChanged); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := loadTrainConfig(writeConfig(t, "partitions = ["), noneChanged); err == nil {
		t.Error("Expected error for malformed TOML")
	}

	cfg, err := loadTrainConfig(writeConfig(t, "partitions = 0\n"), noneChanged)
	if err != nil {
		t.Fatalf("loadTrainConfig failed: %v", err)
	}
	if err := cfg.Validate(); !errors.Is(err, &tune.ConfigError{}) {
		t.Errorf("Expected ConfigError from Validate, got %v", err)
	}
}

func TestNewEngineFactory(t *testing.T) {
	for _, name := range []string{"genetic", "mayfly"} {
		factory, check, err := newEngineFactory(name, 1, 10)
		if err != nil {
			t.Fatalf("newEngineFactory(%s) failed: %v", name, err)
		}
		if err := check(tune.DefaultConfig().PopulationSize, search.SeedRandom); err != nil {
			t.Errorf("%s rejected the default population: %v", name, err)
		}
		engine, err := factory(func(search.Individual) (float64, error) { return 0, nil })
		if err != nil || engine == nil {
			t.Errorf("factory(%s) = %v, %v", name, engine, err)
		}
	}

	if _, _, err := newEngineFactory("annealing", 1, 10); err == nil {
		t.Error("Expected error for unknown engine")
	}
}

func TestEngineCheckFailsBeforeTraining(t *testing.T) {
	tests := []struct {
		engine  string
		pop     int
		seeding search.Seeding
	}{
		{"genetic", 1, search.SeedRandom},
		{"genetic", 3, search.SeedRandom},
		{"mayfly", 20, search.SeedZeros},
		{"mayfly", 10, search.SeedRandom},
	}

	for _, tt := range tests {
		factory, check, err := newEngineFactory(tt.engine, 1, 10)
		if err != nil {
			t.Fatalf("newEngineFactory(%s) failed: %v", tt.engine, err)
		}

		cfg := tune.DefaultConfig()
		cfg.PopulationSize = tt.pop
		cfg.Seeding = tt.seeding
		if _, err := tune.New(cfg, factory, check); !errors.Is(err, &tune.ConfigError{}) {
			t.Errorf("%s pop=%d seeding=%s: expected ConfigError from tune.New, got %v", tt.engine, tt.pop, tt.seeding, err)
		}
	}
}

func TestFinishTrace(t *testing.T) {
	newRun := func(t *testing.T) (*store.FSStore, *store.Run, *store.TraceWriter) {
		t.Helper()
		runStore, err := store.NewFSStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewFSStore failed: %v", err)
		}
		cfg := tune.DefaultConfig()
		run := store.NewRun(store.RunConfig{
			Engine:         "genetic",
			Partitions:     cfg.Partitions,
			PopulationSize: cfg.PopulationSize,
			Rounds:         cfg.Rounds,
		})
		if err := runStore.SaveRun(run); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
		trace, err := store.NewTraceWriter(runStore.BaseDir(), run.ID, false)
		if err != nil {
			t.Fatalf("NewTraceWriter failed: %v", err)
		}
		return runStore, run, trace
	}

	t.Run("success", func(t *testing.T) {
		runStore, run, trace := newRun(t)
		if err := trace.Write(store.TraceEntry{Round: 1}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if err := finishTrace(runStore, run, trace, nil); err != nil {
			t.Fatalf("finishTrace failed: %v", err)
		}

		reader, err := store.NewTraceReader(runStore.BaseDir(), run.ID)
		if err != nil {
			t.Fatalf("NewTraceReader failed: %v", err)
		}
		defer reader.Close()
		entries, err := reader.ReadAll()
		if err != nil || len(entries) != 1 {
			t.Errorf("Expected 1 flushed entry, got %d (%v)", len(entries), err)
		}
	})

	t.Run("flush failure", func(t *testing.T) {
		runStore, run, trace := newRun(t)
		// Closing once releases the file; entries written afterwards can no
		// longer be flushed.
		if err := trace.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if err := trace.Write(store.TraceEntry{Round: 1}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		if err := finishTrace(runStore, run, trace, nil); err == nil {
			t.Fatal("Expected the lost trace flush to be reported")
		}
		loaded, err := runStore.LoadRun(run.ID)
		if err != nil {
			t.Fatalf("LoadRun failed: %v", err)
		}
		if loaded.Status != store.StatusFailed {
			t.Errorf("Status = %s, want failed", loaded.Status)
		}
	})

	t.Run("tuning failure", func(t *testing.T) {
		runStore, run, trace := newRun(t)
		boom := errors.New("round 1: engine failure")

		err := finishTrace(runStore, run, trace, boom)
		if !errors.Is(err, boom) {
			t.Fatalf("Expected tuning error, got %v", err)
		}
		loaded, err := runStore.LoadRun(run.ID)
		if err != nil {
			t.Fatalf("LoadRun failed: %v", err)
		}
		if loaded.Status != store.StatusFailed || loaded.Error == "" {
			t.Errorf("Expected failed run with error, got %+v", loaded)
		}
	})
}
