package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewRun(t *testing.T) {
	run := NewRun(createTestRun("x").Config)

	if run.ID == "" {
		t.Error("Run ID should not be empty")
	}
	if run.Status != StatusRunning {
		t.Errorf("Status = %s, want running", run.Status)
	}
	if run.StartTime.IsZero() {
		t.Error("StartTime should be set")
	}
	if err := run.Validate(); err != nil {
		t.Errorf("New run should validate: %v", err)
	}

	other := NewRun(run.Config)
	if other.ID == run.ID {
		t.Error("Run IDs should be unique")
	}
}

func TestRunCompleteAndFail(t *testing.T) {
	run := NewRun(createTestRun("x").Config)
	run.Complete(0.25, 4, 5, 0.75)

	if run.Status != StatusCompleted || run.BestFitness != 0.25 || run.BestRound != 4 || run.Rounds != 5 || run.Accuracy != 0.75 {
		t.Errorf("Unexpected completed run: %+v", run)
	}
	if run.EndTime == nil {
		t.Error("EndTime should be set")
	}

	failed := NewRun(run.Config)
	failed.Fail(errors.New("out of memory"))
	if failed.Status != StatusFailed || failed.Error != "out of memory" {
		t.Errorf("Unexpected failed run: %+v", failed)
	}
}

func TestRun_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Run)
		field  string
	}{
		{"valid", func(*Run) {}, ""},
		{"empty id", func(r *Run) { r.ID = "" }, "ID"},
		{"unknown status", func(r *Run) { r.Status = "paused" }, "Status"},
		{"zero start", func(r *Run) { r.StartTime = time.Time{} }, "StartTime"},
		{"negative rounds", func(r *Run) { r.Rounds = -1 }, "Rounds"},
		{"zero config rounds", func(r *Run) { r.Config.Rounds = 0 }, "Config.Rounds"},
		{"zero partitions", func(r *Run) { r.Config.Partitions = 0 }, "Config.Partitions"},
		{"zero population", func(r *Run) { r.Config.PopulationSize = 0 }, "Config.PopulationSize"},
		{"no engine", func(r *Run) { r.Config.Engine = "" }, "Config.Engine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := createTestRun("run-1")
			tt.modify(run)

			err := run.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Expected valid run, got %v", err)
				}
				return
			}

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Field = %s, want %s", vErr.Field, tt.field)
			}
		})
	}
}

func TestRun_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(createTestRun("run-1"))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"id", "status", "config", "bestFitness", "startTime"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Missing JSON field %q", key)
		}
	}
	if _, ok := raw["error"]; ok {
		t.Error("Empty error should be omitted")
	}
}

func TestRun_ToInfo(t *testing.T) {
	run := createTestRun("run-1")
	info := run.ToInfo()

	if info.ID != run.ID || info.BestFitness != run.BestFitness || info.Rounds != run.Rounds {
		t.Errorf("Info does not match run: %+v", info)
	}
	if info.Engine != "genetic" || info.Status != StatusCompleted {
		t.Errorf("Unexpected info: %+v", info)
	}
}
