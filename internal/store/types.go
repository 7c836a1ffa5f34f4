package store

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// RunConfig is the configuration a run was started with.
type RunConfig struct {
	Dataset             string  `json:"dataset"`
	Shape               []int   `json:"shape"`
	Activation          string  `json:"activation"`
	Engine              string  `json:"engine"`
	IntervalLow         float64 `json:"intervalLow"`
	IntervalHigh        float64 `json:"intervalHigh"`
	Partitions          int     `json:"partitions"`
	PopulationSize      int     `json:"populationSize"`
	MaxStaleGenerations int     `json:"maxStaleGenerations"`
	Rounds              int     `json:"rounds"`
	BatchSize           int     `json:"batchSize"`
	BatchPolicy         string  `json:"batchPolicy"`
	Seed                int64   `json:"seed"`
}

// Run is the persisted record of one tuning run.
//
// Only summary numbers are kept. Tuned weights are installed into the model
// in memory and are never written here.
type Run struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	Config      RunConfig  `json:"config"`
	BestFitness float64    `json:"bestFitness"`
	BestRound   int        `json:"bestRound"`
	Accuracy    float64    `json:"accuracy"`
	Rounds      int        `json:"rounds"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// RunInfo is the listing view of a run.
type RunInfo struct {
	ID          string    `json:"id"`
	Status      RunStatus `json:"status"`
	BestFitness float64   `json:"bestFitness"`
	Rounds      int       `json:"rounds"`
	StartTime   time.Time `json:"startTime"`
	Engine      string    `json:"engine"`
	Dataset     string    `json:"dataset"`
}

// NewRun creates a running record with a fresh ID.
func NewRun(config RunConfig) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Status:    StatusRunning,
		Config:    config,
		StartTime: time.Now(),
	}
}

// Complete marks the run finished with its final numbers.
func (r *Run) Complete(bestFitness float64, bestRound, rounds int, accuracy float64) {
	now := time.Now()
	r.Status = StatusCompleted
	r.BestFitness = bestFitness
	r.BestRound = bestRound
	r.Rounds = rounds
	r.Accuracy = accuracy
	r.EndTime = &now
}

// Fail marks the run failed with err.
func (r *Run) Fail(err error) {
	now := time.Now()
	r.Status = StatusFailed
	r.Error = err.Error()
	r.EndTime = &now
}

// ToInfo converts a Run to its listing view.
func (r *Run) ToInfo() RunInfo {
	return RunInfo{
		ID:          r.ID,
		Status:      r.Status,
		BestFitness: r.BestFitness,
		Rounds:      r.Rounds,
		StartTime:   r.StartTime,
		Engine:      r.Config.Engine,
		Dataset:     r.Config.Dataset,
	}
}

// Validate checks that the record is complete enough to persist.
func (r *Run) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	switch r.Status {
	case StatusRunning, StatusCompleted, StatusFailed:
	default:
		return &ValidationError{Field: "Status", Reason: "unknown status " + string(r.Status)}
	}
	if r.StartTime.IsZero() {
		return &ValidationError{Field: "StartTime", Reason: "cannot be zero"}
	}
	if r.Rounds < 0 {
		return &ValidationError{Field: "Rounds", Reason: "cannot be negative"}
	}
	if r.Config.Rounds <= 0 {
		return &ValidationError{Field: "Config.Rounds", Reason: "must be positive"}
	}
	if r.Config.Partitions <= 0 {
		return &ValidationError{Field: "Config.Partitions", Reason: "must be positive"}
	}
	if r.Config.PopulationSize <= 0 {
		return &ValidationError{Field: "Config.PopulationSize", Reason: "must be positive"}
	}
	if r.Config.Engine == "" {
		return &ValidationError{Field: "Config.Engine", Reason: "cannot be empty"}
	}
	return nil
}

// ValidationError represents a run record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
