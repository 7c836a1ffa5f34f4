// Package tune searches model parameters by interval refinement: every scalar
// parameter gets a search interval, a population search picks one half of each
// interval, and the intervals are narrowed toward the winner before the next round.
package tune

import (
	"fmt"

	"github.com/cwbudde/geneticweights/internal/data"
	"github.com/cwbudde/geneticweights/internal/interval"
	"github.com/cwbudde/geneticweights/internal/search"
)

// Config holds the settings of one tuning run.
type Config struct {
	// Interval is the initial search interval of every parameter.
	Interval interval.Interval `toml:"interval"`

	// Partitions is the number of slices an interval is cut into per round.
	Partitions int `toml:"partitions"`

	// PopulationSize is the number of individuals per round.
	PopulationSize int `toml:"population_size"`

	// MaxStaleGenerations bounds evolution within a round: it stops after this
	// many generations without improvement.
	MaxStaleGenerations int `toml:"max_stale_generations"`

	// Rounds is the number of refinement rounds. Tune takes its own round
	// count; this field is what callers pass when they follow the Config.
	Rounds int `toml:"rounds"`

	Seeding     search.Seeding   `toml:"-"`
	BatchPolicy data.BatchPolicy `toml:"batch_policy"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Interval:            interval.Interval{Low: -1, High: 1},
		Partitions:          9,
		PopulationSize:      150,
		MaxStaleGenerations: 15,
		Rounds:              5,
		Seeding:             search.SeedRandom,
		BatchPolicy:         data.PerEvaluation,
	}
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid config: " + e.Field + ": " + e.Reason
}

// Is matches any *ConfigError.
func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// Validate checks every field.
func (c Config) Validate() error {
	if err := c.Interval.Validate(); err != nil {
		return &ConfigError{Field: "interval", Reason: err.Error()}
	}
	if c.Partitions <= 0 {
		return &ConfigError{Field: "partitions", Reason: fmt.Sprintf("must be positive, got %d", c.Partitions)}
	}
	if c.PopulationSize <= 0 {
		return &ConfigError{Field: "population_size", Reason: fmt.Sprintf("must be positive, got %d", c.PopulationSize)}
	}
	if c.MaxStaleGenerations <= 0 {
		return &ConfigError{Field: "max_stale_generations", Reason: fmt.Sprintf("must be positive, got %d", c.MaxStaleGenerations)}
	}
	if c.Rounds <= 0 {
		return &ConfigError{Field: "rounds", Reason: fmt.Sprintf("must be positive, got %d", c.Rounds)}
	}
	if _, err := data.ParseBatchPolicy(string(c.BatchPolicy)); err != nil {
		return &ConfigError{Field: "batch_policy", Reason: err.Error()}
	}
	return nil
}
