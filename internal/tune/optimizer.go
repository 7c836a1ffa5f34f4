package tune

import (
	"context"
	"errors"
	"fmt"
	"math"
	"log/slog"
	"time"

	"github.com/cwbudde/geneticweights/internal/data"
	"github.com/cwbudde/geneticweights/internal/interval"
	"github.com/cwbudde/geneticweights/internal/model"
	"github.com/cwbudde/geneticweights/internal/search"
)

// State is the lifecycle position of an Optimizer.
type State int

const (
	StateIdle State = iota
	StateRefining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefining:
		return "refining"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrNaNFitness is returned when a round's best fitness is NaN, which no
// later round could ever improve on.
var ErrNaNFitness = errors.New("best fitness is NaN")

// BestResult is the lowest-fitness point found so far.
type BestResult struct {
	Point   []float64
	Fitness float64
	Round   int
}

// RoundSummary describes one completed refinement round.
type RoundSummary struct {
	Round       int
	Fitness     float64 // best fitness of this round
	BestFitness float64 // best fitness across all rounds so far
	Point       []float64
	MeanWidth   float64 // mean interval width after narrowing
	Duration    time.Duration
}

// Result is returned by Tune.
type Result struct {
	Best   BestResult
	Rounds []RoundSummary
}

// Optimizer runs interval-refinement rounds with a pluggable search engine.
type Optimizer struct {
	config  Config
	engines search.Factory

	// OnRound, when set, is called after every round. An error aborts the run.
	OnRound func(RoundSummary) error

	state State
	round int
	best  *BestResult
}

// New validates config and returns an idle optimizer. Each check is run
// against the population size and seeding, so engine limits surface here
// instead of during the first round.
func New(config Config, engines search.Factory, checks ...search.Checker) (*Optimizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if engines == nil {
		return nil, &ConfigError{Field: "engine", Reason: "search engine factory cannot be nil"}
	}
	for _, check := range checks {
		if err := check(config.PopulationSize, config.Seeding); err != nil {
			return nil, &ConfigError{Field: "population_size", Reason: err.Error()}
		}
	}
	return &Optimizer{
		config:  config,
		engines: engines,
	}, nil
}

// Config returns the optimizer's configuration.
func (o *Optimizer) Config() Config {
	return o.config
}

// State returns the current lifecycle state.
func (o *Optimizer) State() State {
	return o.state
}

// Round returns the round in progress, or the last completed one once done.
func (o *Optimizer) Round() int {
	return o.round
}

// Best returns the best result so far, if any round has completed.
func (o *Optimizer) Best() (BestResult, bool) {
	if o.best == nil {
		return BestResult{}, false
	}
	return *o.best, true
}

// Tune searches m's parameters for the given number of rounds and finally
// installs the best point found into m. Batches come from supply.
// The rounds argument wins over Config.Rounds, which only seeds callers that
// build their settings from a Config.
//
// Errors from the engine, the model or the supply abort the run and are
// returned wrapped; m then holds whatever was last evaluated.
func (o *Optimizer) Tune(m model.Model, supply data.Supply, rounds int, verbose bool) (*Result, error) {
	if rounds <= 0 {
		return nil, &ConfigError{Field: "rounds", Reason: fmt.Sprintf("must be positive, got %d", rounds)}
	}
	if m == nil || supply == nil {
		return nil, &ConfigError{Field: "model", Reason: "model and data supply are required"}
	}

	layout := m.Layout()
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model layout: %w", err)
	}
	n := layout.Size()
	if n == 0 {
		return nil, fmt.Errorf("model has no parameters to tune")
	}

	level := slog.LevelDebug
	if verbose {
		level = slog.LevelInfo
	}

	o.state = StateRefining
	o.round = 0
	o.best = nil

	cfg := o.config
	space := interval.Uniform(cfg.Interval, n)
	result := &Result{Rounds: make([]RoundSummary, 0, rounds)}

	slog.Info("Starting interval refinement",
		"parameters", n,
		"rounds", rounds,
		"partitions", cfg.Partitions,
		"population_size", cfg.PopulationSize,
		"interval", cfg.Interval.String(),
	)

	for k := 1; k <= rounds; k++ {
		o.round = k
		start := time.Now()

		summary, next, err := o.runRound(k, space, layout, m, supply)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", k, err)
		}
		space = next
		summary.Duration = time.Since(start)
		result.Rounds = append(result.Rounds, summary)

		slog.Log(context.Background(), level, "Round complete",
			"round", k,
			"of", rounds,
			"best_fitness", summary.Fitness,
			"best_point", summary.Point,
			"overall_best", summary.BestFitness,
			"mean_width", summary.MeanWidth,
			"elapsed", summary.Duration,
		)

		if o.OnRound != nil {
			if err := o.OnRound(summary); err != nil {
				return nil, fmt.Errorf("round %d hook: %w", k, err)
			}
		}
	}

	params, err := layout.Reshape(o.best.Point)
	if err != nil {
		return nil, err
	}
	if err := m.UpdateParameters(params); err != nil {
		return nil, fmt.Errorf("failed to install best parameters: %w", err)
	}

	o.state = StateDone
	result.Best = *o.best

	slog.Info("Interval refinement complete",
		"best_fitness", o.best.Fitness,
		"best_round", o.best.Round,
	)
	return result, nil
}

// runRound evolves one population over space and returns the round summary
// together with the narrowed space for the next round.
func (o *Optimizer) runRound(k int, space interval.Space, layout model.Layout, m model.Model, supply data.Supply) (RoundSummary, interval.Space, error) {
	cfg := o.config

	roundSupply, err := cfg.BatchPolicy.ForRound(supply)
	if err != nil {
		return RoundSummary{}, nil, err
	}
	eval := NewEvaluator(space, cfg.Partitions, layout, m, roundSupply)

	engine, err := o.engines(eval.Evaluate)
	if err != nil {
		return RoundSummary{}, nil, fmt.Errorf("failed to create search engine: %w", err)
	}
	if err := engine.ConstructPopulation(cfg.PopulationSize, len(space), cfg.Seeding); err != nil {
		return RoundSummary{}, nil, fmt.Errorf("failed to construct population: %w", err)
	}
	if err := engine.Evolve(cfg.MaxStaleGenerations); err != nil {
		return RoundSummary{}, nil, err
	}

	winner, fitness, err := engine.BestAllTime()
	if err != nil {
		return RoundSummary{}, nil, err
	}
	if math.IsNaN(fitness) {
		return RoundSummary{}, nil, ErrNaNFitness
	}
	point, err := eval.Point(winner)
	if err != nil {
		return RoundSummary{}, nil, err
	}

	if o.best == nil || fitness < o.best.Fitness {
		o.best = &BestResult{Point: point, Fitness: fitness, Round: k}
	}

	next, err := space.Narrow(winner, cfg.Partitions)
	if err != nil {
		return RoundSummary{}, nil, err
	}

	return RoundSummary{
		Round:       k,
		Fitness:     fitness,
		BestFitness: o.best.Fitness,
		Point:       point,
		MeanWidth:   next.MeanWidth(),
	}, next, nil
}
