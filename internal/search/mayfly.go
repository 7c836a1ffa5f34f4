package search

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyConfig configures the mayfly-backed engine.
type MayflyConfig struct {
	// MaxIterations is the mayfly iteration budget. Zero uses the stale-generation
	// budget passed to Evolve.
	MaxIterations int
	Seed          int64
}

// minMayflyPopulation is the smallest swarm the mayfly library accepts.
const minMayflyPopulation = 20

// CheckPopulation rejects fixed seedings and swarms below the library minimum.
func (cfg MayflyConfig) CheckPopulation(size int, seeding Seeding) error {
	if seeding != SeedRandom {
		return fmt.Errorf("mayfly engine only supports random seeding, got %s", seeding)
	}
	if size < minMayflyPopulation {
		return fmt.Errorf("mayfly engine needs at least %d individuals, got %d", minMayflyPopulation, size)
	}
	return nil
}

// NewMayfly returns a factory of engines that run the continuous mayfly
// algorithm over [0, 1]^n and read a bit as position > 0.5.
func NewMayfly(cfg MayflyConfig) Factory {
	seeds := rand.New(rand.NewSource(cfg.Seed))
	return func(fitness Fitness) (Engine, error) {
		if fitness == nil {
			return nil, fmt.Errorf("fitness cannot be nil")
		}
		return &Mayfly{
			cfg:     cfg,
			fitness: fitness,
			seed:    seeds.Int63(),
		}, nil
	}
}

// Mayfly wraps the external mayfly library as a bit-string Engine.
// Mayfly has no notion of stale generations, so its budget is an iteration count.
type Mayfly struct {
	cfg     MayflyConfig
	fitness Fitness
	seed    int64

	size   int
	length int
	ready  bool

	fitErr      error
	best        Individual
	bestFitness float64
	evolved     bool
}

// ConstructPopulation records the swarm shape. Mayfly always seeds randomly.
func (m *Mayfly) ConstructPopulation(size, length int, seeding Seeding) error {
	if err := validatePopulation(size, length); err != nil {
		return err
	}
	if err := m.cfg.CheckPopulation(size, seeding); err != nil {
		return err
	}
	m.size = size
	m.length = length
	m.ready = true
	m.evolved = false
	return nil
}

// Evolve runs the mayfly optimizer on the thresholded objective.
func (m *Mayfly) Evolve(maxStaleGenerations int) error {
	if !m.ready {
		return ErrNoPopulation
	}

	iters := m.cfg.MaxIterations
	if iters <= 0 {
		iters = maxStaleGenerations
	}
	if iters <= 0 {
		return fmt.Errorf("mayfly iteration budget must be positive, got %d", iters)
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = m.objective
	config.ProblemSize = m.length
	config.MaxIterations = iters
	config.NPop = m.size
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.seed))

	m.fitErr = nil
	result, err := mayfly.Optimize(config)
	if m.fitErr != nil {
		return m.fitErr
	}
	if err != nil {
		return fmt.Errorf("mayfly search failed: %w", err)
	}

	m.best = threshold(result.GlobalBest.Position)
	m.bestFitness = result.GlobalBest.Cost
	m.evolved = true
	return nil
}

// BestAllTime returns mayfly's global best, thresholded to bits.
func (m *Mayfly) BestAllTime() (Individual, float64, error) {
	if !m.evolved {
		return nil, 0, ErrNotEvolved
	}
	return m.best.Clone(), m.bestFitness, nil
}

func (m *Mayfly) objective(x []float64) float64 {
	if m.fitErr != nil {
		return math.Inf(1)
	}
	f, err := m.fitness(threshold(x))
	if err != nil {
		m.fitErr = err
		return math.Inf(1)
	}
	return f
}

func threshold(x []float64) Individual {
	ind := make(Individual, len(x))
	for i, v := range x {
		ind[i] = v > 0.5
	}
	return ind
}
