// Package search provides population-based engines that evolve boolean
// vectors toward minimal fitness.
package search

import (
	"errors"
	"fmt"
	"math/rand"
)

// Individual is one candidate: a boolean choice per scalar parameter.
type Individual []bool

// Clone returns an independent copy.
func (ind Individual) Clone() Individual {
	return append(Individual(nil), ind...)
}

// Fitness scores an individual. Lower is better.
type Fitness func(Individual) (float64, error)

// Seeding selects how a fresh population is initialized.
type Seeding int

const (
	// SeedRandom draws every bit uniformly.
	SeedRandom Seeding = iota
	// SeedZeros starts every individual at all-false.
	SeedZeros
	// SeedOnes starts every individual at all-true.
	SeedOnes
)

func (s Seeding) String() string {
	switch s {
	case SeedRandom:
		return "random"
	case SeedZeros:
		return "zeros"
	case SeedOnes:
		return "ones"
	default:
		return fmt.Sprintf("seeding(%d)", int(s))
	}
}

// ParseSeeding converts a flag value to a Seeding.
func ParseSeeding(s string) (Seeding, error) {
	switch s {
	case "random", "":
		return SeedRandom, nil
	case "zeros":
		return SeedZeros, nil
	case "ones":
		return SeedOnes, nil
	default:
		return 0, fmt.Errorf("unknown seeding: %q", s)
	}
}

// New returns an individual of the given length initialized per s.
func (s Seeding) New(length int, rng *rand.Rand) Individual {
	ind := make(Individual, length)
	switch s {
	case SeedOnes:
		for i := range ind {
			ind[i] = true
		}
	case SeedRandom:
		for i := range ind {
			ind[i] = rng.Intn(2) == 1
		}
	}
	return ind
}

// Engine is a population search bound to one fitness objective.
type Engine interface {
	// ConstructPopulation prepares a population of size individuals of the given length.
	ConstructPopulation(size, length int, seeding Seeding) error

	// Evolve runs until maxStaleGenerations generations pass without improvement
	// or the engine's own budget is exhausted.
	Evolve(maxStaleGenerations int) error

	// BestAllTime returns the best individual seen during evolution and its fitness.
	BestAllTime() (Individual, float64, error)
}

// Factory builds an engine that minimizes fitness.
type Factory func(fitness Fitness) (Engine, error)

// Checker reports whether engines from a factory can run a population of the
// given size and seeding, so callers can reject a configuration before any
// fitness is evaluated.
type Checker func(size int, seeding Seeding) error

var (
	// ErrNoPopulation is returned by Evolve before ConstructPopulation.
	ErrNoPopulation = errors.New("search: population not constructed")
	// ErrNotEvolved is returned by BestAllTime before a successful Evolve.
	ErrNotEvolved = errors.New("search: no evolution has completed")
)

func validatePopulation(size, length int) error {
	if size <= 0 {
		return fmt.Errorf("population size must be positive, got %d", size)
	}
	if length <= 0 {
		return fmt.Errorf("individual length must be positive, got %d", length)
	}
	return nil
}
