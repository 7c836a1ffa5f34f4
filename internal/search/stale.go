package search

import (
	"log/slog"
	"math"
)

// StaleTracker counts consecutive generations without improvement of the best fitness.
type StaleTracker struct {
	// Patience is the number of stale generations tolerated before stopping.
	Patience int

	// Threshold is the minimum relative improvement that resets the counter.
	// Zero means any strict improvement counts.
	Threshold float64

	best       float64
	staleCount int
	seen       int
}

// NewStaleTracker returns a tracker that stops after patience stale generations.
func NewStaleTracker(patience int) *StaleTracker {
	return &StaleTracker{
		Patience: patience,
		best:     math.Inf(1),
	}
}

// Update records the current best fitness and reports whether to stop.
func (s *StaleTracker) Update(fitness float64) bool {
	s.seen++

	if s.seen == 1 {
		s.best = fitness
		return false
	}

	if s.improves(fitness) {
		s.best = fitness
		s.staleCount = 0
		return false
	}

	s.staleCount++
	if s.staleCount >= s.Patience {
		slog.Debug("No improvement within patience, stopping",
			"stale_count", s.staleCount,
			"patience", s.Patience,
			"best_fitness", s.best,
		)
		return true
	}
	return false
}

func (s *StaleTracker) improves(fitness float64) bool {
	if !(fitness < s.best) {
		return false
	}
	if s.Threshold <= 0 {
		return true
	}
	return (s.best-fitness)/math.Abs(s.best) >= s.Threshold
}

// Best returns the best fitness recorded so far.
func (s *StaleTracker) Best() float64 {
	return s.best
}

// StaleCount returns the current run of non-improving generations.
func (s *StaleTracker) StaleCount() int {
	return s.staleCount
}

// Generations returns how many updates were recorded.
func (s *StaleTracker) Generations() int {
	return s.seen
}
