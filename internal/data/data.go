// Package data supplies labelled example batches to fitness evaluation.
package data

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Batch is a set of examples (one per row) and their class labels.
type Batch struct {
	Examples *mat.Dense
	Labels   []int
}

// Len returns the number of examples in the batch.
func (b Batch) Len() int {
	return len(b.Labels)
}

// Supply produces one batch per call.
type Supply func() (Batch, error)

// Fixed returns a Supply that always yields b.
func Fixed(b Batch) Supply {
	return func() (Batch, error) {
		return b, nil
	}
}

// BatchPolicy controls how often fitness evaluation draws a new batch.
type BatchPolicy string

const (
	// PerEvaluation draws a fresh batch for every individual evaluated.
	PerEvaluation BatchPolicy = "per-evaluation"
	// PerRound draws one batch at the start of a round and reuses it for
	// every evaluation in that round.
	PerRound BatchPolicy = "per-round"
)

// ParseBatchPolicy converts a flag value to a BatchPolicy.
func ParseBatchPolicy(s string) (BatchPolicy, error) {
	switch BatchPolicy(s) {
	case PerEvaluation, "":
		return PerEvaluation, nil
	case PerRound:
		return PerRound, nil
	default:
		return "", fmt.Errorf("unknown batch policy: %q (want %s or %s)", s, PerEvaluation, PerRound)
	}
}

// ForRound returns the supply evaluations should use for one round under policy p.
// For PerRound the batch is drawn immediately.
func (p BatchPolicy) ForRound(supply Supply) (Supply, error) {
	switch p {
	case PerEvaluation, "":
		return supply, nil
	case PerRound:
		b, err := supply()
		if err != nil {
			return nil, fmt.Errorf("failed to draw round batch: %w", err)
		}
		return Fixed(b), nil
	default:
		return nil, fmt.Errorf("unknown batch policy: %q", string(p))
	}
}
