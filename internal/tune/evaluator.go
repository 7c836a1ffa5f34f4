package tune

import (
	"fmt"

	"github.com/cwbudde/geneticweights/internal/data"
	"github.com/cwbudde/geneticweights/internal/interval"
	"github.com/cwbudde/geneticweights/internal/model"
	"github.com/cwbudde/geneticweights/internal/search"
)

// Evaluator turns an individual into model parameters and scores them.
//
// Evaluate installs parameters into the shared model, so an Evaluator must not
// be used from more than one goroutine, and the model is left holding the
// last evaluated candidate.
type Evaluator struct {
	space      interval.Space
	partitions int
	layout     model.Layout
	model      model.Model
	supply     data.Supply
}

// NewEvaluator binds an evaluator to a search space and model.
func NewEvaluator(space interval.Space, partitions int, layout model.Layout, m model.Model, supply data.Supply) *Evaluator {
	return &Evaluator{
		space:      space,
		partitions: partitions,
		layout:     layout,
		model:      m,
		supply:     supply,
	}
}

// UpdateSearchIntervals replaces the search space wholesale.
func (e *Evaluator) UpdateSearchIntervals(space interval.Space) {
	e.space = space
}

// Space returns the current search space.
func (e *Evaluator) Space() interval.Space {
	return e.space
}

// Point resolves an individual against the current search space.
func (e *Evaluator) Point(ind search.Individual) ([]float64, error) {
	return interval.PointFor(ind, e.space, e.partitions)
}

// Install reshapes point per the layout and writes it into the model.
func (e *Evaluator) Install(point []float64) error {
	params, err := e.layout.Reshape(point)
	if err != nil {
		return err
	}
	if err := e.model.UpdateParameters(params); err != nil {
		return fmt.Errorf("failed to update model parameters: %w", err)
	}
	return nil
}

// Evaluate returns the model's loss on one batch with ind installed.
func (e *Evaluator) Evaluate(ind search.Individual) (float64, error) {
	point, err := e.Point(ind)
	if err != nil {
		return 0, err
	}
	if err := e.Install(point); err != nil {
		return 0, err
	}

	batch, err := e.supply()
	if err != nil {
		return 0, fmt.Errorf("failed to draw batch: %w", err)
	}

	loss, err := e.model.Loss(batch.Examples, batch.Labels)
	if err != nil {
		return 0, fmt.Errorf("failed to compute loss: %w", err)
	}
	return loss, nil
}
