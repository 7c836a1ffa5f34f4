// Package model describes the contract a predictive model must satisfy to have
// its parameters searched, and how a flat parameter vector maps onto the
// model's parameter groups.
package model

import "gonum.org/v1/gonum/mat"

// Model is a predictor whose parameters can be overwritten and scored.
//
// Implementations are not expected to be safe for concurrent use: installing
// parameters and computing the loss must happen back to back.
type Model interface {
	// Layout describes the parameter groups in flattening order.
	Layout() Layout

	// UpdateParameters overwrites every parameter group. params must match Layout.
	UpdateParameters(params []Tensor) error

	// Score returns an accuracy-like metric on the given batch (higher is better).
	Score(examples *mat.Dense, labels []int) (float64, error)

	// Loss returns the scalar loss on the given batch (lower is better).
	Loss(examples *mat.Dense, labels []int) (float64, error)
}
