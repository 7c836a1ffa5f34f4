package model

import (
	"fmt"
	"slices"
)

// Tensor is one parameter group: a row-major value slice and its shape.
type Tensor struct {
	Shape []int
	Data  []float64
}

// Group describes one parameter group by shape and element count.
type Group struct {
	Shape []int `json:"shape"`
	Size  int   `json:"size"`
}

// NewGroup returns a group whose Size is the product of shape.
func NewGroup(shape ...int) Group {
	return Group{Shape: append([]int(nil), shape...), Size: product(shape)}
}

// Layout is the ordered list of parameter groups of a model.
type Layout []Group

// ShapeError reports a mismatch between a vector or tensor and the layout.
type ShapeError struct {
	Field    string
	Expected string
	Actual   string
}

func newShapeError(field string, expected, actual any) *ShapeError {
	return &ShapeError{Field: field, Expected: fmt.Sprint(expected), Actual: fmt.Sprint(actual)}
}

func (e *ShapeError) Error() string {
	return "shape mismatch: " + e.Field + " (expected " + e.Expected + ", got " + e.Actual + ")"
}

// Is matches any *ShapeError.
func (e *ShapeError) Is(target error) bool {
	_, ok := target.(*ShapeError)
	return ok
}

// Size returns the total number of scalar parameters.
func (l Layout) Size() int {
	var n int
	for _, g := range l {
		n += g.Size
	}
	return n
}

// Validate checks that every group's Size agrees with its Shape.
func (l Layout) Validate() error {
	for i, g := range l {
		if g.Size < 0 {
			return fmt.Errorf("group %d: negative size %d", i, g.Size)
		}
		if p := product(g.Shape); p != g.Size {
			return newShapeError(fmt.Sprintf("group %d element count for shape %v", i, g.Shape), p, g.Size)
		}
	}
	return nil
}

// Reshape slices point contiguously into one tensor per group, in layout order.
// Values are copied, so the returned tensors do not alias point.
func (l Layout) Reshape(point []float64) ([]Tensor, error) {
	if len(point) != l.Size() {
		return nil, newShapeError("point length", l.Size(), len(point))
	}

	tensors := make([]Tensor, len(l))
	offset := 0
	for i, g := range l {
		data := make([]float64, g.Size)
		copy(data, point[offset:offset+g.Size])
		tensors[i] = Tensor{
			Shape: append([]int(nil), g.Shape...),
			Data:  data,
		}
		offset += g.Size
	}
	return tensors, nil
}

// Check verifies that params matches the layout group by group.
func (l Layout) Check(params []Tensor) error {
	if len(params) != len(l) {
		return newShapeError("parameter group count", len(l), len(params))
	}
	for i, g := range l {
		if len(params[i].Data) != g.Size {
			return newShapeError(fmt.Sprintf("group %d length", i), g.Size, len(params[i].Data))
		}
		if !slices.Equal(params[i].Shape, g.Shape) {
			return newShapeError(fmt.Sprintf("group %d shape", i), g.Shape, params[i].Shape)
		}
	}
	return nil
}

// Flatten concatenates the tensors' data in order.
func Flatten(tensors []Tensor) []float64 {
	n := 0
	for _, t := range tensors {
		n += len(t.Data)
	}
	flat := make([]float64, 0, n)
	for _, t := range tensors {
		flat = append(flat, t.Data...)
	}
	return flat
}

func product(shape []int) int {
	p := 1
	for _, d := range shape {
		p *= d
	}
	return p
}
