// Package interval maps boolean choices onto per-parameter search ranges and
// narrows those ranges between refinement rounds.
package interval

import (
	"fmt"
	"math"
)

// Interval bounds the candidate range of one scalar parameter.
type Interval struct {
	Low  float64 `json:"low" toml:"low"`
	High float64 `json:"high" toml:"high"`
}

// New returns the interval [low, high] or an error when it is empty or not finite.
func New(low, high float64) (Interval, error) {
	iv := Interval{Low: low, High: high}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate reports whether low <= high and both bounds are finite.
func (iv Interval) Validate() error {
	if math.IsNaN(iv.Low) || math.IsNaN(iv.High) || math.IsInf(iv.Low, 0) || math.IsInf(iv.High, 0) {
		return fmt.Errorf("interval bounds must be finite: [%g, %g]", iv.Low, iv.High)
	}
	if iv.Low > iv.High {
		return fmt.Errorf("empty interval: low %g > high %g", iv.Low, iv.High)
	}
	return nil
}

// Width returns High - Low.
func (iv Interval) Width() float64 {
	return iv.High - iv.Low
}

// Contains reports whether v lies in [Low, High].
func (iv Interval) Contains(v float64) bool {
	return v >= iv.Low && v <= iv.High
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%g, %g]", iv.Low, iv.High)
}

// ValueFor returns the midpoint of the sub-range selected by side.
// false picks the first 1/partitions slice of the interval, true the second one.
// Only these two slices are addressable, whatever the partition count.
func ValueFor(iv Interval, side bool, partitions int) float64 {
	delta := iv.High - iv.Low
	lower := iv.Low + delta/float64(2*partitions)
	if !side {
		return lower
	}
	return lower + delta/float64(partitions)
}

// Narrow returns the slice of width (High-Low)/partitions at index sub.
// Callers pass the raw bit of the winning individual, so sub is 0 or 1 in practice.
func Narrow(iv Interval, sub, partitions int) Interval {
	step := (iv.High - iv.Low) / float64(partitions)
	low := iv.Low + float64(sub)*step
	return Interval{Low: low, High: low + step}
}

// Bit converts a boolean choice to the sub-partition index used by Narrow.
func Bit(side bool) int {
	if side {
		return 1
	}
	return 0
}
