package interval

import "fmt"

// Space holds one interval per scalar parameter, in the model's flattening order.
type Space []Interval

// LengthError is returned when an individual and a space are not parallel.
type LengthError struct {
	Individual int
	Space      int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("individual has %d bits but search space has %d intervals", e.Individual, e.Space)
}

// Is matches any *LengthError.
func (e *LengthError) Is(target error) bool {
	_, ok := target.(*LengthError)
	return ok
}

// Uniform returns a space of n copies of iv.
func Uniform(iv Interval, n int) Space {
	s := make(Space, n)
	for i := range s {
		s[i] = iv
	}
	return s
}

// PointFor resolves every bit of individual against its paired interval.
func PointFor(individual []bool, space Space, partitions int) ([]float64, error) {
	if len(individual) != len(space) {
		return nil, &LengthError{Individual: len(individual), Space: len(space)}
	}
	point := make([]float64, len(individual))
	for i, side := range individual {
		point[i] = ValueFor(space[i], side, partitions)
	}
	return point, nil
}

// Narrow returns a new space where every interval has been narrowed toward the
// sub-partition selected by the matching bit. The receiver is left untouched.
func (s Space) Narrow(individual []bool, partitions int) (Space, error) {
	if len(individual) != len(s) {
		return nil, &LengthError{Individual: len(individual), Space: len(s)}
	}
	next := make(Space, len(s))
	for i, iv := range s {
		next[i] = Narrow(iv, Bit(individual[i]), partitions)
	}
	return next, nil
}

// MeanWidth is the average interval width, used to report refinement progress.
func (s Space) MeanWidth() float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, iv := range s {
		sum += iv.Width()
	}
	return sum / float64(len(s))
}
