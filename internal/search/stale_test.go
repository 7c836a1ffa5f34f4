package search

import "testing"

func TestStaleTracker(t *testing.T) {
	tests := []struct {
		name      string
		patience  int
		threshold float64
		costs     []float64
		stopAt    int // index of the update that should return true, -1 for never
	}{
		{"improving", 2, 0, []float64{5, 4, 3, 2, 1}, -1},
		{"flat", 3, 0, []float64{1, 1, 1, 1}, 3},
		{"equal is not improvement", 1, 0, []float64{2, 2}, 1},
		{"late stall", 2, 0, []float64{5, 4, 4, 4}, 3},
		{"below threshold", 2, 0.1, []float64{10, 9.5, 9.2}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewStaleTracker(tt.patience)
			tracker.Threshold = tt.threshold

			stopped := -1
			for i, c := range tt.costs {
				if tracker.Update(c) {
					stopped = i
					break
				}
			}
			if stopped != tt.stopAt {
				t.Errorf("stopped at %d, want %d", stopped, tt.stopAt)
			}
		})
	}
}

func TestStaleTrackerBest(t *testing.T) {
	tracker := NewStaleTracker(5)
	for _, c := range []float64{3, 1, 2} {
		tracker.Update(c)
	}

	if tracker.Best() != 1 {
		t.Errorf("Best = %f, want 1", tracker.Best())
	}
	if tracker.StaleCount() != 1 {
		t.Errorf("StaleCount = %d, want 1", tracker.StaleCount())
	}
	if tracker.Generations() != 3 {
		t.Errorf("Generations = %d, want 3", tracker.Generations())
	}
}
