package sweep

import (
	"iter"
	"time"

	"github.com/google/uuid"
)

// Result holds one amplitude per planned frequency. Amplitudes start out as zero
// and are filled in as the sweep progresses.
type Result struct {
	RunID       uuid.UUID
	Started     time.Time
	Frequencies []float64 // kHz
	Amplitudes  []float64 // Vpp
}

// NewResult creates a zero-filled Result for the plan
func NewResult(plan Plan, started time.Time) *Result {
	return &Result{
		RunID:       uuid.New(),
		Started:     started,
		Frequencies: plan.Values(),
		Amplitudes:  make([]float64, plan.Len()),
	}
}

func (r *Result) Len() int {
	return len(r.Frequencies)
}

// All iterates over (frequency, amplitude) pairs in plan order
func (r *Result) All() iter.Seq2[float64, float64] {
	return func(yield func(float64, float64) bool) {
		for i, f := range r.Frequencies {
			if !yield(f, r.Amplitudes[i]) {
				return
			}
		}
	}
}
