// Package sweep drives the generator across a frequency plan and records the
// peak-to-peak amplitude the scope sees at each frequency.
package sweep

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

const (
	DefaultStartKHz = 5000
	DefaultStopKHz  = 150000
	DefaultPoints   = 20
)

// Plan is an immutable, strictly increasing list of frequencies in kHz
type Plan struct {
	values []float64
}

// NewLogPlan returns the given number of logarithmically spaced frequencies from
// start (inclusive) to stop (exclusive) followed by the stop frequency itself,
// i.e. points+1 values in total. The first value is exactly start and the last
// is exactly stop.
func NewLogPlan(startKHz, stopKHz float64, points int) (Plan, error) {
	if points < 1 {
		return Plan{}, fmt.Errorf("sweep plan needs at least 1 point: %d given", points)
	}
	if startKHz <= 0 {
		return Plan{}, fmt.Errorf("sweep plan start must be positive: %g kHz given", startKHz)
	}
	if startKHz >= stopKHz {
		return Plan{}, fmt.Errorf("sweep plan stop must be greater than start: %g..%g kHz given", startKHz, stopKHz)
	}

	// spacing points over [start, stop) and appending stop is the same as spacing points+1 over [start, stop]
	values := floats.LogSpan(make([]float64, points+1), startKHz, stopKHz)
	values[0], values[points] = startKHz, stopKHz

	return Plan{values: values}, nil
}

// Values returns a copy of the frequencies
func (p Plan) Values() []float64 {
	return slices.Clone(p.values)
}

func (p Plan) Len() int {
	return len(p.values)
}

// At returns the frequency at index i
func (p Plan) At(i int) float64 {
	return p.values[i]
}

func (p Plan) Start() float64 {
	if len(p.values) == 0 {
		return 0
	}
	return p.values[0]
}

func (p Plan) Stop() float64 {
	if len(p.values) == 0 {
		return 0
	}
	return p.values[len(p.values)-1]
}
