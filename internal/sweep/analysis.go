package sweep

import (
	"errors"
	"fmt"
	"math"
)

// ErrBandwidthNotMet is returned by Verify when the amplitude at the top of the
// band is below the required minimum
var ErrBandwidthNotMet = errors.New("bandwidth requirement not met")

// Analysis summarises a completed sweep against its first point.
// The -3 dB point is where the amplitude first falls below Reference/√2.
type Analysis struct {
	Reference float64 // Vpp at the first frequency
	Cutoff    float64 // Reference/√2

	Found           bool    // whether the amplitude fell below Cutoff
	CutoffFrequency float64 // kHz, interpolated on a log-frequency axis

	StopFrequency float64 // kHz
	StopAmplitude float64 // Vpp at the last frequency
	MinAmplitude  float64
	MaxAmplitude  float64
}

// Analyze finds the -3 dB frequency of the result
func Analyze(res *Result) Analysis {
	if res.Len() == 0 {
		return Analysis{}
	}

	a := Analysis{
		Reference:     res.Amplitudes[0],
		Cutoff:        res.Amplitudes[0] / math.Sqrt2,
		StopFrequency: res.Frequencies[res.Len()-1],
		StopAmplitude: res.Amplitudes[res.Len()-1],
		MinAmplitude:  res.Amplitudes[0],
		MaxAmplitude:  res.Amplitudes[0],
	}

	for i := 1; i < res.Len(); i++ {
		a.MinAmplitude = math.Min(a.MinAmplitude, res.Amplitudes[i])
		a.MaxAmplitude = math.Max(a.MaxAmplitude, res.Amplitudes[i])

		if a.Found || res.Amplitudes[i] >= a.Cutoff {
			continue
		}

		f1, f2 := res.Frequencies[i-1], res.Frequencies[i]
		v1, v2 := res.Amplitudes[i-1], res.Amplitudes[i]

		// v1 >= cutoff > v2, so v1 != v2
		t := (v1 - a.Cutoff) / (v1 - v2)
		a.CutoffFrequency = math.Exp(math.Log(f1) + t*(math.Log(f2)-math.Log(f1)))
		a.Found = true
	}

	return a
}

// Verify checks that the amplitude at the stop frequency is at least minVpp
func (a Analysis) Verify(minVpp float64) error {
	if a.StopAmplitude < minVpp {
		return fmt.Errorf("%w: %.3f Vpp at %s, at least %.3f Vpp required",
			ErrBandwidthNotMet, a.StopAmplitude, HumanHz(a.StopFrequency), minVpp)
	}
	return nil
}
