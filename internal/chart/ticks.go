package chart

import (
	"math"

	"gonum.org/v1/plot"

	"github.com/roman-kulish/scope-bandwidth/internal/sweep"
)

// frequencyTicks places labelled ticks at 1, 2 and 5 of every decade and
// unlabelled ones in between. Values are kHz, labels use SI prefixes.
type frequencyTicks struct{}

func (frequencyTicks) Ticks(min, max float64) []plot.Tick {
	if min <= 0 || max < min {
		return nil
	}

	var ticks []plot.Tick
	for exp := int(math.Floor(math.Log10(min))); exp <= int(math.Ceil(math.Log10(max))); exp++ {
		decade := math.Pow10(exp)
		for m := 1; m < 10; m++ {
			v := float64(m) * decade
			if v < min || v > max {
				continue
			}

			tick := plot.Tick{Value: v}
			if m == 1 || m == 2 || m == 5 {
				tick.Label = sweep.HumanHz(v)
			}
			ticks = append(ticks, tick)
		}
	}

	return ticks
}
