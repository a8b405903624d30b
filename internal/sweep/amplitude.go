package sweep

import (
	"fmt"
	"math"
	"slices"

	"github.com/dustin/go-humanize"
)

// PeakToPeak returns (max(raw) - min(raw)) * scale in volts. The span is taken
// on the raw levels so the result is a single rounding of the product.
// An empty capture has no amplitude.
func PeakToPeak(raw []int8, scale float64) float64 {
	if len(raw) == 0 {
		return 0
	}

	hi, lo := slices.Max(raw), slices.Min(raw)
	return (float64(hi) - float64(lo)) * math.Abs(scale)
}

// HumanHz formats a frequency given in kHz with an SI prefix, e.g. "5.00 MHz"
func HumanHz(kHz float64) string {
	value, prefix := humanize.ComputeSI(kHz * 1e3)
	return fmt.Sprintf("%0.2f %sHz", value, prefix)
}
