package sweep

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeakToPeak(t *testing.T) {
	testCases := []struct {
		name     string
		raw      []int8
		scale    float64
		expected float64
	}{
		{"symmetric", []int8{-100, 0, 100}, 0.015625, 200 * 0.015625},
		{"full range", []int8{-128, 127}, 0.0625, 255 * 0.0625},
		{"offset", []int8{10, 20, 15, 30}, 0.5, 20 * 0.5},
		{"flat", []int8{7, 7, 7}, 0.04, 0},
		{"inverted scale", []int8{-10, 10}, -0.5, 10},
		{"single sample", []int8{42}, 0.04, 0},
		{"empty", nil, 0.04, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, PeakToPeak(tc.raw, tc.scale))
		})
	}
}

func TestPeakToPeak_ExactProduct(t *testing.T) {
	captures := [][]int8{
		{-128, 127},
		{-64, -20, 0, 20, 63},
		{-100, 0, 100},
		{3, 17, -41, 99, 12},
		{-1, 1},
	}

	// typical wfmpre:ymult? replies, none of them a power of two
	for _, scale := range []float64{0.04, 0.02, 0.06, 0.0016, 4.0e-3, 0.08} {
		for _, raw := range captures {
			hi, lo := slices.Max(raw), slices.Min(raw)
			expected := (float64(hi) - float64(lo)) * scale

			assert.Equal(t, expected, PeakToPeak(raw, scale), "raw=%v scale=%g", raw, scale)
		}
	}
}

func TestHumanHz(t *testing.T) {
	assert.Equal(t, "5.00 MHz", HumanHz(5000))
	assert.Equal(t, "150.00 MHz", HumanHz(150000))
	assert.Equal(t, "9.00 kHz", HumanHz(9))
}
