package hem

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean of values, or NaN for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

// MeanStd returns the mean and population standard deviation of values.
// Both are NaN for an empty slice.
func MeanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.PopMeanStdDev(values, nil)
}

// Max returns the largest value, or NaN for an empty slice.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return floats.Max(values)
}

// Median returns the median of values. Even-length inputs average the two
// middle elements. An empty slice yields 0 so that callers treat it as
// "no signal" rather than propagating NaN.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// MAD returns the median absolute deviation from the median (unscaled).
func MAD(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	med := Median(values)
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - med)
	}
	return Median(dev)
}

// MovingAverage smooths values with a length-k box filter aligned to the
// input ("same" convolution). Samples outside the series count as zero, so
// the first and last k/2 outputs are pulled toward zero. k is clamped to
// len(values); k <= 1 returns a copy of the input.
func MovingAverage(values []float64, k int) []float64 {
	out := make([]float64, len(values))
	if k <= 1 || len(values) == 0 {
		copy(out, values)
		return out
	}
	n := len(values)
	if k > n {
		k = n
	}

	// Output i covers full-convolution index i+(k-1)/2, i.e. inputs
	// [i+(k-1)/2-(k-1), i+(k-1)/2].
	offset := (k - 1) / 2
	for i := range out {
		hi := i + offset
		lo := hi - (k - 1)
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		out[i] = floats.Sum(values[lo:hi+1]) / float64(k)
	}
	return out
}

// Diff returns the first difference of values with the first element
// differenced against itself, so out[0] is always 0.
func Diff(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		out[i] = values[i] - values[i-1]
	}
	return out
}
