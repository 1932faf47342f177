package icing

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TrailingMin computes, for each sample, the minimum of the valid values in the open
// interval (t-window, t). The sample at t is excluded. Positions with no valid earlier
// sample in the window are NaN.
func TrailingMin(times []time.Time, values []float64, window time.Duration) []float64 {
	n := len(times)
	result := make([]float64, n)
	buf := make([]float64, 0, 32)

	for i := 0; i < n; i++ {
		windowStart := times[i].Add(-window)

		buf = buf[:0]
		for j := i - 1; j >= 0 && times[j].After(windowStart); j-- {
			if !IsMissing(values[j]) {
				buf = append(buf, values[j])
			}
		}

		if len(buf) == 0 {
			result[i] = missing()
			continue
		}
		result[i] = floats.Min(buf)
	}

	return result
}

// CenteredMean computes, for each sample, the mean of the valid values within
// [t-window/2, t+window/2]. One valid value is enough to produce a result, so the
// edges of the series are not lost.
func CenteredMean(times []time.Time, values []float64, window time.Duration) []float64 {
	n := len(times)
	result := make([]float64, n)
	half := window / 2
	buf := make([]float64, 0, 32)

	for i := 0; i < n; i++ {
		windowStart := times[i].Add(-half)
		windowEnd := times[i].Add(half)

		lo := sort.Search(n, func(k int) bool {
			return !times[k].Before(windowStart)
		})

		buf = buf[:0]
		for j := lo; j < n && !times[j].After(windowEnd); j++ {
			if !IsMissing(values[j]) {
				buf = append(buf, values[j])
			}
		}

		if len(buf) == 0 {
			result[i] = missing()
			continue
		}
		result[i] = stat.Mean(buf, nil)
	}

	return result
}

// ClampNegative floors v at zero. Negative net change appears when the trailing minimum
// lags a rising frequency and carries no physical meaning. NaN stays NaN.
func ClampNegative(v float64) float64 {
	if IsMissing(v) {
		return v
	}
	return math.Max(v, 0)
}

// NoiseGate returns 0 when mean is strictly below threshold and mean otherwise. NaN stays NaN.
func NoiseGate(mean, threshold float64) float64 {
	if IsMissing(mean) {
		return mean
	}
	if mean < threshold {
		return 0
	}
	return mean
}
