package icing

import (
	"math"
	"testing"
	"time"
)

var testStart = time.Date(2025, time.February, 4, 12, 0, 0, 0, time.UTC)

func minuteTimes(n int) []time.Time {
	times := make([]time.Time, n)
	for i := range times {
		times[i] = testStart.Add(time.Duration(i) * time.Minute)
	}
	return times
}

func sameValue(a, b, epsilon float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= epsilon
}

func TestTrailingMin(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name     string
		values   []float64
		window   time.Duration
		expected []float64
	}{
		{
			name:     "first sample has no history",
			values:   []float64{10, 11, 12},
			window:   15 * time.Minute,
			expected: []float64{nan, 10, 10},
		},
		{
			name:     "current outlier does not affect its own minimum",
			values:   []float64{10, 10, 10, -1000, 10},
			window:   15 * time.Minute,
			expected: []float64{nan, 10, 10, 10, -1000},
		},
		{
			name:     "missing samples are ignored",
			values:   []float64{10, nan, 8, nan, 9},
			window:   15 * time.Minute,
			expected: []float64{nan, 10, 10, 8, 8},
		},
		{
			name:     "window with only missing samples is missing",
			values:   []float64{nan, nan, 5},
			window:   15 * time.Minute,
			expected: []float64{nan, nan, nan},
		},
		{
			name:     "sample exactly one window old is excluded",
			values:   []float64{0, 10, 10, 10},
			window:   3 * time.Minute,
			expected: []float64{nan, 0, 0, 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrailingMin(minuteTimes(len(tt.values)), tt.values, tt.window)

			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d results, got %d", len(tt.expected), len(result))
			}
			for i, v := range result {
				if !sameValue(v, tt.expected[i], 1e-12) {
					t.Errorf("point %d: expected %v, got %v", i, tt.expected[i], v)
				}
			}
		})
	}
}

func TestTrailingMinFollowsWallClock(t *testing.T) {
	// 20-minute hole between the second and third samples
	times := []time.Time{
		testStart,
		testStart.Add(time.Minute),
		testStart.Add(21 * time.Minute),
		testStart.Add(22 * time.Minute),
	}
	values := []float64{1, 2, 3, 4}

	result := TrailingMin(times, values, 15*time.Minute)

	if !math.IsNaN(result[2]) {
		t.Errorf("expected missing minimum after a 20 minute hole, got %v", result[2])
	}
	if result[3] != 3 {
		t.Errorf("expected minimum 3, got %v", result[3])
	}
}

func TestCenteredMean(t *testing.T) {
	n := 21
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i)
	}

	result := CenteredMean(minuteTimes(n), values, 10*time.Minute+time.Second)

	checks := map[int]float64{
		0:  2.5,  // 0..5
		3:  4.0,  // 0..8
		10: 10.0, // 5..15
		20: 17.5, // 15..20
	}
	for idx, want := range checks {
		if !sameValue(result[idx], want, 1e-9) {
			t.Errorf("point %d: expected %.2f, got %.2f", idx, want, result[idx])
		}
	}
}

func TestCenteredMeanMissing(t *testing.T) {
	nan := math.NaN()
	values := []float64{nan, nan, nan, 4, nan, nan, nan, nan, nan, nan, nan, nan}

	result := CenteredMean(minuteTimes(len(values)), values, 10*time.Minute+time.Second)

	for i := 0; i <= 8; i++ {
		if result[i] != 4 {
			t.Errorf("point %d: expected 4 from a single valid neighbour, got %v", i, result[i])
		}
	}
	for i := 9; i < len(values); i++ {
		if !math.IsNaN(result[i]) {
			t.Errorf("point %d: expected missing, got %v", i, result[i])
		}
	}
}

func TestClampNegative(t *testing.T) {
	if got := ClampNegative(-0.3); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := ClampNegative(1.25); got != 1.25 {
		t.Errorf("expected 1.25, got %v", got)
	}
	if got := ClampNegative(math.NaN()); !math.IsNaN(got) {
		t.Errorf("expected NaN to stay missing, got %v", got)
	}
}

func TestNoiseGate(t *testing.T) {
	const threshold = 0.17

	tests := []struct {
		name     string
		mean     float64
		expected float64
	}{
		{"at threshold", 0.17, 0.17},
		{"just below threshold", math.Nextafter(0.17, 0), 0},
		{"just above threshold", math.Nextafter(0.17, 1), math.Nextafter(0.17, 1)},
		{"well below", 0.05, 0},
		{"negative", -0.4, 0},
		{"strong signal", 2.3, 2.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NoiseGate(tt.mean, threshold); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}

	if got := NoiseGate(math.NaN(), threshold); !math.IsNaN(got) {
		t.Errorf("expected NaN to stay missing, got %v", got)
	}
}
