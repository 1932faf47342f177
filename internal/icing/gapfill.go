package icing

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// RepairGaps fills missing values of one field, typically a rate that went undefined
// while the sensor was melting off its ice. For every missing point at t it looks for
// the latest valid value in [t-window, t]; if there is one at t_last, the point receives
// the mean of the valid values in [t_last-window, t_last]. Gaps longer than window stay
// missing.
//
// All lookups read from a snapshot taken before the first write, so a repaired value
// never feeds into the repair of another point. It returns the number of points repaired.
func RepairGaps(points []Point, field Field, window time.Duration) int {
	n := len(points)
	snapshot := make([]float64, n)
	for i := range points {
		snapshot[i] = *field(&points[i])
	}

	repaired := 0
	for i := 0; i < n; i++ {
		if !IsMissing(snapshot[i]) {
			continue
		}

		t := points[i].Time
		lookbackStart := t.Add(-window)

		// Latest valid snapshot value in [t-window, t]
		last := -1
		for j := i; j >= 0 && !points[j].Time.Before(lookbackStart); j-- {
			if !IsMissing(snapshot[j]) {
				last = j
				break
			}
		}
		if last < 0 {
			continue
		}

		meanStart := points[last].Time.Add(-window)
		var valid []float64
		for j := last; j >= 0 && !points[j].Time.Before(meanStart); j-- {
			if !IsMissing(snapshot[j]) {
				valid = append(valid, snapshot[j])
			}
		}

		*field(&points[i]) = stat.Mean(valid, nil)
		repaired++
	}

	return repaired
}
