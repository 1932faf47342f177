// Package icing derives ice accretion signals from the oscillator frequency of an
// automated ice detector. The calculation follows Ryerson & Ramsay, "Quantitative Ice
// Accretion Information from the Automated Surface Observing System" (JAM2535.1).
package icing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrUnsortedSeries is returned when observation timestamps are not strictly increasing
var ErrUnsortedSeries = errors.New("observation timestamps must be strictly increasing")

// Observation is a single sensor reading. Frequency is NaN when the reading is missing.
type Observation struct {
	Time      time.Time
	Frequency float64
}

// Series is an ordered set of observations for one station/sensor
type Series []Observation

// Sort orders the series by time, oldest first
func (s Series) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Time.Before(s[j].Time)
	})
}

// Validate checks that timestamps are strictly increasing
func (s Series) Validate() error {
	for i := 1; i < len(s); i++ {
		if !s[i].Time.After(s[i-1].Time) {
			return fmt.Errorf("%w: %s at index %d follows %s",
				ErrUnsortedSeries, s[i].Time.Format(time.RFC3339), i, s[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Point holds the derived signals for one timestamp. Any field may be NaN (missing).
type Point struct {
	Time      time.Time
	Frequency float64

	// MovingMin is the minimum frequency over the trailing window, current sample excluded
	MovingMin float64

	NetChangeRaw      float64
	NetChangeMean     float64
	NetChangeClamped  float64
	NetChangeFiltered float64

	RateRawMM      float64
	RateMeanMM     float64
	RateInstantMM  float64
	RateFilteredMM float64

	CumulativeRawMM      float64
	CumulativeMeanMM     float64
	CumulativeInstantMM  float64
	CumulativeFilteredMM float64
}

// Field selects one numeric column of a Point
type Field func(p *Point) *float64

// Column selectors used by the repair and accumulation stages
var (
	RateRawMM      Field = func(p *Point) *float64 { return &p.RateRawMM }
	RateMeanMM     Field = func(p *Point) *float64 { return &p.RateMeanMM }
	RateInstantMM  Field = func(p *Point) *float64 { return &p.RateInstantMM }
	RateFilteredMM Field = func(p *Point) *float64 { return &p.RateFilteredMM }

	CumulativeRawMM      Field = func(p *Point) *float64 { return &p.CumulativeRawMM }
	CumulativeMeanMM     Field = func(p *Point) *float64 { return &p.CumulativeMeanMM }
	CumulativeInstantMM  Field = func(p *Point) *float64 { return &p.CumulativeInstantMM }
	CumulativeFilteredMM Field = func(p *Point) *float64 { return &p.CumulativeFilteredMM }
)

// Result is the derived series, indexed exactly like the input
type Result struct {
	Points []Point

	// RepairedInstant and RepairedFiltered count the gap-repaired rate values
	RepairedInstant  int
	RepairedFiltered int
}

// Len returns the number of points
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Points)
}

// Last returns the final point, if any
func (r *Result) Last() (Point, bool) {
	if r.Len() == 0 {
		return Point{}, false
	}
	return r.Points[len(r.Points)-1], true
}

// TotalFilteredMM returns the final filtered ice accumulation, or NaN if there is none
func (r *Result) TotalFilteredMM() float64 {
	last, ok := r.Last()
	if !ok {
		return math.NaN()
	}
	return last.CumulativeFilteredMM
}

// TotalInstantMM returns the final unfiltered ice accumulation, or NaN if there is none
func (r *Result) TotalInstantMM() float64 {
	last, ok := r.Last()
	if !ok {
		return math.NaN()
	}
	return last.CumulativeInstantMM
}

// IsMissing reports whether v represents a missing value
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

func missing() float64 {
	return math.NaN()
}
