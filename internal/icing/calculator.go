package icing

import (
	"fmt"
	"time"
)

// Calculator derives icing intensity and accumulation from a frequency series
type Calculator struct {
	params Params
}

// NewCalculator creates a Calculator with the given calibration
func NewCalculator(params Params) (*Calculator, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid icing parameters: %w", err)
	}
	return &Calculator{params: params}, nil
}

// Params returns the calibration in use
func (c *Calculator) Params() Params {
	return c.params
}

// Compute runs the full pipeline over one closed batch of observations.
// The series must be strictly increasing in time; an empty series gives an empty result.
//
// Stages, in order:
//  1. trailing minimum of frequency and net change against it
//  2. centered mean, clamping and noise gating of the net change
//  3. conversion to millimetres
//  4. gap repair of the instant and filtered rates, each from its own snapshot
//  5. running totals, forward-filled for the repaired rates
func (c *Calculator) Compute(series Series) (*Result, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}

	n := len(series)
	result := &Result{Points: make([]Point, n)}
	if n == 0 {
		return result, nil
	}

	times := make([]time.Time, n)
	freq := make([]float64, n)
	for i, obs := range series {
		times[i] = obs.Time
		freq[i] = obs.Frequency
	}

	movingMin := TrailingMin(times, freq, c.params.MinWindow)

	netChange := make([]float64, n)
	for i := range netChange {
		// NaN on either side propagates
		netChange[i] = movingMin[i] - freq[i]
	}

	netMean := CenteredMean(times, netChange, c.params.MeanWindow)

	k := c.params.MMPerUnit
	points := result.Points
	for i := range points {
		p := &points[i]
		p.Time = times[i]
		p.Frequency = freq[i]
		p.MovingMin = movingMin[i]
		p.NetChangeRaw = netChange[i]
		p.NetChangeMean = netMean[i]
		p.NetChangeClamped = ClampNegative(netChange[i])
		p.NetChangeFiltered = NoiseGate(netMean[i], c.params.NoiseThreshold)

		p.RateRawMM = p.NetChangeRaw * k
		p.RateMeanMM = p.NetChangeMean * k
		p.RateInstantMM = p.NetChangeClamped * k
		p.RateFilteredMM = p.NetChangeFiltered * k
	}

	Accumulate(points, RateRawMM, CumulativeRawMM, false)
	Accumulate(points, RateMeanMM, CumulativeMeanMM, false)

	result.RepairedInstant = RepairGaps(points, RateInstantMM, c.params.GapWindow)
	Accumulate(points, RateInstantMM, CumulativeInstantMM, true)

	result.RepairedFiltered = RepairGaps(points, RateFilteredMM, c.params.GapWindow)
	Accumulate(points, RateFilteredMM, CumulativeFilteredMM, true)

	return result, nil
}
