package icing

import (
	"fmt"
	"time"
)

// Params defines the calibration of the icing calculation
type Params struct {
	// MinWindow is the trailing window for the frequency minimum (e.g., 15m).
	// The current sample is never part of its own window.
	MinWindow time.Duration

	// MeanWindow is the full width of the centered mean of the net frequency change (e.g., 10m1s).
	// The extra second keeps samples exactly five minutes away inside the window.
	MeanWindow time.Duration

	// GapWindow bounds how far back a missing rate may look for valid data (e.g., 15m)
	GapWindow time.Duration

	// NoiseThreshold is the mean net change below which the signal is treated as
	// rain or oscillator noise and zeroed (frequency units per MeanWindow)
	NoiseThreshold float64

	// MMPerUnit converts one unit of net frequency change into millimetres of ice
	MMPerUnit float64
}

// DefaultParams returns the calibration tuned against Finnish airport sensors
func DefaultParams() Params {
	return Params{
		MinWindow:      15 * time.Minute,
		MeanWindow:     10*time.Minute + time.Second,
		GapWindow:      15 * time.Minute,
		NoiseThreshold: 0.17,
		MMPerUnit:      0.00381,
	}
}

// Validate checks that every window is positive and the conversion factor is usable
func (p Params) Validate() error {
	if p.MinWindow <= 0 {
		return fmt.Errorf("min window must be positive, got %v", p.MinWindow)
	}
	if p.MeanWindow <= 0 {
		return fmt.Errorf("mean window must be positive, got %v", p.MeanWindow)
	}
	if p.GapWindow <= 0 {
		return fmt.Errorf("gap window must be positive, got %v", p.GapWindow)
	}
	if p.MMPerUnit <= 0 {
		return fmt.Errorf("mm per unit must be positive, got %v", p.MMPerUnit)
	}
	return nil
}
