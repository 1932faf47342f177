// Package summary turns derived icing series into the records the map and graph views consume.
package summary

import (
	"fmt"
	"math"
	"sort"

	"github.com/chrissnell/icewatch/internal/fmi"
	"github.com/chrissnell/icewatch/internal/icing"
)

// StationSummary is one map marker: where the station is and how much ice it gathered
type StationSummary struct {
	FMISID   int     `json:"fmisid"`
	SensorID int     `json:"sensor_id,omitempty"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	// Value is the final filtered ice accumulation in mm, rounded to 0.1 mm
	Value float64 `json:"value"`
	Color string  `json:"color,omitempty"`
}

// Extract builds the summary of one station. A station whose accumulation never became
// defined reports 0 mm.
func Extract(station fmi.Station, result *icing.Result) StationSummary {
	value := result.TotalFilteredMM()
	if math.IsNaN(value) {
		value = 0
	}

	return StationSummary{
		FMISID: station.FMISID,
		Name:   station.Name,
		Lat:    station.Lat,
		Lon:    station.Lon,
		Value:  math.Round(value*10) / 10,
	}
}

// Colorize assigns marker colours relative to the largest accumulation in the set and
// sorts the summaries by name, then station and sensor id
func Colorize(summaries []StationSummary) []StationSummary {
	maxValue := 0.0
	for _, s := range summaries {
		maxValue = math.Max(maxValue, s.Value)
	}

	for i := range summaries {
		summaries[i].Color = IceColor(summaries[i].Value, maxValue)
	}

	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.FMISID != b.FMISID {
			return a.FMISID < b.FMISID
		}
		return a.SensorID < b.SensorID
	})
	return summaries
}

// iceRamp runs from deep navy (no ice) to near white (most ice)
var iceRamp = []struct {
	pos     float64
	r, g, b float64
}{
	{0.00, 4, 6, 19},
	{0.25, 49, 57, 120},
	{0.50, 62, 110, 168},
	{0.75, 104, 173, 200},
	{1.00, 234, 253, 253},
}

// IceColor maps value, clamped to [0, maxValue], onto the ice colour ramp as a hex colour
func IceColor(value, maxValue float64) string {
	x := 0.0
	if maxValue > 0 && !math.IsNaN(value) {
		x = math.Min(math.Max(value, 0), maxValue) / maxValue
	}

	for i := 1; i < len(iceRamp); i++ {
		lo, hi := iceRamp[i-1], iceRamp[i]
		if x > hi.pos {
			continue
		}
		f := (x - lo.pos) / (hi.pos - lo.pos)
		return fmt.Sprintf("#%02x%02x%02x",
			int(math.Round(lo.r+f*(hi.r-lo.r))),
			int(math.Round(lo.g+f*(hi.g-lo.g))),
			int(math.Round(lo.b+f*(hi.b-lo.b))))
	}

	last := iceRamp[len(iceRamp)-1]
	return fmt.Sprintf("#%02x%02x%02x", int(last.r), int(last.g), int(last.b))
}
