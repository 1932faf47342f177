package summary

import (
	"time"

	"github.com/chrissnell/icewatch/internal/icing"
)

// Sample is one chart value; Value is nil where the series is missing
type Sample struct {
	Time  time.Time `json:"time"`
	Value *float64  `json:"value"`
}

// Line is one plotted series of a panel
type Line struct {
	Label   string   `json:"label"`
	Style   string   `json:"style"`
	Color   string   `json:"color"`
	Samples []Sample `json:"samples"`
}

// Panel is one chart of the station graph
type Panel struct {
	Title  string `json:"title"`
	YLabel string `json:"y_label"`
	Lines  []Line `json:"lines"`
}

type lineSpec struct {
	label, style, color string
	value               func(p icing.Point) float64
}

// Panels returns the five stacked charts of the station graph, top to bottom
func Panels(result *icing.Result, frequencyLabel string) []Panel {
	if frequencyLabel == "" {
		frequencyLabel = "fzfreq"
	}

	specs := []struct {
		title, yLabel string
		lines         []lineSpec
	}{
		{"Ice Accumulation", "ice accumulation/mm", []lineSpec{
			{"cumul mm filtered", "dashed", "red", func(p icing.Point) float64 { return p.CumulativeFilteredMM }},
			{"cumul mm", "dashdot", "green", func(p icing.Point) float64 { return p.CumulativeInstantMM }},
		}},
		{"FZFREQ raw/min(15min) filtered", "FZFREQ/Hz", []lineSpec{
			{frequencyLabel, "dotted", "blue", func(p icing.Point) float64 { return p.Frequency }},
			{"fz15min", "dotted", "red", func(p icing.Point) float64 { return p.MovingMin }},
		}},
		{"Instantaneous ice accretion", "ice intensity/(mm/1min)", []lineSpec{
			{"mm inst", "dashed", "blue", func(p icing.Point) float64 { return p.RateInstantMM }},
			{"mm instant filtered", "dotted", "red", func(p icing.Point) float64 { return p.RateFilteredMM }},
		}},
		{"Net Frequency Change", "NFC/dHz", []lineSpec{
			{"NFC", "dashed", "red", func(p icing.Point) float64 { return p.NetChangeClamped }},
		}},
		{"Net Frequency Change Filtered", "NFC filtered/dHz", []lineSpec{
			{"NFC filtered", "dotted", "red", func(p icing.Point) float64 { return p.NetChangeFiltered }},
		}},
	}

	panels := make([]Panel, 0, len(specs))
	for _, spec := range specs {
		panel := Panel{Title: spec.title, YLabel: spec.yLabel}
		for _, ls := range spec.lines {
			panel.Lines = append(panel.Lines, Line{
				Label:   ls.label,
				Style:   ls.style,
				Color:   ls.color,
				Samples: samples(result, ls.value),
			})
		}
		panels = append(panels, panel)
	}

	return panels
}

func samples(result *icing.Result, value func(p icing.Point) float64) []Sample {
	out := make([]Sample, result.Len())
	for i, p := range result.Points {
		out[i] = Sample{Time: p.Time, Value: optional(value(p))}
	}
	return out
}

func optional(v float64) *float64 {
	if icing.IsMissing(v) {
		return nil
	}
	return &v
}
