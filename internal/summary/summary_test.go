package summary

import (
	"bytes"
	"encoding/csv"
	"math"
	"testing"
	"time"

	"github.com/chrissnell/icewatch/internal/fmi"
	"github.com/chrissnell/icewatch/internal/icing"
)

func resultWithTotals(filtered ...float64) *icing.Result {
	start := time.Date(2025, time.February, 4, 0, 0, 0, 0, time.UTC)
	r := &icing.Result{}
	for i, v := range filtered {
		r.Points = append(r.Points, icing.Point{
			Time:                 start.Add(time.Duration(i) * time.Minute),
			Frequency:            40000,
			MovingMin:            math.NaN(),
			NetChangeRaw:         math.NaN(),
			NetChangeMean:        math.NaN(),
			NetChangeClamped:     math.NaN(),
			NetChangeFiltered:    math.NaN(),
			RateRawMM:            math.NaN(),
			RateMeanMM:           math.NaN(),
			RateInstantMM:        math.NaN(),
			RateFilteredMM:       math.NaN(),
			CumulativeRawMM:      math.NaN(),
			CumulativeMeanMM:     math.NaN(),
			CumulativeInstantMM:  v,
			CumulativeFilteredMM: v,
		})
	}
	return r
}

func TestExtract(t *testing.T) {
	station := fmi.Station{FMISID: 100968, Name: "Vantaa", Lat: 60.3267, Lon: 24.95675}

	tests := []struct {
		name   string
		result *icing.Result
		want   float64
	}{
		{"rounded", resultWithTotals(0, 0.5, 1.26), 1.3},
		{"all missing", resultWithTotals(math.NaN(), math.NaN()), 0},
		{"empty", &icing.Result{}, 0},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(station, tt.result)
			if math.Abs(got.Value-tt.want) > 1e-9 {
				t.Errorf("expected %v mm, got %v", tt.want, got.Value)
			}
			if got.FMISID != station.FMISID || got.Name != station.Name || got.Lat != station.Lat {
				t.Errorf("station metadata not carried: %+v", got)
			}
		})
	}
}

func TestColorize(t *testing.T) {
	summaries := Colorize([]StationSummary{
		{Name: "Utsjoki", Value: 4},
		{Name: "Kittilä", Value: 0},
		{Name: "Inari", Value: 2},
	})

	if summaries[0].Name != "Inari" || summaries[1].Name != "Kittilä" || summaries[2].Name != "Utsjoki" {
		t.Errorf("expected summaries sorted by name, got %v", summaries)
	}
	if summaries[1].Color != "#040613" {
		t.Errorf("expected darkest colour for no ice, got %s", summaries[1].Color)
	}
	if summaries[2].Color != "#eafdfd" {
		t.Errorf("expected lightest colour for the maximum, got %s", summaries[2].Color)
	}
	if summaries[0].Color != "#3e6ea8" {
		t.Errorf("expected midpoint colour, got %s", summaries[0].Color)
	}
}

func TestIceColorWithoutIce(t *testing.T) {
	for _, v := range []float64{0, math.NaN(), -1} {
		if got := IceColor(v, 0); got != "#040613" {
			t.Errorf("IceColor(%v, 0) = %s", v, got)
		}
	}
	if got := IceColor(10, 5); got != "#eafdfd" {
		t.Errorf("expected values above the maximum to clamp, got %s", got)
	}
}

func TestPanels(t *testing.T) {
	r := resultWithTotals(0, math.NaN(), 0.2)
	panels := Panels(r, "")

	if len(panels) != 5 {
		t.Fatalf("expected 5 panels, got %d", len(panels))
	}

	lines := []int{2, 2, 2, 1, 1}
	for i, p := range panels {
		if len(p.Lines) != lines[i] {
			t.Errorf("panel %q: expected %d lines, got %d", p.Title, lines[i], len(p.Lines))
		}
		for _, l := range p.Lines {
			if len(l.Samples) != r.Len() {
				t.Errorf("line %q: expected %d samples, got %d", l.Label, r.Len(), len(l.Samples))
			}
		}
	}

	cumulative := panels[0].Lines[0].Samples
	if cumulative[1].Value != nil {
		t.Errorf("expected nil for missing value, got %v", *cumulative[1].Value)
	}
	if cumulative[2].Value == nil || *cumulative[2].Value != 0.2 {
		t.Errorf("unexpected sample %+v", cumulative[2])
	}
	if panels[1].Lines[0].Label != "fzfreq" {
		t.Errorf("expected default frequency label, got %q", panels[1].Lines[0].Label)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, resultWithTotals(0.1, math.NaN())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d records", len(records))
	}

	last := len(csvHeader) - 1
	if records[0][last] != "cumulative_filtered_mm" {
		t.Errorf("unexpected header %v", records[0])
	}
	if records[1][0] != "2025-02-04 00:00:00" || records[1][last] != "0.1" {
		t.Errorf("unexpected first row %v", records[1])
	}
	if records[2][last] != "" {
		t.Errorf("expected empty cell for missing value, got %q", records[2][last])
	}
}

func TestRows(t *testing.T) {
	rows := Rows(resultWithTotals(0.1, math.NaN()))
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Frequency == nil || *rows[0].Frequency != 40000 {
		t.Errorf("unexpected frequency %v", rows[0].Frequency)
	}
	if rows[0].MovingMin != nil || rows[1].CumulativeFilteredMM != nil {
		t.Error("expected nil for missing values")
	}
}
