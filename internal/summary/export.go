package summary

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/chrissnell/icewatch/internal/icing"
)

// Row is the wire form of one derived point; missing values are nil
type Row struct {
	Time                 time.Time `json:"time"`
	Frequency            *float64  `json:"frequency"`
	MovingMin            *float64  `json:"moving_min_15"`
	NetChangeRaw         *float64  `json:"net_change_raw"`
	NetChangeMean        *float64  `json:"net_change_mean10"`
	NetChangeClamped     *float64  `json:"net_change_clamped"`
	NetChangeFiltered    *float64  `json:"net_change_filtered"`
	RateRawMM            *float64  `json:"rate_raw_mm"`
	RateMeanMM           *float64  `json:"rate_mean10_mm"`
	RateInstantMM        *float64  `json:"rate_instant_mm"`
	RateFilteredMM       *float64  `json:"rate_filtered_mm"`
	CumulativeRawMM      *float64  `json:"cumulative_raw_mm"`
	CumulativeMeanMM     *float64  `json:"cumulative_mean10_mm"`
	CumulativeInstantMM  *float64  `json:"cumulative_instant_mm"`
	CumulativeFilteredMM *float64  `json:"cumulative_filtered_mm"`
}

// Rows converts a result to its wire form
func Rows(result *icing.Result) []Row {
	rows := make([]Row, result.Len())
	for i, p := range result.Points {
		rows[i] = Row{
			Time:                 p.Time,
			Frequency:            optional(p.Frequency),
			MovingMin:            optional(p.MovingMin),
			NetChangeRaw:         optional(p.NetChangeRaw),
			NetChangeMean:        optional(p.NetChangeMean),
			NetChangeClamped:     optional(p.NetChangeClamped),
			NetChangeFiltered:    optional(p.NetChangeFiltered),
			RateRawMM:            optional(p.RateRawMM),
			RateMeanMM:           optional(p.RateMeanMM),
			RateInstantMM:        optional(p.RateInstantMM),
			RateFilteredMM:       optional(p.RateFilteredMM),
			CumulativeRawMM:      optional(p.CumulativeRawMM),
			CumulativeMeanMM:     optional(p.CumulativeMeanMM),
			CumulativeInstantMM:  optional(p.CumulativeInstantMM),
			CumulativeFilteredMM: optional(p.CumulativeFilteredMM),
		}
	}
	return rows
}

var csvHeader = []string{
	"utctime", "fzfreq", "moving_min_15",
	"net_change_raw", "net_change_mean10", "net_change_clamped", "net_change_filtered",
	"rate_raw_mm", "rate_mean10_mm", "rate_instant_mm", "rate_filtered_mm",
	"cumulative_raw_mm", "cumulative_mean10_mm", "cumulative_instant_mm", "cumulative_filtered_mm",
}

// WriteCSV writes the full derived table. Missing values are empty cells.
func WriteCSV(w io.Writer, result *icing.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	record := make([]string, len(csvHeader))
	for _, p := range result.Points {
		values := []float64{
			p.Frequency, p.MovingMin,
			p.NetChangeRaw, p.NetChangeMean, p.NetChangeClamped, p.NetChangeFiltered,
			p.RateRawMM, p.RateMeanMM, p.RateInstantMM, p.RateFilteredMM,
			p.CumulativeRawMM, p.CumulativeMeanMM, p.CumulativeInstantMM, p.CumulativeFilteredMM,
		}

		record[0] = p.Time.UTC().Format("2006-01-02 15:04:05")
		for i, v := range values {
			if icing.IsMissing(v) {
				record[i+1] = ""
			} else {
				record[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}

		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
