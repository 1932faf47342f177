package fmi

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/icewatch/internal/icing"
	"golang.org/x/net/html/charset"
)

// ErrNoFrequencyColumn is returned when a payload carries no fzfreq column
var ErrNoFrequencyColumn = errors.New("no frequency column in response")

// FrequencyColumn is the normalized name of the oscillator frequency column
const FrequencyColumn = "fzfreq"

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseCSV decodes a timeseries CSV payload. The character encoding is detected from the
// content type and the payload itself. At multi-sensor sites the frequency column comes
// back as fzfreq_#<sensor>; it is treated as fzfreq. Rows are returned sorted by time.
func ParseCSV(payload []byte, contentType string, sensorID int) (*Dataset, error) {
	ds := &Dataset{}
	if len(bytes.TrimSpace(payload)) == 0 {
		return ds, nil
	}

	decoded, err := charset.NewReader(bytes.NewReader(payload), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to detect encoding: %w", err)
	}

	reader := csv.NewReader(decoded)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return ds, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if sensorID != 0 && name == fmt.Sprintf("%s_#%d", FrequencyColumn, sensorID) {
			name = FrequencyColumn
		}
		columns[name] = i
	}

	freqIdx, ok := columns[FrequencyColumn]
	if !ok {
		return nil, fmt.Errorf("%w (columns: %s)", ErrNoFrequencyColumn, strings.Join(header, ","))
	}
	timeIdx, ok := columns["utctime"]
	if !ok {
		return nil, fmt.Errorf("no utctime column in response")
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		t, err := parseTime(field(record, timeIdx))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		freq, err := parseValue(field(record, freqIdx))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid frequency: %w", line, err)
		}

		if len(ds.Series) == 0 {
			ds.Station = stationFromRecord(record, columns)
		}
		ds.Series = append(ds.Series, icing.Observation{Time: t, Frequency: freq})
	}

	ds.Series.Sort()
	return ds, nil
}

func stationFromRecord(record []string, columns map[string]int) Station {
	var s Station

	if idx, ok := columns["fmisid"]; ok {
		s.FMISID, _ = strconv.Atoi(field(record, idx))
	}
	if idx, ok := columns["stationname"]; ok {
		s.Name = field(record, idx)
	}
	if idx, ok := columns["name"]; ok && s.Name == "" {
		s.Name = field(record, idx)
	}
	if idx, ok := columns["lat"]; ok {
		s.Lat, _ = strconv.ParseFloat(field(record, idx), 64)
	}
	if idx, ok := columns["lon"]; ok {
		s.Lon, _ = strconv.ParseFloat(field(record, idx), 64)
	}

	return s
}

func field(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid utctime %q", s)
}

// parseValue returns NaN for the missing-value markers the API emits
func parseValue(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "", "nan", "null", "none", "-":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
