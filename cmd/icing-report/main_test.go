package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/icewatch/internal/fmi"
	"github.com/chrissnell/icewatch/internal/icing"
	"github.com/chrissnell/icewatch/internal/pipeline"
	"github.com/chrissnell/icewatch/internal/summary"
	"github.com/chrissnell/icewatch/pkg/config"
)

func TestParseRange(t *testing.T) {
	now := time.Date(2025, time.February, 4, 17, 45, 0, 0, time.UTC)

	tests := []struct {
		name       string
		start, end string
		wantStart  time.Time
		wantEnd    time.Time
		wantErr    bool
	}{
		{"defaults", "", "", time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC), time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC), false},
		{"start only", "20250101T0600", "", time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC), time.Date(2025, 1, 2, 6, 0, 0, 0, time.UTC), false},
		{"both", "20250101T0000", "20250115T0000", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"too long", "20250101T0000", "20250301T0000", time.Time{}, time.Time{}, true},
		{"unparseable", "tomorrow", "", time.Time{}, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := parseRange(tt.start, tt.end, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if tt.wantErr {
				return
			}
			if !from.Equal(tt.wantStart) || !to.Equal(tt.wantEnd) {
				t.Errorf("expected %v - %v, got %v - %v", tt.wantStart, tt.wantEnd, from, to)
			}
		})
	}
}

func TestSelectStations(t *testing.T) {
	provider := config.NewStaticProvider(nil)

	got, err := selectStations(provider, "Vantaa, Oulu", 0, 0)
	if err != nil || len(got) != 2 {
		t.Fatalf("expected 2 stations, got %v (%v)", got, err)
	}

	got, err = selectStations(provider, "", 999999, 2)
	if err != nil || got[0].FMISID != 999999 || got[0].SensorID != 2 {
		t.Errorf("expected ad-hoc station, got %v (%v)", got, err)
	}

	if _, err := selectStations(provider, "Atlantis", 0, 0); err == nil {
		t.Error("expected error for unknown station")
	}
}

func testReport() *pipeline.Report {
	start := time.Date(2025, time.February, 4, 0, 0, 0, 0, time.UTC)
	result := &icing.Result{
		Points: []icing.Point{
			{Time: start, CumulativeFilteredMM: 0, CumulativeInstantMM: math.NaN()},
			{Time: start.Add(time.Minute), CumulativeFilteredMM: 2.04, CumulativeInstantMM: 2.5},
		},
		RepairedFiltered: 1,
	}
	station := fmi.Station{FMISID: 100968, Name: "Vantaa Helsinki-Vantaan lentoasema"}

	return &pipeline.Report{
		Station: station,
		Config:  config.StationData{Name: "Vantaa", FMISID: 100968, SensorID: 37},
		Start:   start,
		End:     start.Add(24 * time.Hour),
		Result:  result,
		Summary: summary.Extract(station, result),
	}
}

func TestReportFilename(t *testing.T) {
	want := "20250204T0000_20250205T0000_Vantaa_100968_#37.csv"
	if got := reportFilename(testReport()); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	printTable(&buf, []*pipeline.Report{testReport()})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header, rule and one row, got %d lines", len(lines))
	}
	for _, want := range []string{"Vantaa Helsinki-Vantaan lentoasema", "100968", "2.0", "2.5"} {
		if !strings.Contains(lines[2], want) {
			t.Errorf("expected %q in row %q", want, lines[2])
		}
	}
}

// fmiServer serves a one-hour ramp at 100968 and a header-only response elsewhere
func fmiServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString("fmisid,stationname,name,utctime,localtime,lat,lon,fzfreq\n")
		if r.URL.Query().Get("fmisid") == "100968" {
			start, _ := time.Parse("20060102T1504", r.URL.Query().Get("starttime"))
			freq := 40000.0
			for i := 0; i < 60; i++ {
				if i >= 20 && i < 30 {
					freq -= 50
				}
				ts := start.Add(time.Duration(i) * time.Minute).Format("2006-01-02 15:04:05")
				fmt.Fprintf(&b, "100968,Vantaa lentoasema,Vantaa,%s,%s,60.3267,24.95675,%g\n", ts, ts, freq)
			}
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Write([]byte(b.String()))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, endpoint string) string {
	t.Helper()
	yaml := fmt.Sprintf(`
fmi:
  endpoint: %s
  timeout: 5s
stations:
  - name: Vantaa
    fmisid: 100968
  - name: Oulu
    fmisid: 101786
`, endpoint)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	srv := fmiServer(t)
	csvDir := t.TempDir()
	now := time.Date(2025, time.February, 4, 17, 45, 0, 0, time.UTC)

	opts := options{
		cfgFile:  writeConfig(t, srv.URL),
		stations: "Vantaa,Oulu",
		start:    "20250204T1200",
		end:      "20250204T1300",
		csvDir:   csvDir,
	}

	var out bytes.Buffer
	if err := run(context.Background(), opts, &out, now); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !strings.Contains(out.String(), "Vantaa lentoasema") {
		t.Errorf("expected Vantaa in the report, got:\n%s", out.String())
	}
	if strings.Contains(out.String(), "101786") {
		t.Errorf("expected Oulu to be skipped, got:\n%s", out.String())
	}

	path := filepath.Join(csvDir, "20250204T1200_20250204T1300_Vantaa_100968.csv")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected CSV export: %v", err)
	}
}

func TestRunWithoutReports(t *testing.T) {
	srv := fmiServer(t)

	tests := []struct {
		name    string
		opts    options
		wantErr error
	}{
		{
			name:    "no data",
			opts:    options{stations: "Oulu", start: "20250204T1200", end: "20250204T1300"},
			wantErr: errNoReports,
		},
		{
			name: "unknown station",
			opts: options{stations: "Atlantis"},
		},
		{
			name: "bad range",
			opts: options{stations: "Vantaa", start: "tomorrow"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.cfgFile = writeConfig(t, srv.URL)
			err := run(context.Background(), tt.opts, &bytes.Buffer{}, time.Now())
			if err == nil {
				t.Fatal("expected an error")
			}
			if errors.Is(err, errNoReports) != (tt.wantErr != nil) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
