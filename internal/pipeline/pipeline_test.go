package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chrissnell/icewatch/internal/fmi"
	"github.com/chrissnell/icewatch/internal/icing"
	"github.com/chrissnell/icewatch/pkg/config"
	"go.uber.org/zap"
)

type stubFetcher struct {
	ds   *fmi.Dataset
	err  error
	last fmi.Request
}

func (s *stubFetcher) Fetch(ctx context.Context, r fmi.Request) (*fmi.Dataset, error) {
	s.last = r
	return s.ds, s.err
}

func newTestPipeline(t *testing.T, f Fetcher) *Pipeline {
	t.Helper()
	calc, err := icing.NewCalculator(icing.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	return New(f, calc, zap.NewNop().Sugar())
}

// rampSeries is flat for 20 minutes, then loses 0.5 Hz per minute for 10 minutes, then holds
func rampSeries(start time.Time) icing.Series {
	var s icing.Series
	freq := 40000.0
	for i := 0; i < 60; i++ {
		if i >= 20 && i < 30 {
			freq -= 0.5
		}
		s = append(s, icing.Observation{Time: start.Add(time.Duration(i) * time.Minute), Frequency: freq})
	}
	return s
}

func TestRun(t *testing.T) {
	start := time.Date(2025, time.February, 4, 0, 0, 0, 0, time.UTC)
	f := &stubFetcher{ds: &fmi.Dataset{Series: rampSeries(start)}}
	p := newTestPipeline(t, f)

	station := config.StationData{Name: "Vantaa", FMISID: 100968, SensorID: 37}
	report, err := p.Run(context.Background(), station, start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.last.FMISID != 100968 || f.last.SensorID != 37 {
		t.Errorf("unexpected request %+v", f.last)
	}
	if report.Station.Name != "Vantaa" || report.Station.FMISID != 100968 {
		t.Errorf("expected station info to fall back to configuration, got %+v", report.Station)
	}
	if report.Result.Len() != 60 {
		t.Errorf("expected 60 points, got %d", report.Result.Len())
	}
	if report.Summary.Value <= 0 {
		t.Errorf("expected positive accumulation for a fast ramp, got %v", report.Summary.Value)
	}
	if report.Summary.SensorID != 37 {
		t.Errorf("expected sensor id in summary, got %d", report.Summary.SensorID)
	}
}

func TestRunErrors(t *testing.T) {
	start := time.Date(2025, time.February, 4, 0, 0, 0, 0, time.UTC)
	station := config.StationData{Name: "Oulu", FMISID: 101786}

	tests := []struct {
		name    string
		fetcher *stubFetcher
		end     time.Time
		want    error
	}{
		{"empty dataset", &stubFetcher{ds: &fmi.Dataset{}}, start.Add(time.Hour), ErrNoData},
		{"invalid range", &stubFetcher{}, start.AddDate(0, 2, 0), fmi.ErrInvalidTimeRange},
		{"unsorted", &stubFetcher{ds: &fmi.Dataset{Series: icing.Series{
			{Time: start.Add(time.Minute), Frequency: 1},
			{Time: start, Frequency: 1},
		}}}, start.Add(time.Hour), icing.ErrUnsortedSeries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestPipeline(t, tt.fetcher).Run(context.Background(), station, start, tt.end)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	failing := &stubFetcher{err: errors.New("connection refused")}
	if _, err := newTestPipeline(t, failing).Run(context.Background(), station, start, start.Add(time.Hour)); err == nil {
		t.Error("expected fetch error to propagate")
	}
}
