package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chrissnell/icewatch/internal/fmi"
	"github.com/chrissnell/icewatch/internal/log"
	"github.com/chrissnell/icewatch/internal/metrics"
	"github.com/chrissnell/icewatch/internal/pipeline"
	"github.com/chrissnell/icewatch/internal/summary"
	"github.com/chrissnell/icewatch/pkg/config"
	"go.uber.org/zap"
)

// errNoReports ends the run with exit status 2 when no station produced a report
var errNoReports = errors.New("no station produced a report")

type options struct {
	cfgFile     string
	stations    string
	fmisid      int
	sensor      int
	start       string
	end         string
	csvDir      string
	pushgateway string
	debug       bool
}

func main() {
	var opts options
	flag.StringVar(&opts.cfgFile, "config", "", "Optional YAML configuration for FMI and icing settings")
	flag.StringVar(&opts.stations, "stations", "Vantaa", "Comma-separated station names, or 'all'")
	flag.IntVar(&opts.fmisid, "fmisid", 0, "Station FMISID; overrides -stations")
	flag.IntVar(&opts.sensor, "sensor", 0, "Sensor id at multi-sensor sites (with -fmisid)")
	flag.StringVar(&opts.start, "start", "", "Range start, 20060102T1504 or RFC3339 (default: today 00:00 UTC)")
	flag.StringVar(&opts.end, "end", "", "Range end (default: start + 24h)")
	flag.StringVar(&opts.csvDir, "csv-dir", "", "Optional directory for the full derived CSV of every station")
	flag.StringVar(&opts.pushgateway, "pushgateway", "", "Optional Prometheus Pushgateway URL for the station gauges")
	flag.BoolVar(&opts.debug, "debug", false, "Turn on debugging output")
	flag.Parse()

	if err := run(context.Background(), opts, os.Stdout, time.Now()); err != nil {
		if errors.Is(err, errNoReports) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, w io.Writer, now time.Time) error {
	if err := log.Init(opts.debug); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()
	logger := log.GetSugaredLogger()

	provider, err := loadProvider(opts.cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	defer provider.Close()

	selected, err := selectStations(provider, opts.stations, opts.fmisid, opts.sensor)
	if err != nil {
		return err
	}

	from, to, err := parseRange(opts.start, opts.end, now)
	if err != nil {
		return err
	}

	p, err := pipeline.NewFromConfig(provider, logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	reports := runReports(ctx, p, selected, from, to, m, logger)

	fmt.Fprintf(w, "Ice Accumulation Report\n")
	fmt.Fprintf(w, "=======================\n\n")
	fmt.Fprintf(w, "  Range: %s - %s UTC\n\n", from.Format(time.DateTime), to.Format(time.DateTime))
	printTable(w, reports)

	if opts.csvDir != "" {
		for _, r := range reports {
			path := filepath.Join(opts.csvDir, reportFilename(r))
			if err := exportCSV(path, r); err != nil {
				return fmt.Errorf("exporting CSV: %w", err)
			}
			fmt.Fprintf(w, "\nData exported to: %s", path)
		}
		fmt.Fprintln(w)
	}

	if opts.pushgateway != "" {
		if err := m.Push(ctx, opts.pushgateway, "icing_report"); err != nil {
			return err
		}
	}

	if len(reports) == 0 {
		return errNoReports
	}
	return nil
}

func loadProvider(cfgFile string) (config.ConfigProvider, error) {
	if cfgFile == "" {
		return config.NewStaticProvider(nil), nil
	}

	filename, _ := filepath.Abs(cfgFile)
	provider := config.NewYAMLProvider(filename)
	if _, err := provider.LoadConfig(); err != nil {
		return nil, err
	}
	return provider, nil
}

func selectStations(provider config.ConfigProvider, names string, fmisid, sensor int) ([]config.StationData, error) {
	catalogue, err := provider.GetStations()
	if err != nil {
		return nil, err
	}

	if fmisid != 0 {
		station, ok := config.FindStation(catalogue, fmisid)
		if !ok {
			station = config.StationData{Name: fmt.Sprintf("%d", fmisid), FMISID: fmisid}
		}
		if sensor != 0 {
			station.SensorID = sensor
		}
		return []config.StationData{station}, nil
	}

	return config.SelectStations(catalogue, strings.Split(names, ","))
}

func parseRange(start, end string, now time.Time) (time.Time, time.Time, error) {
	from, to := fmi.DefaultRange(now)

	var err error
	if start != "" {
		if from, err = fmi.ParseTime(start); err != nil {
			return from, to, err
		}
		to = from.Add(24 * time.Hour)
	}
	if end != "" {
		if to, err = fmi.ParseTime(end); err != nil {
			return from, to, err
		}
	}

	return from, to, fmi.ValidateTimeRange(from, to)
}

func runReports(ctx context.Context, p *pipeline.Pipeline, stations []config.StationData, from, to time.Time,
	m *metrics.Metrics, logger *zap.SugaredLogger) []*pipeline.Report {
	var reports []*pipeline.Report

	for _, station := range stations {
		report, err := p.Run(ctx, station, from, to)
		if err != nil {
			if errors.Is(err, pipeline.ErrNoData) {
				logger.Warnf("No data for station %s (%d)", station.Name, station.FMISID)
				m.FetchFailed(station.FMISID, station.SensorID, "empty")
			} else {
				logger.Errorf("Station %s (%d): %v", station.Name, station.FMISID, err)
				m.FetchFailed(station.FMISID, station.SensorID, "error")
			}
			continue
		}
		m.ObserveStation(station.FMISID, station.SensorID, report.Station.Name, report.Result)
		reports = append(reports, report)
	}

	return reports
}

func printTable(w io.Writer, reports []*pipeline.Report) {
	fmt.Fprintf(w, "%-30s | %8s | %6s | %12s | %12s | %8s\n", "Station", "FMISID", "Points", "Filtered(mm)", "Instant(mm)", "Repaired")
	fmt.Fprintf(w, "-------------------------------+----------+--------+--------------+--------------+---------\n")

	for _, r := range reports {
		fmt.Fprintf(w, "%-30s | %8d | %6d | %12.1f | %12s | %8d\n",
			r.Station.Name, r.Station.FMISID, r.Result.Len(), r.Summary.Value,
			formatMM(r.Result.TotalInstantMM()), r.Result.RepairedFiltered)
	}
}

func formatMM(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.1f", v)
}

// reportFilename names the CSV export <start>_<end>_<place>_<fmisid>[_#<sensor>].csv
func reportFilename(r *pipeline.Report) string {
	place := strings.ReplaceAll(r.Config.Name, " ", "_")
	name := fmt.Sprintf("%s_%s_%s_%d", r.Start.UTC().Format(fmi.RequestTimeFormat), r.End.UTC().Format(fmi.RequestTimeFormat),
		place, r.Station.FMISID)
	if r.Config.SensorID != 0 {
		name += fmt.Sprintf("_#%d", r.Config.SensorID)
	}
	return name + ".csv"
}

func exportCSV(filename string, r *pipeline.Report) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := summary.WriteCSV(file, r.Result); err != nil {
		return err
	}
	return file.Close()
}
