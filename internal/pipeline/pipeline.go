// Package pipeline fetches a station's frequency series and derives its ice accumulation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/icewatch/internal/fmi"
	"github.com/chrissnell/icewatch/internal/icing"
	"github.com/chrissnell/icewatch/internal/summary"
	"github.com/chrissnell/icewatch/pkg/config"
	"go.uber.org/zap"
)

// ErrNoData is returned when the API has no observations for a station and range
var ErrNoData = errors.New("no observations returned")

// Fetcher retrieves a station dataset
type Fetcher interface {
	Fetch(ctx context.Context, r fmi.Request) (*fmi.Dataset, error)
}

// Report is the derived icing of one station over one time range
type Report struct {
	Station fmi.Station
	Config  config.StationData
	Start   time.Time
	End     time.Time
	Result  *icing.Result
	Summary summary.StationSummary
}

// Pipeline ties the data source to the calculator
type Pipeline struct {
	fetcher    Fetcher
	calculator *icing.Calculator
	logger     *zap.SugaredLogger
}

// New creates a pipeline from explicit collaborators
func New(fetcher Fetcher, calculator *icing.Calculator, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		calculator: calculator,
		logger:     logger,
	}
}

// NewFromConfig builds the FMI client and calculator from the provider's configuration
func NewFromConfig(configProvider config.ConfigProvider, logger *zap.SugaredLogger) (*Pipeline, error) {
	fmiCfg, err := configProvider.GetFMIConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load FMI configuration: %w", err)
	}
	icingCfg, err := configProvider.GetIcingConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load icing configuration: %w", err)
	}

	client, err := fmi.NewClient(*fmiCfg, logger)
	if err != nil {
		return nil, err
	}

	params, err := icingCfg.Params()
	if err != nil {
		return nil, fmt.Errorf("invalid icing configuration: %w", err)
	}
	calc, err := icing.NewCalculator(params)
	if err != nil {
		return nil, err
	}

	return New(client, calc, logger), nil
}

// Calculator returns the calculator in use
func (p *Pipeline) Calculator() *icing.Calculator {
	return p.calculator
}

// Run fetches and processes one station over [start, end]
func (p *Pipeline) Run(ctx context.Context, station config.StationData, start, end time.Time) (*Report, error) {
	if err := fmi.ValidateTimeRange(start, end); err != nil {
		return nil, err
	}

	ds, err := p.fetcher.Fetch(ctx, fmi.Request{
		FMISID:   station.FMISID,
		SensorID: station.SensorID,
		Start:    start,
		End:      end,
	})
	if err != nil {
		return nil, fmt.Errorf("station %d: %w", station.FMISID, err)
	}
	if ds.Empty() {
		return nil, fmt.Errorf("station %d (%s): %w", station.FMISID, station.Name, ErrNoData)
	}

	result, err := p.calculator.Compute(ds.Series)
	if err != nil {
		return nil, fmt.Errorf("station %d: %w", station.FMISID, err)
	}

	info := ds.Station
	if info.FMISID == 0 {
		info.FMISID = station.FMISID
	}
	if info.Name == "" {
		info.Name = station.Name
	}

	p.logger.Debugw("computed station icing",
		"fmisid", station.FMISID,
		"observations", result.Len(),
		"repaired_instant", result.RepairedInstant,
		"repaired_filtered", result.RepairedFiltered,
	)

	s := summary.Extract(info, result)
	s.SensorID = station.SensorID

	return &Report{
		Station: info,
		Config:  station,
		Start:   start,
		End:     end,
		Result:  result,
		Summary: s,
	}, nil
}
