// Package icingcache provides the controller that periodically recomputes ice accumulation
// for every configured station. It runs independently of the REST server, which only reads
// the cache it fills.
package icingcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/icewatch/internal/metrics"
	"github.com/chrissnell/icewatch/internal/pipeline"
	"github.com/chrissnell/icewatch/pkg/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRefreshInterval = 5 * time.Minute
	DefaultLookback        = 24 * time.Hour
	DefaultWorkers         = 4
)

// ErrNoStationData is returned when a refresh produced no report for any station
var ErrNoStationData = errors.New("no station returned data")

// Controller manages the icing cache refresh lifecycle
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	logger   *zap.SugaredLogger
	pipeline *pipeline.Pipeline
	cache    *Cache
	metrics  *metrics.Metrics
	stations []config.StationData
	interval time.Duration
	lookback time.Duration
	workers  int
	now      func() time.Time

	ready     chan struct{}
	readyOnce sync.Once
	stopOnce  sync.Once
	stopChan  chan struct{}
}

// NewController creates a new icing cache controller
func NewController(
	ctx context.Context,
	wg *sync.WaitGroup,
	configProvider config.ConfigProvider,
	cfg config.IcingCacheData,
	p *pipeline.Pipeline,
	cache *Cache,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
) (*Controller, error) {
	if p == nil || cache == nil || m == nil {
		return nil, fmt.Errorf("icing cache controller requires a pipeline, a cache and metrics")
	}

	stations, err := configProvider.GetStations()
	if err != nil {
		return nil, fmt.Errorf("failed to load stations: %w", err)
	}
	if len(stations) == 0 {
		return nil, fmt.Errorf("no stations configured")
	}
	seen := make(map[Key]string, len(stations))
	for _, station := range stations {
		key := KeyOf(station)
		if other, ok := seen[key]; ok {
			return nil, fmt.Errorf("stations %q and %q both select detector %s", other, station.Name, key)
		}
		seen[key] = station.Name
	}

	interval, err := durationOrDefault(cfg.RefreshInterval, DefaultRefreshInterval)
	if err != nil {
		return nil, fmt.Errorf("icingcache.refresh_interval: %w", err)
	}
	lookback, err := durationOrDefault(cfg.Lookback, DefaultLookback)
	if err != nil {
		return nil, fmt.Errorf("icingcache.lookback: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Controller{
		ctx:      ctx,
		wg:       wg,
		logger:   logger,
		pipeline: p,
		cache:    cache,
		metrics:  m,
		stations: stations,
		interval: interval,
		lookback: lookback,
		workers:  workers,
		now:      time.Now,
		ready:    make(chan struct{}),
		stopChan: make(chan struct{}),
	}, nil
}

// StartController launches the refresh loop
func (c *Controller) StartController() error {
	c.logger.Infof("Starting icing cache controller (%d stations, every %v, lookback %v)",
		len(c.stations), c.interval, c.lookback)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run()
	}()

	return nil
}

// Stop ends the refresh loop
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.logger.Info("Stopping icing cache controller...")
		close(c.stopChan)
	})
}

// Ready is closed once the first refresh has completed
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

func (c *Controller) run() {
	if err := c.Refresh(c.ctx); err != nil {
		c.logger.Errorf("Initial icing refresh failed: %v", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("Icing cache refresh job stopped (context cancelled)")
			return
		case <-c.stopChan:
			c.logger.Info("Icing cache refresh job stopped (stop requested)")
			return
		case <-ticker.C:
			if err := c.Refresh(c.ctx); err != nil {
				c.logger.Errorf("Icing refresh failed: %v", err)
			}
		}
	}
}

// Refresh recomputes every station over the lookback window ending now and replaces the
// cache. Stations without data are left out of the new cache.
func (c *Controller) Refresh(ctx context.Context) error {
	started := time.Now()
	runID := uuid.NewString()
	end := c.now().UTC().Truncate(time.Minute)
	start := end.Add(-c.lookback)

	logger := c.logger.With("run_id", runID)
	logger.Debugf("Refreshing icing for %d stations (%s - %s)", len(c.stations), start, end)

	var mu sync.Mutex
	reports := make(map[Key]*pipeline.Report, len(c.stations))

	g := new(errgroup.Group)
	g.SetLimit(c.workers)

	for _, station := range c.stations {
		station := station
		g.Go(func() error {
			report, err := c.pipeline.Run(ctx, station, start, end)
			if err != nil {
				if errors.Is(err, pipeline.ErrNoData) {
					logger.Warnf("No data for station %s (%s), skipping", station.Name, KeyOf(station))
					c.metrics.FetchFailed(station.FMISID, station.SensorID, "empty")
				} else {
					logger.Errorf("Failed to process station %s (%s): %v", station.Name, KeyOf(station), err)
					c.metrics.FetchFailed(station.FMISID, station.SensorID, "error")
				}
				// Leaves the cache with this refresh; its gauges go with it
				c.metrics.ForgetStation(station.FMISID, station.SensorID)
				return nil
			}

			c.metrics.ObserveStation(station.FMISID, station.SensorID, report.Station.Name, report.Result)

			mu.Lock()
			reports[KeyOf(station)] = report
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	c.cache.Replace(reports, runID, c.now())
	c.metrics.RefreshCompleted(time.Since(started))
	c.readyOnce.Do(func() { close(c.ready) })

	logger.Infof("Icing refresh complete: %d/%d stations in %v", len(reports), len(c.stations), time.Since(started).Round(time.Millisecond))

	if len(reports) == 0 {
		return ErrNoStationData
	}
	return nil
}

func durationOrDefault(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %v", d)
	}
	return d, nil
}
