// Package metrics holds the Prometheus collectors for ice accumulation and refresh health.
package metrics

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/chrissnell/icewatch/internal/icing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all collectors, registered on their own registry
type Metrics struct {
	registry *prometheus.Registry

	// Per-detector metrics (with 'fmisid', 'sensor' and 'station' labels)
	cumulativeFilteredMM *prometheus.GaugeVec // Final filtered accumulation in mm
	cumulativeInstantMM  *prometheus.GaugeVec // Final unfiltered accumulation in mm
	repairedPoints       *prometheus.GaugeVec // Points filled by gap repair in the last run
	observations         *prometheus.GaugeVec // Observations in the last fetched window
	lastUpdate           *prometheus.GaugeVec // Unix timestamp of the newest observation

	fetchFailures *prometheus.CounterVec // Fetches that failed or returned no data (by reason)

	refreshDuration prometheus.Histogram // Wall time of one full refresh
	refreshesTotal  prometheus.Counter   // Completed refreshes
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := []string{"fmisid", "sensor", "station"}

	return &Metrics{
		registry: reg,
		cumulativeFilteredMM: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "icing_cumulative_filtered_mm",
				Help: "Filtered ice accumulation over the lookback window in mm",
			},
			labels,
		),
		cumulativeInstantMM: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "icing_cumulative_instant_mm",
				Help: "Unfiltered ice accumulation over the lookback window in mm",
			},
			labels,
		),
		repairedPoints: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "icing_gap_repaired_points",
				Help: "Filtered rate points filled by gap repair in the last calculation",
			},
			labels,
		),
		observations: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "icing_observations",
				Help: "Observations in the last fetched window",
			},
			labels,
		),
		lastUpdate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "icing_last_observation_timestamp_seconds",
				Help: "Unix timestamp of the newest observation",
			},
			labels,
		),
		fetchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "icing_fetch_failures_total",
				Help: "Station fetches that failed or returned no data",
			},
			[]string{"fmisid", "sensor", "reason"},
		),
		refreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "icing_refresh_duration_seconds",
				Help:    "Time taken to refresh all stations",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		refreshesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "icing_refreshes_total",
				Help: "Completed refreshes of all stations",
			},
		),
	}
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStation records the outcome of one station/sensor calculation. Sensor zero is
// the site default.
func (m *Metrics) ObserveStation(fmisid, sensor int, station string, result *icing.Result) {
	id, sid := strconv.Itoa(fmisid), strconv.Itoa(sensor)

	m.ForgetStation(fmisid, sensor)

	m.cumulativeFilteredMM.WithLabelValues(id, sid, station).Set(orZero(result.TotalFilteredMM()))
	m.cumulativeInstantMM.WithLabelValues(id, sid, station).Set(orZero(result.TotalInstantMM()))
	m.observations.WithLabelValues(id, sid, station).Set(float64(result.Len()))
	if result != nil {
		m.repairedPoints.WithLabelValues(id, sid, station).Set(float64(result.RepairedFiltered))
	}
	if last, ok := result.Last(); ok {
		m.lastUpdate.WithLabelValues(id, sid, station).Set(float64(last.Time.Unix()))
	}
}

// ForgetStation removes every per-station series of one station/sensor
func (m *Metrics) ForgetStation(fmisid, sensor int) {
	labels := prometheus.Labels{"fmisid": strconv.Itoa(fmisid), "sensor": strconv.Itoa(sensor)}
	for _, vec := range []*prometheus.GaugeVec{
		m.cumulativeFilteredMM, m.cumulativeInstantMM, m.repairedPoints, m.observations, m.lastUpdate,
	} {
		vec.DeletePartialMatch(labels)
	}
}

// FetchFailed counts a failed station/sensor fetch
func (m *Metrics) FetchFailed(fmisid, sensor int, reason string) {
	m.fetchFailures.WithLabelValues(strconv.Itoa(fmisid), strconv.Itoa(sensor), reason).Inc()
}

// RefreshCompleted records a full refresh
func (m *Metrics) RefreshCompleted(d time.Duration) {
	m.refreshDuration.Observe(d.Seconds())
	m.refreshesTotal.Inc()
}

// Push sends the current values to a Prometheus Pushgateway under the given job name
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if err := push.New(gatewayURL, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}

func orZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
