package icingcache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chrissnell/icewatch/internal/pipeline"
	"github.com/chrissnell/icewatch/internal/summary"
	"github.com/chrissnell/icewatch/pkg/config"
)

// Key identifies one ice detector: a site and, at multi-sensor sites, the sensor.
// SensorID is zero for the site default.
type Key struct {
	FMISID   int
	SensorID int
}

// KeyOf returns the cache key of a configured station
func KeyOf(station config.StationData) Key {
	return Key{FMISID: station.FMISID, SensorID: station.SensorID}
}

func (k Key) String() string {
	if k.SensorID == 0 {
		return fmt.Sprintf("%d", k.FMISID)
	}
	return fmt.Sprintf("%d#%d", k.FMISID, k.SensorID)
}

func (k Key) less(o Key) bool {
	if k.FMISID != o.FMISID {
		return k.FMISID < o.FMISID
	}
	return k.SensorID < o.SensorID
}

// Cache holds the latest report of every station/sensor, replaced wholesale on each refresh
type Cache struct {
	mu          sync.RWMutex
	reports     map[Key]*pipeline.Report
	runID       string
	refreshedAt time.Time
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{reports: make(map[Key]*pipeline.Report)}
}

// Get returns the cached report for one station/sensor
func (c *Cache) Get(key Key) (*pipeline.Report, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.reports[key]
	return r, ok
}

// Station returns the cached reports of every sensor at a site, ordered by sensor id
func (c *Cache) Station(fmisid int) []*pipeline.Report {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*pipeline.Report
	for k, r := range c.reports {
		if k.FMISID == fmisid {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Config.SensorID < out[j].Config.SensorID
	})
	return out
}

// Summaries returns the colourized summaries of all cached stations, sorted by name
func (c *Cache) Summaries() []summary.StationSummary {
	c.mu.RLock()
	out := make([]summary.StationSummary, 0, len(c.reports))
	for _, r := range c.reports {
		out = append(out, r.Summary)
	}
	c.mu.RUnlock()

	return summary.Colorize(out)
}

// Keys returns the cached station/sensor keys in ascending order
func (c *Cache) Keys() []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]Key, 0, len(c.reports))
	for k := range c.reports {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].less(keys[j])
	})
	return keys
}

// RunID identifies the refresh that produced the cached reports
func (c *Cache) RunID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runID
}

// RefreshedAt returns when the cache was last replaced; zero if never
func (c *Cache) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

// Replace swaps in the reports of a completed refresh
func (c *Cache) Replace(reports map[Key]*pipeline.Report, runID string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = reports
	c.runID = runID
	c.refreshedAt = at
}
