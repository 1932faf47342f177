// Package fmi fetches ice detector frequency observations from the Finnish
// Meteorological Institute open data timeseries API.
package fmi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/chrissnell/icewatch/internal/icing"
	"github.com/chrissnell/icewatch/pkg/config"
	"go.uber.org/zap"
)

// RequestTimeFormat is the time format of the starttime/endtime query parameters
const RequestTimeFormat = "20060102T1504"

// Request selects one sensor and a UTC time range
type Request struct {
	FMISID int
	// SensorID picks one detector at multi-sensor sites; zero means the site default
	SensorID int
	Start    time.Time
	End      time.Time
}

// Station describes the site that produced a dataset
type Station struct {
	FMISID int     `json:"fmisid"`
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// Dataset is the parsed response for one request
type Dataset struct {
	Station Station
	Series  icing.Series
}

// Empty reports whether the dataset holds no observations
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Series) == 0
}

// Client talks to the FMI timeseries API
type Client struct {
	endpoint   string
	producer   string
	timestep   string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// NewClient creates a client from the FMI configuration section
func NewClient(cfg config.FMIData, logger *zap.SugaredLogger) (*Client, error) {
	cfg = cfg.WithDefaults()

	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return nil, fmt.Errorf("fmi.timeout: %w", err)
	}

	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid fmi endpoint %q: %w", cfg.Endpoint, err)
	}

	return &Client{
		endpoint:   cfg.Endpoint,
		producer:   cfg.Producer,
		timestep:   cfg.Timestep,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// URL builds the request URL for r
func (c *Client) URL(r Request) string {
	freqParam := "fzfreq_pt1m_instant as fzfreq"
	if r.SensorID != 0 {
		freqParam = fmt.Sprintf("fzfreq_pt1m_instant(:%d) as fzfreq", r.SensorID)
	}

	q := url.Values{}
	q.Set("format", "csv")
	q.Set("timeformat", "sql")
	q.Set("producer", c.producer)
	q.Set("groupareas", "0")
	q.Set("precision", "double")
	q.Set("tz", "UTC")
	q.Set("timestep", c.timestep)
	q.Set("starttime", r.Start.UTC().Format(RequestTimeFormat))
	q.Set("endtime", r.End.UTC().Format(RequestTimeFormat))
	q.Set("fmisid", strconv.Itoa(r.FMISID))
	q.Set("param", "fmisid,stationname,name,utctime,localtime,lat,lon,"+freqParam)

	return c.endpoint + "?" + q.Encode()
}

// Fetch downloads and parses the observations for r. A non-200 response is not an
// error: it yields an empty dataset, which callers treat as "no data for this station".
func (c *Client) Fetch(ctx context.Context, r Request) (*Dataset, error) {
	reqURL := c.URL(r)
	c.logger.Debugf("fetching ice detector data: %s", reqURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch station %d: %w", r.FMISID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warnf("download for station %d failed with status code: %d", r.FMISID, resp.StatusCode)
		io.Copy(io.Discard, resp.Body)
		return &Dataset{Station: Station{FMISID: r.FMISID}}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response for station %d: %w", r.FMISID, err)
	}

	ds, err := ParseCSV(body, resp.Header.Get("Content-Type"), r.SensorID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response for station %d: %w", r.FMISID, err)
	}
	if ds.Station.FMISID == 0 {
		ds.Station.FMISID = r.FMISID
	}

	c.logger.Debugf("station %d (%s): %d observations", r.FMISID, ds.Station.Name, len(ds.Series))
	return ds, nil
}
