package config

import (
	"fmt"
	"time"

	"github.com/chrissnell/icewatch/internal/icing"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetStations() ([]StationData, error)
	GetFMIConfig() (*FMIData, error)
	GetIcingConfig() (*IcingData, error)
	GetControllers() ([]ControllerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	FMI         FMIData          `json:"fmi"`
	Icing       IcingData        `json:"icing"`
	Stations    []StationData    `json:"stations"`
	Controllers []ControllerData `json:"controllers,omitempty"`
}

// StationData identifies one ice detector. SensorID is zero for single-sensor sites.
type StationData struct {
	Name     string `json:"name"`
	FMISID   int    `json:"fmisid"`
	SensorID int    `json:"sensor_id,omitempty"`
}

// FMIData holds the settings of the FMI open data timeseries API
type FMIData struct {
	Endpoint string `json:"endpoint,omitempty"`
	Producer string `json:"producer,omitempty"`
	Timestep string `json:"timestep,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

// IcingData holds the calibration of the icing calculation. Empty fields take defaults.
type IcingData struct {
	MinWindow      string  `json:"min_window,omitempty"`
	MeanWindow     string  `json:"mean_window,omitempty"`
	GapWindow      string  `json:"gap_window,omitempty"`
	NoiseThreshold float64 `json:"noise_threshold,omitempty"`
	MMPerUnit      float64 `json:"mm_per_unit,omitempty"`
}

// ControllerData holds the configuration for the various controllers
type ControllerData struct {
	Type       string          `json:"type,omitempty"`
	RESTServer *RESTServerData `json:"rest,omitempty"`
	IcingCache *IcingCacheData `json:"icingcache,omitempty"`
	GRPC       *GRPCData       `json:"grpc,omitempty"`
}

type RESTServerData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
}

type IcingCacheData struct {
	RefreshInterval string `json:"refresh_interval,omitempty"`
	Lookback        string `json:"lookback,omitempty"`
	Workers         int    `json:"workers,omitempty"`
}

type GRPCData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
}

const (
	DefaultFMIEndpoint = "http://opendata.fmi.fi/timeseries"
	DefaultFMIProducer = "opendata"
	DefaultFMITimestep = "1m"
	DefaultFMITimeout  = 30 * time.Second
)

// WithDefaults fills empty FMI settings
func (f FMIData) WithDefaults() FMIData {
	if f.Endpoint == "" {
		f.Endpoint = DefaultFMIEndpoint
	}
	if f.Producer == "" {
		f.Producer = DefaultFMIProducer
	}
	if f.Timestep == "" {
		f.Timestep = DefaultFMITimestep
	}
	return f
}

// RequestTimeout returns the configured HTTP timeout, or the default when unset
func (f FMIData) RequestTimeout() (time.Duration, error) {
	return parseDuration(f.Timeout, DefaultFMITimeout)
}

// Params converts the icing section into calculation parameters.
// Anything left empty keeps the calibrated default.
func (i IcingData) Params() (icing.Params, error) {
	params := icing.DefaultParams()
	var err error

	if params.MinWindow, err = parseDuration(i.MinWindow, params.MinWindow); err != nil {
		return params, fmt.Errorf("icing.min_window: %w", err)
	}
	if params.MeanWindow, err = parseDuration(i.MeanWindow, params.MeanWindow); err != nil {
		return params, fmt.Errorf("icing.mean_window: %w", err)
	}
	if params.GapWindow, err = parseDuration(i.GapWindow, params.GapWindow); err != nil {
		return params, fmt.Errorf("icing.gap_window: %w", err)
	}
	if i.NoiseThreshold != 0 {
		params.NoiseThreshold = i.NoiseThreshold
	}
	if i.MMPerUnit != 0 {
		params.MMPerUnit = i.MMPerUnit
	}

	return params, params.Validate()
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
