package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := parseYAML(cfgFile)
	if err != nil {
		return nil, err
	}

	y.config = config
	return config, nil
}

func parseYAML(data []byte) (*ConfigData, error) {
	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		FMI         FMIYAML          `yaml:"fmi,omitempty"`
		Icing       IcingYAML        `yaml:"icing,omitempty"`
		Stations    []StationYAML    `yaml:"stations,omitempty"`
		Controllers []ControllerYAML `yaml:"controllers,omitempty"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		FMI: FMIData{
			Endpoint: yamlConfig.FMI.Endpoint,
			Producer: yamlConfig.FMI.Producer,
			Timestep: yamlConfig.FMI.Timestep,
			Timeout:  yamlConfig.FMI.Timeout,
		}.WithDefaults(),
		Icing: IcingData{
			MinWindow:      yamlConfig.Icing.MinWindow,
			MeanWindow:     yamlConfig.Icing.MeanWindow,
			GapWindow:      yamlConfig.Icing.GapWindow,
			NoiseThreshold: yamlConfig.Icing.NoiseThreshold,
			MMPerUnit:      yamlConfig.Icing.MMPerUnit,
		},
		Controllers: make([]ControllerData, len(yamlConfig.Controllers)),
	}

	for _, station := range yamlConfig.Stations {
		config.Stations = append(config.Stations, StationData{
			Name:     station.Name,
			FMISID:   station.FMISID,
			SensorID: station.SensorID,
		})
	}
	if len(config.Stations) == 0 {
		config.Stations = DefaultStations()
	}

	// Convert controllers
	for i, controller := range yamlConfig.Controllers {
		config.Controllers[i] = ControllerData{
			Type: controller.Type,
		}

		if controller.RESTServer != nil {
			config.Controllers[i].RESTServer = &RESTServerData{
				Cert:       controller.RESTServer.Cert,
				Key:        controller.RESTServer.Key,
				Port:       controller.RESTServer.Port,
				ListenAddr: controller.RESTServer.ListenAddr,
			}
		}

		if controller.IcingCache != nil {
			config.Controllers[i].IcingCache = &IcingCacheData{
				RefreshInterval: controller.IcingCache.RefreshInterval,
				Lookback:        controller.IcingCache.Lookback,
				Workers:         controller.IcingCache.Workers,
			}
		}

		if controller.GRPC != nil {
			config.Controllers[i].GRPC = &GRPCData{
				Cert:       controller.GRPC.Cert,
				Key:        controller.GRPC.Key,
				Port:       controller.GRPC.Port,
				ListenAddr: controller.GRPC.ListenAddr,
			}
		}
	}

	return config, nil
}

func (y *YAMLProvider) loaded() (*ConfigData, error) {
	if y.config == nil {
		return y.LoadConfig()
	}
	return y.config, nil
}

// GetStations returns station configurations
func (y *YAMLProvider) GetStations() ([]StationData, error) {
	cfg, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return cfg.Stations, nil
}

// GetFMIConfig returns the FMI API configuration
func (y *YAMLProvider) GetFMIConfig() (*FMIData, error) {
	cfg, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &cfg.FMI, nil
}

// GetIcingConfig returns the icing calibration
func (y *YAMLProvider) GetIcingConfig() (*IcingData, error) {
	cfg, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &cfg.Icing, nil
}

// GetControllers returns controller configurations
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	cfg, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return cfg.Controllers, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with YAML tags
type FMIYAML struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	Producer string `yaml:"producer,omitempty"`
	Timestep string `yaml:"timestep,omitempty"`
	Timeout  string `yaml:"timeout,omitempty"`
}

type IcingYAML struct {
	MinWindow      string  `yaml:"min-window,omitempty"`
	MeanWindow     string  `yaml:"mean-window,omitempty"`
	GapWindow      string  `yaml:"gap-window,omitempty"`
	NoiseThreshold float64 `yaml:"noise-threshold,omitempty"`
	MMPerUnit      float64 `yaml:"mm-per-unit,omitempty"`
}

type StationYAML struct {
	Name     string `yaml:"name"`
	FMISID   int    `yaml:"fmisid"`
	SensorID int    `yaml:"sensor-id,omitempty"`
}

type ControllerYAML struct {
	Type       string          `yaml:"type,omitempty"`
	RESTServer *RESTServerYAML `yaml:"rest,omitempty"`
	IcingCache *IcingCacheYAML `yaml:"icingcache,omitempty"`
	GRPC       *GRPCYAML       `yaml:"grpc,omitempty"`
}

type RESTServerYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
}

type IcingCacheYAML struct {
	RefreshInterval string `yaml:"refresh-interval,omitempty"`
	Lookback        string `yaml:"lookback,omitempty"`
	Workers         int    `yaml:"workers,omitempty"`
}

type GRPCYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
}
