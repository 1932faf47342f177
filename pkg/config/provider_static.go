package config

// StaticProvider serves a configuration held in memory
type StaticProvider struct {
	config *ConfigData
}

// NewStaticProvider wraps an in-memory configuration. Stations default to the
// built-in catalogue when none are given.
func NewStaticProvider(cfg *ConfigData) *StaticProvider {
	if cfg == nil {
		cfg = &ConfigData{}
	}
	cfg.FMI = cfg.FMI.WithDefaults()
	if len(cfg.Stations) == 0 {
		cfg.Stations = DefaultStations()
	}
	return &StaticProvider{config: cfg}
}

func (s *StaticProvider) LoadConfig() (*ConfigData, error) {
	return s.config, nil
}

func (s *StaticProvider) GetStations() ([]StationData, error) {
	return s.config.Stations, nil
}

func (s *StaticProvider) GetFMIConfig() (*FMIData, error) {
	return &s.config.FMI, nil
}

func (s *StaticProvider) GetIcingConfig() (*IcingData, error) {
	return &s.config.Icing, nil
}

func (s *StaticProvider) GetControllers() ([]ControllerData, error) {
	return s.config.Controllers, nil
}

// IsReadOnly returns true since the configuration cannot be changed
func (s *StaticProvider) IsReadOnly() bool {
	return true
}

func (s *StaticProvider) Close() error {
	return nil
}
