package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testYAML = `
fmi:
  endpoint: http://localhost:9999/timeseries
  timeout: 5s
icing:
  mean-window: 20m
  noise-threshold: 0.2
stations:
  - name: Vantaa
    fmisid: 100968
    sensor-id: 37
  - name: Oulu
    fmisid: 101786
controllers:
  - type: rest
    rest:
      listen-addr: 127.0.0.1
      port: 8081
  - type: icingcache
    icingcache:
      refresh-interval: 2m
      lookback: 12h
      workers: 3
`

func TestYAMLProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	provider := NewYAMLProvider(path)
	cfg, err := provider.LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.FMI.Endpoint != "http://localhost:9999/timeseries" {
		t.Errorf("unexpected endpoint %q", cfg.FMI.Endpoint)
	}
	if cfg.FMI.Producer != DefaultFMIProducer {
		t.Errorf("expected default producer, got %q", cfg.FMI.Producer)
	}
	timeout, err := cfg.FMI.RequestTimeout()
	if err != nil || timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v (%v)", timeout, err)
	}

	if len(cfg.Stations) != 2 || cfg.Stations[0].SensorID != 37 {
		t.Errorf("unexpected stations: %+v", cfg.Stations)
	}

	if len(cfg.Controllers) != 2 {
		t.Fatalf("expected 2 controllers, got %d", len(cfg.Controllers))
	}
	if cfg.Controllers[0].RESTServer == nil || cfg.Controllers[0].RESTServer.Port != 8081 {
		t.Errorf("unexpected rest controller: %+v", cfg.Controllers[0])
	}
	if cfg.Controllers[1].IcingCache == nil || cfg.Controllers[1].IcingCache.Workers != 3 {
		t.Errorf("unexpected icingcache controller: %+v", cfg.Controllers[1])
	}

	params, err := cfg.Icing.Params()
	if err != nil {
		t.Fatalf("unexpected params error: %v", err)
	}
	if params.MeanWindow != 20*time.Minute {
		t.Errorf("expected 20m mean window, got %v", params.MeanWindow)
	}
	if params.NoiseThreshold != 0.2 {
		t.Errorf("expected threshold 0.2, got %v", params.NoiseThreshold)
	}
	if params.MinWindow != 15*time.Minute || params.MMPerUnit != 0.00381 {
		t.Errorf("expected defaults for unset fields, got %+v", params)
	}
}

func TestYAMLProviderDefaultStations(t *testing.T) {
	cfg, err := parseYAML([]byte("fmi: {}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Stations) != len(DefaultStations()) {
		t.Errorf("expected the default catalogue, got %d stations", len(cfg.Stations))
	}
}

func TestIcingParamsRejectsBadDuration(t *testing.T) {
	if _, err := (IcingData{GapWindow: "fifteen"}).Params(); err == nil {
		t.Error("expected error for invalid duration")
	}
	if _, err := (IcingData{MinWindow: "-5m"}).Params(); err == nil {
		t.Error("expected error for negative window")
	}
}

func TestSQLiteProvider(t *testing.T) {
	provider, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer provider.Close()

	if err := provider.InitSchema(); err != nil {
		t.Fatalf("unexpected schema error: %v", err)
	}

	// Empty tables fall back to defaults
	stations, err := provider.GetStations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stations) != len(DefaultStations()) {
		t.Errorf("expected default catalogue, got %d stations", len(stations))
	}

	db := provider.DB()
	mustExec := func(query string, args ...any) {
		t.Helper()
		if _, err := db.Exec(query, args...); err != nil {
			t.Fatalf("exec %q: %v", query, err)
		}
	}
	mustExec(`INSERT INTO settings (key, value) VALUES ('fmi.producer', 'custom'), ('icing.noise_threshold', '0.25')`)
	mustExec(`INSERT INTO stations (name, fmisid, sensor_id) VALUES ('Vantaa', 100968, 37), ('Ivalo', 102033, NULL)`)
	mustExec(`INSERT INTO controllers (type, listen_addr, port) VALUES ('rest', '0.0.0.0', 8080)`)
	mustExec(`INSERT INTO controllers (type, refresh_interval, lookback, workers) VALUES ('icingcache', '5m', '24h', 4)`)

	cfg, err := provider.LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.FMI.Producer != "custom" || cfg.FMI.Endpoint != DefaultFMIEndpoint {
		t.Errorf("unexpected fmi config: %+v", cfg.FMI)
	}
	if cfg.Icing.NoiseThreshold != 0.25 {
		t.Errorf("expected threshold 0.25, got %v", cfg.Icing.NoiseThreshold)
	}
	if len(cfg.Stations) != 2 || cfg.Stations[0].Name != "Ivalo" || cfg.Stations[0].SensorID != 0 {
		t.Errorf("unexpected stations: %+v", cfg.Stations)
	}
	if len(cfg.Controllers) != 2 || cfg.Controllers[0].RESTServer == nil || cfg.Controllers[1].IcingCache == nil {
		t.Fatalf("unexpected controllers: %+v", cfg.Controllers)
	}
	if cfg.Controllers[1].IcingCache.Lookback != "24h" {
		t.Errorf("unexpected lookback %q", cfg.Controllers[1].IcingCache.Lookback)
	}
}

func TestSelectStations(t *testing.T) {
	catalogue := DefaultStations()

	selected, err := SelectStations(catalogue, []string{" vantaa ", "Oulu", "Vantaa"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(selected) != 2 || selected[0].SensorID != 37 {
		t.Errorf("unexpected selection: %+v", selected)
	}

	all, err := SelectStations(catalogue, []string{AllStations})
	if err != nil || len(all) != len(catalogue) {
		t.Errorf("expected whole catalogue, got %d (%v)", len(all), err)
	}

	if _, err := SelectStations(catalogue, []string{"Atlantis"}); err == nil {
		t.Error("expected error for unknown station")
	}

	for i := 1; i < len(catalogue); i++ {
		if catalogue[i-1].Name > catalogue[i].Name {
			t.Errorf("catalogue not sorted at %d: %s > %s", i, catalogue[i-1].Name, catalogue[i].Name)
		}
	}

	if s, ok := FindStation(catalogue, 101986); !ok || s.Name != "Kittilä" {
		t.Errorf("expected Kittilä, got %+v", s)
	}
}

func TestSelectStationsKeepsSensorsApart(t *testing.T) {
	catalogue := []StationData{
		{Name: "Vantaa 37", FMISID: 100968, SensorID: 37},
		{Name: "Vantaa 38", FMISID: 100968, SensorID: 38},
	}

	selected, err := SelectStations(catalogue, []string{"Vantaa 37", "Vantaa 38", "vantaa 38"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(selected) != 2 || selected[0].SensorID != 37 || selected[1].SensorID != 38 {
		t.Errorf("expected both sensors once, got %+v", selected)
	}
}

func TestStaticProvider(t *testing.T) {
	provider := NewStaticProvider(nil)

	stations, err := provider.GetStations()
	if err != nil || len(stations) != len(DefaultStations()) {
		t.Errorf("expected default catalogue, got %d stations (%v)", len(stations), err)
	}

	fmiCfg, _ := provider.GetFMIConfig()
	if fmiCfg.Endpoint != DefaultFMIEndpoint {
		t.Errorf("expected default endpoint, got %q", fmiCfg.Endpoint)
	}

	icingCfg, _ := provider.GetIcingConfig()
	if _, err := icingCfg.Params(); err != nil {
		t.Errorf("expected default params to be valid: %v", err)
	}
	if !provider.IsReadOnly() {
		t.Error("expected static provider to be read-only")
	}
}

func TestSQLiteProviderSaveConfig(t *testing.T) {
	provider, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer provider.Close()

	// Applying the schema twice is a no-op
	for i := 0; i < 2; i++ {
		if err := provider.InitSchema(); err != nil {
			t.Fatalf("unexpected schema error on pass %d: %v", i, err)
		}
	}

	in := &ConfigData{
		FMI:   FMIData{Producer: "custom", Timeout: "10s"},
		Icing: IcingData{GapWindow: "20m", NoiseThreshold: 0.3, MMPerUnit: 0.04},
		Stations: []StationData{
			{Name: "Vantaa", FMISID: 100968, SensorID: 37},
			{Name: "Oulu", FMISID: 101799},
		},
		Controllers: []ControllerData{
			{Type: "grpc", GRPC: &GRPCData{Port: 50052}},
			{Type: "icingcache", IcingCache: &IcingCacheData{RefreshInterval: "10m", Workers: 2}},
		},
	}

	// Saving twice replaces rather than appends
	for i := 0; i < 2; i++ {
		if err := provider.SaveConfig(in); err != nil {
			t.Fatalf("unexpected save error: %v", err)
		}
	}

	out, err := provider.LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.FMI.Producer != "custom" || out.FMI.Timeout != "10s" || out.FMI.Timestep != DefaultFMITimestep {
		t.Errorf("unexpected fmi config: %+v", out.FMI)
	}
	if out.Icing.GapWindow != "20m" || out.Icing.NoiseThreshold != 0.3 || out.Icing.MMPerUnit != 0.04 {
		t.Errorf("unexpected icing config: %+v", out.Icing)
	}
	if len(out.Stations) != 2 || out.Stations[0].Name != "Oulu" || out.Stations[1].SensorID != 37 {
		t.Errorf("unexpected stations: %+v", out.Stations)
	}
	if len(out.Controllers) != 2 || out.Controllers[0].GRPC == nil || out.Controllers[0].GRPC.Port != 50052 {
		t.Fatalf("unexpected controllers: %+v", out.Controllers)
	}
	if out.Controllers[1].IcingCache.Workers != 2 || out.Controllers[1].IcingCache.RefreshInterval != "10m" {
		t.Errorf("unexpected cache controller: %+v", out.Controllers[1].IcingCache)
	}
}
