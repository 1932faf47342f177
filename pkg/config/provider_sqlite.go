package config

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/chrissnell/icewatch/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationTable records the applied configuration schema version
const MigrationTable = "config_schema_migrations"

// Migrations returns the embedded configuration schema migrations
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// InitSchema applies any pending configuration schema migrations
func (s *SQLiteProvider) InitSchema() error {
	migrator := migrate.NewMigrator(s.db, migrate.NewFSProvider(Migrations(), MigrationTable), nil)
	if err := migrator.MigrateUp(); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SaveConfig replaces the stored settings, stations and controllers with cfg
func (s *SQLiteProvider) SaveConfig(cfg *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"settings", "stations", "controllers"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	settings := map[string]string{
		"fmi.endpoint":      cfg.FMI.Endpoint,
		"fmi.producer":      cfg.FMI.Producer,
		"fmi.timestep":      cfg.FMI.Timestep,
		"fmi.timeout":       cfg.FMI.Timeout,
		"icing.min_window":  cfg.Icing.MinWindow,
		"icing.mean_window": cfg.Icing.MeanWindow,
		"icing.gap_window":  cfg.Icing.GapWindow,
	}
	if cfg.Icing.NoiseThreshold != 0 {
		settings["icing.noise_threshold"] = strconv.FormatFloat(cfg.Icing.NoiseThreshold, 'g', -1, 64)
	}
	if cfg.Icing.MMPerUnit != 0 {
		settings["icing.mm_per_unit"] = strconv.FormatFloat(cfg.Icing.MMPerUnit, 'g', -1, 64)
	}
	for k, v := range settings {
		if v == "" {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", k, err)
		}
	}

	for _, st := range cfg.Stations {
		var sensorID sql.NullInt64
		if st.SensorID != 0 {
			sensorID = sql.NullInt64{Int64: int64(st.SensorID), Valid: true}
		}
		if _, err := tx.Exec(`INSERT INTO stations (name, fmisid, sensor_id) VALUES (?, ?, ?)`,
			st.Name, st.FMISID, sensorID); err != nil {
			return fmt.Errorf("failed to save station %s: %w", st.Name, err)
		}
	}

	for _, c := range cfg.Controllers {
		var listenAddr, cert, key, refreshInterval, lookback string
		var port, workers int

		switch {
		case c.RESTServer != nil:
			listenAddr, cert, key, port = c.RESTServer.ListenAddr, c.RESTServer.Cert, c.RESTServer.Key, c.RESTServer.Port
		case c.GRPC != nil:
			listenAddr, cert, key, port = c.GRPC.ListenAddr, c.GRPC.Cert, c.GRPC.Key, c.GRPC.Port
		case c.IcingCache != nil:
			refreshInterval, lookback, workers = c.IcingCache.RefreshInterval, c.IcingCache.Lookback, c.IcingCache.Workers
		}

		_, err := tx.Exec(`
			INSERT INTO controllers (type, listen_addr, port, cert, key, refresh_interval, lookback, workers)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Type, listenAddr, port, cert, key, refreshInterval, lookback, workers)
		if err != nil {
			return fmt.Errorf("failed to save %s controller: %w", c.Type, err)
		}
	}

	return tx.Commit()
}

// DB exposes the underlying handle for tools that seed the configuration
func (s *SQLiteProvider) DB() *sql.DB {
	return s.db
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	fmi, err := s.GetFMIConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load fmi config: %w", err)
	}
	config.FMI = *fmi

	icingCfg, err := s.GetIcingConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load icing config: %w", err)
	}
	config.Icing = *icingCfg

	stations, err := s.GetStations()
	if err != nil {
		return nil, fmt.Errorf("failed to load stations: %w", err)
	}
	config.Stations = stations

	controllers, err := s.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("failed to load controllers: %w", err)
	}
	config.Controllers = controllers

	return config, nil
}

// GetStations returns station configurations, or the default catalogue when the table is empty
func (s *SQLiteProvider) GetStations() ([]StationData, error) {
	rows, err := s.db.Query(`SELECT name, fmisid, sensor_id FROM stations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var stations []StationData
	for rows.Next() {
		var station StationData
		var sensorID sql.NullInt64

		if err := rows.Scan(&station.Name, &station.FMISID, &sensorID); err != nil {
			return nil, fmt.Errorf("failed to scan station row: %w", err)
		}
		if sensorID.Valid {
			station.SensorID = int(sensorID.Int64)
		}
		stations = append(stations, station)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating station rows: %w", err)
	}

	if len(stations) == 0 {
		return DefaultStations(), nil
	}
	return stations, nil
}

// GetFMIConfig returns the FMI API configuration from the settings table
func (s *SQLiteProvider) GetFMIConfig() (*FMIData, error) {
	settings, err := s.settings()
	if err != nil {
		return nil, err
	}

	fmi := FMIData{
		Endpoint: settings["fmi.endpoint"],
		Producer: settings["fmi.producer"],
		Timestep: settings["fmi.timestep"],
		Timeout:  settings["fmi.timeout"],
	}.WithDefaults()
	return &fmi, nil
}

// GetIcingConfig returns the icing calibration from the settings table
func (s *SQLiteProvider) GetIcingConfig() (*IcingData, error) {
	settings, err := s.settings()
	if err != nil {
		return nil, err
	}

	icingCfg := &IcingData{
		MinWindow:  settings["icing.min_window"],
		MeanWindow: settings["icing.mean_window"],
		GapWindow:  settings["icing.gap_window"],
	}

	if v := settings["icing.noise_threshold"]; v != "" {
		if icingCfg.NoiseThreshold, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid icing.noise_threshold %q: %w", v, err)
		}
	}
	if v := settings["icing.mm_per_unit"]; v != "" {
		if icingCfg.MMPerUnit, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid icing.mm_per_unit %q: %w", v, err)
		}
	}

	return icingCfg, nil
}

// GetControllers returns controller configurations from the database
func (s *SQLiteProvider) GetControllers() ([]ControllerData, error) {
	query := `
		SELECT type, listen_addr, port, cert, key, refresh_interval, lookback, workers
		FROM controllers
		ORDER BY id
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query controllers: %w", err)
	}
	defer rows.Close()

	var controllers []ControllerData
	for rows.Next() {
		var controller ControllerData
		var listenAddr, cert, key, refreshInterval, lookback sql.NullString
		var port, workers sql.NullInt64

		err := rows.Scan(&controller.Type, &listenAddr, &port, &cert, &key,
			&refreshInterval, &lookback, &workers)
		if err != nil {
			return nil, fmt.Errorf("failed to scan controller row: %w", err)
		}

		switch controller.Type {
		case "rest", "restserver":
			controller.RESTServer = &RESTServerData{
				Cert:       cert.String,
				Key:        key.String,
				Port:       int(port.Int64),
				ListenAddr: listenAddr.String,
			}
		case "grpc":
			controller.GRPC = &GRPCData{
				Cert:       cert.String,
				Key:        key.String,
				Port:       int(port.Int64),
				ListenAddr: listenAddr.String,
			}
		case "icingcache":
			controller.IcingCache = &IcingCacheData{
				RefreshInterval: refreshInterval.String,
				Lookback:        lookback.String,
				Workers:         int(workers.Int64),
			}
		}

		controllers = append(controllers, controller)
	}

	return controllers, rows.Err()
}

// IsReadOnly returns false since SQLite configuration can be edited in place
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteProvider) settings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting row: %w", err)
		}
		settings[k] = v
	}
	return settings, rows.Err()
}
