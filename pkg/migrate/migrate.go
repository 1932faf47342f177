// Package migrate applies versioned SQL schema migrations to a SQLite database.
package migrate

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Latest targets the newest available migration
const Latest = -1

// ErrUnknownVersion is returned for a target that no migration carries
var ErrUnknownVersion = errors.New("unknown migration version")

// Migration is one numbered schema change with its forward and reverse SQL
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Direction says whether a migration is applied or reverted
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

func (mig Migration) script(d Direction) string {
	if d == Down {
		return mig.Down
	}
	return mig.Up
}

// DB is satisfied by both *sql.DB and *sql.Tx
type DB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// MigrationProvider loads migrations and tracks the applied version
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(db *sql.DB) (int, error)
	SetVersion(db DB, version int) error
	CreateMigrationTable(db *sql.DB) error
}

// Status describes where a database stands against the available migrations
type Status struct {
	Current int
	Latest  int
	Applied []Migration
	Pending []Migration
}

// step is one migration in a plan, with the version recorded once it succeeds
type step struct {
	migration Migration
	direction Direction
	after     int
}

// Migrator walks a database between schema versions
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator creates a new migrator instance. A nil logger discards progress messages.
func NewMigrator(db *sql.DB, provider MigrationProvider, logger *zap.SugaredLogger) *Migrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{
		db:       db,
		provider: provider,
		logger:   logger,
	}
}

// MigrateUp applies every pending migration
func (m *Migrator) MigrateUp() error {
	return m.MigrateTo(Latest)
}

// MigrateDown reverts migrations until target is the current version. Target 0 empties
// the schema.
func (m *Migrator) MigrateDown(target int) error {
	current, migrations, err := m.load()
	if err != nil {
		return err
	}

	if target >= current {
		return fmt.Errorf("target version %d must be less than current version %d", target, current)
	}
	if err := checkTarget(migrations, target); err != nil {
		return err
	}

	return m.apply(plan(migrations, current, target))
}

// MigrateTo applies or reverts migrations until target is the current version
func (m *Migrator) MigrateTo(target int) error {
	current, migrations, err := m.load()
	if err != nil {
		return err
	}

	if target == Latest {
		target = latestVersion(migrations)
	} else if err := checkTarget(migrations, target); err != nil {
		return err
	}

	return m.apply(plan(migrations, current, target))
}

// GetCurrentVersion returns the current migration version
func (m *Migrator) GetCurrentVersion() (int, error) {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	return m.provider.GetCurrentVersion(m.db)
}

// GetPendingMigrations returns the migrations above the current version in order
func (m *Migrator) GetPendingMigrations() ([]Migration, error) {
	status, err := m.Status()
	if err != nil {
		return nil, err
	}
	return status.Pending, nil
}

// Status reports the current version and splits the migrations into applied and pending
func (m *Migrator) Status() (Status, error) {
	current, migrations, err := m.load()
	if err != nil {
		return Status{}, err
	}

	status := Status{Current: current, Latest: latestVersion(migrations)}
	for _, mig := range migrations {
		if mig.Version <= current {
			status.Applied = append(status.Applied, mig)
		} else {
			status.Pending = append(status.Pending, mig)
		}
	}
	return status, nil
}

// SetVersion records a version without running any SQL
func (m *Migrator) SetVersion(version int) error {
	return m.provider.SetVersion(m.db, version)
}

// load returns the current version and the migrations sorted by version
func (m *Migrator) load() (int, []Migration, error) {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get current version: %w", err)
	}

	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get migrations: %w", err)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return 0, nil, fmt.Errorf("duplicate migration version %d", migrations[i].Version)
		}
	}

	return current, migrations, nil
}

func latestVersion(migrations []Migration) int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}

func checkTarget(migrations []Migration, target int) error {
	if target == 0 {
		return nil
	}
	for _, mig := range migrations {
		if mig.Version == target {
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrUnknownVersion, target)
}

// plan orders the steps from current to target. Reverting a migration records the
// version of the one below it, so gaps in the numbering are kept.
func plan(migrations []Migration, current, target int) []step {
	var steps []step

	if target > current {
		for _, mig := range migrations {
			if mig.Version > current && mig.Version <= target {
				steps = append(steps, step{migration: mig, direction: Up, after: mig.Version})
			}
		}
		return steps
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		mig := migrations[i]
		if mig.Version <= target || mig.Version > current {
			continue
		}
		after := 0
		if i > 0 {
			after = migrations[i-1].Version
		}
		steps = append(steps, step{migration: mig, direction: Down, after: after})
	}
	return steps
}

func (m *Migrator) apply(steps []step) error {
	if len(steps) == 0 {
		m.logger.Debug("schema is up to date")
		return nil
	}

	for _, s := range steps {
		if err := m.execute(s); err != nil {
			return fmt.Errorf("migration %d %s: %w", s.migration.Version, s.direction, err)
		}
	}
	return nil
}

// execute runs one step and records its version in the same transaction
func (m *Migrator) execute(s step) error {
	script := s.migration.script(s.direction)
	if script == "" {
		return fmt.Errorf("no %s SQL", s.direction)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(script); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if err := m.provider.SetVersion(tx, s.after); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	m.logger.Infow("applied migration", "version", s.migration.Version, "name", s.migration.Name,
		"direction", s.direction.String(), "schema_version", s.after)
	return nil
}
