package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/chrissnell/icewatch/internal/log"
	"github.com/chrissnell/icewatch/pkg/config"
	"github.com/chrissnell/icewatch/pkg/migrate"
	_ "modernc.org/sqlite" // SQLite driver
)

func main() {
	var (
		dbDSN          = flag.String("dsn", "", "SQLite configuration database path")
		migrationDir   = flag.String("dir", "", "Migration directory (default: built-in configuration migrations)")
		migrationTable = flag.String("table", config.MigrationTable, "Migration table name")
		command        = flag.String("command", "up", "Migration command: up, down, to, version, status")
		targetVersion  = flag.String("target", "", "Target version for down/to commands")
		debug          = flag.Bool("debug", false, "Turn on debugging output")
		helpFlag       = flag.Bool("help", false, "Show help")
	)

	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *dbDSN == "" {
		fmt.Fprintf(os.Stderr, "Error: -dsn flag is required\n")
		showHelp()
		os.Exit(1)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := sql.Open("sqlite", *dbDSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	var provider *migrate.FSProvider
	if *migrationDir != "" {
		provider = migrate.NewDirProvider(*migrationDir, *migrationTable)
	} else {
		provider = migrate.NewFSProvider(config.Migrations(), *migrationTable)
	}
	migrator := migrate.NewMigrator(db, provider, log.GetSugaredLogger())

	if err := run(migrator, *command, *targetVersion, os.Stdout); err != nil {
		log.Fatalf("Migration command failed: %v", err)
	}
}

func run(migrator *migrate.Migrator, command, target string, w io.Writer) error {
	switch command {
	case "up":
		if err := migrator.MigrateUp(); err != nil {
			return err
		}
	case "down", "to":
		if target == "" {
			return fmt.Errorf("-target flag is required for %s command", command)
		}
		version, err := strconv.Atoi(target)
		if err != nil {
			return fmt.Errorf("invalid target version: %w", err)
		}
		if command == "down" {
			err = migrator.MigrateDown(version)
		} else {
			err = migrator.MigrateTo(version)
		}
		if err != nil {
			return err
		}
	case "version":
		version, err := migrator.GetCurrentVersion()
		if err != nil {
			return fmt.Errorf("failed to get current version: %w", err)
		}
		fmt.Fprintf(w, "Current version: %d\n", version)
		return nil
	case "status":
		return showStatus(migrator, w)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}

	fmt.Fprintln(w, "Migration completed successfully")
	return nil
}

func showStatus(migrator *migrate.Migrator, w io.Writer) error {
	status, err := migrator.Status()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	fmt.Fprintf(w, "Current version: %d\n", status.Current)
	fmt.Fprintf(w, "Latest version: %d\n", status.Latest)
	fmt.Fprintf(w, "Pending migrations: %d\n", len(status.Pending))

	if len(status.Pending) > 0 {
		fmt.Fprintln(w, "\nPending migrations:")
		for _, migration := range status.Pending {
			fmt.Fprintf(w, "  %d: %s\n", migration.Version, migration.Name)
		}
	}

	return nil
}

func showHelp() {
	fmt.Println("Configuration Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -dsn string        SQLite configuration database path (required)")
	fmt.Println("  -dir string        Migration directory (default: built-in migrations)")
	fmt.Println("  -table string      Migration table name (default: " + config.MigrationTable + ")")
	fmt.Println("  -command string    Migration command (default: up)")
	fmt.Println("  -target string     Target version for down/to commands")
	fmt.Println("  -debug             Turn on debugging output")
	fmt.Println("  -help              Show this help message")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending migrations")
	fmt.Println("  down               Roll back to target version")
	fmt.Println("  to                 Migrate to specific version (up or down)")
	fmt.Println("  version            Show current migration version")
	fmt.Println("  status             Show migration status")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -dsn config.db -command up")
	fmt.Println("  migrate -dsn config.db -command down -target 1")
	fmt.Println("  migrate -dsn config.db -command status")
}
