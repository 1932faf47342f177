package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"

	"github.com/chrissnell/icewatch/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite configuration file")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Comparison Test")
	fmt.Println("===========================")

	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	yamlConfig, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loading SQLite configuration: %s\n", *sqliteFile)
	sqliteProvider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite provider: %v\n", err)
		os.Exit(1)
	}
	defer sqliteProvider.Close()

	sqliteConfig, err := sqliteProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading SQLite config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nComparison Results:")
	fmt.Println("==================")

	if !compare(os.Stdout, yamlConfig, sqliteConfig) {
		fmt.Println("\n✗ Configurations differ")
		os.Exit(1)
	}
	fmt.Println("\n✓ Configurations match")
}

// compare reports every section of a and b to w and returns true when they agree
func compare(w io.Writer, a, b *config.ConfigData) bool {
	ok := true
	check := func(section string, x, y any) {
		if reflect.DeepEqual(x, y) {
			fmt.Fprintf(w, "✓ %s matches\n", section)
			return
		}
		ok = false
		fmt.Fprintf(w, "✗ %s differs\n  YAML:   %+v\n  SQLite: %+v\n", section, x, y)
	}

	check("FMI settings", a.FMI.WithDefaults(), b.FMI.WithDefaults())
	check("Icing settings", a.Icing, b.Icing)

	for name, cfg := range map[string]*config.ConfigData{"YAML": a, "SQLite": b} {
		if _, err := cfg.Icing.Params(); err != nil {
			ok = false
			fmt.Fprintf(w, "✗ %s icing settings invalid: %v\n", name, err)
		}
	}

	fmt.Fprintf(w, "Stations - YAML: %d, SQLite: %d\n", len(a.Stations), len(b.Stations))
	check("Stations", byFMISID(a.Stations), byFMISID(b.Stations))

	fmt.Fprintf(w, "Controllers - YAML: %d, SQLite: %d\n", len(a.Controllers), len(b.Controllers))
	check("Controllers", a.Controllers, b.Controllers)

	return ok
}

func byFMISID(stations []config.StationData) []config.StationData {
	sorted := append([]config.StationData(nil), stations...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].FMISID < sorted[j].FMISID
	})
	return sorted
}
