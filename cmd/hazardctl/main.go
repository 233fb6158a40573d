package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/alvaro-cleavant/hazard-map/internal/config"
)

// Options are shared by every command
type Options struct {
	ConfigFile string `short:"c" long:"config" env:"HAZARD_CONFIG" description:"Path to YAML configuration file; defaults apply when empty"`
}

var opts Options

func main() {
	parser := flags.NewParser(&opts, flags.Default)

	if _, err := parser.AddCommand("region",
		"Build an avoidance region",
		"Merge hazards from a GeoJSON FeatureCollection, validate them against the provider limits and report what would be avoided.",
		&regionCommand{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if _, err := parser.AddCommand("simulate",
		"Simulate driving a route",
		"Step a simulated position along an encoded polyline and print the deviation state at each report interval.",
		&simulateCommand{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if opts.ConfigFile == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(opts.ConfigFile)
}
