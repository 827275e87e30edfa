// Package config loads the YAML configuration for the symresolve CLI:
// where to find symbol files, how verbose to be, and how to format
// resolved frames. The resolver library itself is unconfigured; this
// package exists only for the CLI front end.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level symresolve configuration document.
type Config struct {
	// SymbolDirs lists directories searched, in order, for a module's
	// .sym file when a caller supplies only a debug id.
	SymbolDirs []string `yaml:"symbol_dirs"`

	// Verbosity sets the resolver's log verbosity (see internal/symlog).
	Verbosity int `yaml:"verbosity"`

	// Format selects the CLI's output rendering: "text" or "json".
	Format string `yaml:"format"`

	// Color enables ANSI highlighting of resolved frames when the output
	// is a terminal. "auto", "on", or "off".
	Color string `yaml:"color"`
}

// Default returns the configuration used when no config file is given.
func Default() Config {
	return Config{
		Format: "text",
		Color:  "auto",
	}
}

// Load reads and parses the YAML document at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
