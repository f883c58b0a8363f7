// Package scovconfig provides unified configuration loading for scriptcov tools.
//
// Configuration lives in a declarative TOML file (scriptcov.toml), discovered
// by walking up the directory tree from the current directory. It can also be
// specified via:
//   - SCRIPTCOV_CONFIG environment variable
//   - --config flag on individual tools
package scovconfig

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigTOML is the config filename looked up during discovery.
const ConfigTOML = "scriptcov.toml"

// EnvConfig is the environment variable for specifying config file path.
const EnvConfig = "SCRIPTCOV_CONFIG"

// DefaultVariable is the default runtime coverage namespace variable.
const DefaultVariable = "__scriptcov__"

// Config represents the unified scriptcov configuration.
type Config struct {
	// Instrument contains instrumentation engine configuration.
	Instrument InstrumentConfig `json:"instrument" toml:"instrument"`

	// Report contains report generation configuration.
	Report ReportConfig `json:"report" toml:"report"`
}

// InstrumentConfig contains instrumentation engine configuration.
type InstrumentConfig struct {
	// Variable is the coverage namespace variable injected into sources.
	Variable string `json:"variable" toml:"variable"`

	// Ignore is a list of patterns; sources whose identifier fully matches
	// any pattern are passed through uninstrumented.
	Ignore []string `json:"ignore" toml:"ignore"`

	// OutputDir is where instrumented copies are dumped when Dump is set.
	OutputDir string `json:"output_dir" toml:"output_dir"`

	// Dump enables writing instrumented copies next to the manifest.
	Dump bool `json:"dump" toml:"dump"`

	// Manifest is the path of the instrumentation records manifest.
	Manifest string `json:"manifest" toml:"manifest"`
}

// ReportConfig contains report generation configuration.
type ReportConfig struct {
	// Format selects the report format: text, json, lcov or cobertura.
	Format string `json:"format" toml:"format"`

	// FailUnder fails the report run if total coverage is below this percentage.
	FailUnder float64 `json:"fail_under" toml:"fail_under"`

	// Output is the report output file path (empty = stdout).
	Output string `json:"output" toml:"output"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Instrument: InstrumentConfig{
			Variable: DefaultVariable,
			Manifest: "scriptcov-manifest.json",
		},
		Report: ReportConfig{
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from the specified path.
func LoadConfig(path string) (*Config, error) {
	if ext := filepath.Ext(path); ext != ".toml" {
		return nil, fmt.Errorf("unsupported config file extension: %s (expected .toml)", ext)
	}
	return LoadTOMLConfig(path)
}

// DiscoverConfig searches for a configuration file.
//
// Resolution order:
//  1. If SCRIPTCOV_CONFIG env var is set, use that path
//  2. Walk up from startDir looking for scriptcov.toml
//
// Returns the loaded config, the path to the config file, and any error.
// If no config is found, returns (DefaultConfig(), "", nil).
func DiscoverConfig(startDir string) (*Config, string, error) {
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		cfg, err := LoadConfig(envPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", EnvConfig, err)
		}
		return cfg, envPath, nil
	}

	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("getting working directory: %w", err)
		}
	}

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path: %w", err)
	}

	// Stop the upward walk at the repository root, if there is one.
	gitRoot := findGitRoot(absDir)

	dir := absDir
	for {
		configPath := filepath.Join(dir, ConfigTOML)
		if fileExists(configPath) {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return nil, "", err
			}
			return cfg, configPath, nil
		}

		if gitRoot != "" && dir == gitRoot {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}

	return DefaultConfig(), "", nil
}

// findGitRoot walks up from dir looking for a .git directory.
// Returns "" if none is found.
func findGitRoot(dir string) string {
	for {
		if fileExists(filepath.Join(dir, ".git")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
