package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigDir is used when CONFIG_DIR is unset
const DefaultConfigDir = "./config"

// Loader layers configuration from, lowest priority first:
//  1. Defaults
//  2. base.yaml
//  3. <environment>.yaml
//  4. local.yaml (development only)
//  5. Environment variables
//
// Missing files are skipped.
type Loader struct {
	dir         string
	environment string
}

// NewLoader creates a loader reading from dir. An empty dir falls back to
// CONFIG_DIR and then DefaultConfigDir; an empty environment falls back to
// ENVIRONMENT and then "development".
func NewLoader(dir, environment string) *Loader {
	if dir == "" {
		dir = getEnv("CONFIG_DIR", DefaultConfigDir)
	}
	if environment == "" {
		environment = getEnv("ENVIRONMENT", "development")
	}
	return &Loader{dir: dir, environment: environment}
}

// Dir returns the directory files are read from
func (l *Loader) Dir() string {
	return l.dir
}

// Load builds and validates the layered configuration
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()
	cfg.Environment = l.environment
	sources := []string{"defaults"}

	files := []string{"base", strings.ToLower(l.environment)}
	if l.environment == "development" {
		files = append(files, "local")
	}
	for _, name := range files {
		path, err := l.loadFile(name, cfg)
		if err != nil {
			return nil, err
		}
		if path != "" {
			sources = append(sources, path)
		}
	}

	applyEnv(cfg)
	sources = append(sources, "environment")
	cfg.LoadedFrom = sources
	cfg.applyBackendDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes <name>.yaml or <name>.yml over cfg and returns the path
// it read, or "" when neither exists.
func (l *Loader) loadFile(name string, cfg *Config) (string, error) {
	for _, ext := range []string{"yaml", "yml"} {
		path := filepath.Join(l.dir, name+"."+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return path, nil
	}
	return "", nil
}

// isConfigFile reports whether path is a file the loader reads
func isConfigFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
