package jungledb

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileDatabaseOptions mirrors DatabaseOptions' serializable fields for YAML
// config loading; OnUpgradeNeeded is a callback and has no YAML form.
type fileDatabaseOptions struct {
	Version           int           `yaml:"version"`
	MaxStores         int           `yaml:"maxStores"`
	WatchdogThreshold time.Duration `yaml:"watchdogThreshold"`
}

// LoadDatabaseOptions reads a YAML config file describing a DatabaseOptions
// (version, maxStores, watchdogThreshold), mirroring the config-from-YAML
// pattern used by standalone daemon tooling in the example pack. Callers
// still set OnUpgradeNeeded themselves since it is a callback.
func LoadDatabaseOptions(path string) (DatabaseOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DatabaseOptions{}, fmt.Errorf("jungledb: reading config %q: %w", path, err)
	}
	var f fileDatabaseOptions
	if err := yaml.Unmarshal(data, &f); err != nil {
		return DatabaseOptions{}, fmt.Errorf("jungledb: parsing config %q: %w", path, err)
	}
	return DatabaseOptions{
		Version:   f.Version,
		MaxStores: f.MaxStores,
		Watchdog:  WatchdogConfig{Threshold: f.WatchdogThreshold},
	}, nil
}
