package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// GetGlobalConfigDir returns the path to the global configuration directory (~/.cognical).
// This is the source of truth for where global config lives.
// It's a variable to allow overriding in tests.
var GetGlobalConfigDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cognical"), nil
}

// GetSimulationDBPath returns the path to the simulated collaborator's
// database. Resolution order (first match wins):
// 1. Explicit config via "gateway.simulationDb" (Viper/env/flag)
// 2. Local project directory: .cognical/planning.db (if the directory exists)
// 3. XDG_DATA_HOME/cognical/planning.db (if XDG_DATA_HOME is set)
// 4. Global fallback: ~/.cognical/planning.db
func GetSimulationDBPath() string {
	if path := viper.GetString("gateway.simulationDb"); path != "" {
		return path
	}

	// Per-project isolation when running from within a project
	if info, err := os.Stat(".cognical"); err == nil && info.IsDir() {
		return filepath.Join(".cognical", "planning.db")
	}

	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "cognical", "planning.db")
	}

	dir, err := GetGlobalConfigDir()
	if err != nil {
		return filepath.Join(".", "planning.db")
	}
	return filepath.Join(dir, "planning.db")
}
