package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configFs is the filesystem used for config writes. Tests swap in an
// afero.MemMapFs.
var configFs afero.Fs = afero.NewOsFs()

// fileConfig mirrors the config.yaml layout. Kept separate from the runtime
// config struct so the file stays stable when runtime fields move.
type fileConfig struct {
	Version string            `yaml:"version"`
	Gateway fileGatewayConfig `yaml:"gateway"`
	Verbose bool              `yaml:"verbose,omitempty"`
}

type fileGatewayConfig struct {
	Mode                  string `yaml:"mode"`
	Endpoint              string `yaml:"endpoint,omitempty"`
	RequestTimeoutSeconds int    `yaml:"requestTimeoutSeconds,omitempty"`
	SimulationDB          string `yaml:"simulationDb,omitempty"`
}

// WriteDefaultConfig creates config.yaml with defaults at the given path.
// Refuses to overwrite an existing file.
func WriteDefaultConfig(path string) error {
	exists, err := afero.Exists(configFs, path)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := configFs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	cfg := fileConfig{
		Version: "1",
		Gateway: fileGatewayConfig{
			Mode:                  DefaultGatewayMode,
			RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
		},
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	header := []byte("# CogniCal configuration\n")
	return afero.WriteFile(configFs, path, append(header, data...), 0600)
}

// SaveGlobalGatewayConfig persists the gateway mode and endpoint to the
// global config file, preserving any other settings already present.
func SaveGlobalGatewayConfig(mode, endpoint string) error {
	if mode == "" {
		return fmt.Errorf("gateway mode cannot be empty")
	}

	configDir, err := GetGlobalConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}
	configFile := filepath.Join(configDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	// Read existing if any to preserve other settings
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	v.Set("gateway.mode", mode)
	if endpoint != "" {
		v.Set("gateway.endpoint", endpoint)
	}

	if err := v.WriteConfig(); err != nil {
		// WriteConfig fails when the file does not exist yet
		return v.WriteConfigAs(configFile)
	}
	return nil
}
