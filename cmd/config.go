package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/M-24rjgc/cognical/internal/config"
	"github.com/M-24rjgc/cognical/internal/logger"
	"github.com/M-24rjgc/cognical/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configDirName = ".cognical"
	envPrefix     = "COGNICAL"
)

// GlobalAppConfig holds the global application configuration instance.
var GlobalAppConfig types.AppConfig

// validate is a single validator instance; it caches struct info.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// validateAppConfig performs validation on the AppConfig struct.
func validateAppConfig(cfg *types.AppConfig) error {
	return validate.Struct(cfg)
}

// InitConfig reads in the config file and ENV variables if set.
//
// Search order: --config flag, ./.cognical/config.yaml when the project
// directory exists, then $HOME/.cognical/config.yaml. Environment variables
// prefixed COGNICAL_ override file values (COGNICAL_GATEWAY_ENDPOINT etc).
func InitConfig() {
	// A .env file is optional; ignore its absence.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfgFileFlag := viper.GetString("config")

	if cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else if info, err := os.Stat(configDirName); err == nil && info.IsDir() {
		// Project-local configuration takes precedence over the global one.
		viper.AddConfigPath(configDirName)
		viper.SetConfigName(strings.TrimSuffix(config.ConfigFileName, filepath.Ext(config.ConfigFileName)))
		viper.SetConfigType("yaml")
	} else {
		globalDir, err := config.GetGlobalConfigDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(globalDir)
		viper.SetConfigName(strings.TrimSuffix(config.ConfigFileName, filepath.Ext(config.ConfigFileName)))
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if cfgFileFlag != "" {
				fmt.Fprintln(os.Stderr, "Error: specified config file not found:", cfgFileFlag)
			} else if viper.GetBool("verbose") {
				fmt.Fprintln(os.Stderr, "No config file found. Using defaults and environment variables.")
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
		}
	}

	viper.SetDefault("project.rootDir", configDirName)

	viper.SetDefault("gateway.mode", config.DefaultGatewayMode)
	viper.SetDefault("gateway.endpoint", "")
	viper.SetDefault("gateway.requestTimeoutSeconds", config.DefaultRequestTimeoutSeconds)
	viper.SetDefault("gateway.simulationDb", "")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.apiKey", "")
	viper.SetDefault("telemetry.endpoint", "")

	if err := viper.Unmarshal(&GlobalAppConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling config: %s\n", err)
		os.Exit(1)
	}

	if GlobalAppConfig.Project.RootDir == "" {
		GlobalAppConfig.Project.RootDir = viper.GetString("project.rootDir")
	}
	if GlobalAppConfig.Gateway.SimulationDB == "" {
		GlobalAppConfig.Gateway.SimulationDB = config.GetSimulationDBPath()
	}

	if err := validateAppConfig(&GlobalAppConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation error: %s\n", err)
		os.Exit(1)
	}

	// Crash logs live next to the config that was picked.
	if info, err := os.Stat(configDirName); err == nil && info.IsDir() {
		logger.SetBasePath(configDirName)
	} else if globalDir, err := config.GetGlobalConfigDir(); err == nil {
		logger.SetBasePath(globalDir)
	}
}

// GetConfig returns a pointer to the global types.AppConfig instance.
func GetConfig() *types.AppConfig {
	return &GlobalAppConfig
}
