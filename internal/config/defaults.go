// Package config provides centralized configuration constants for CogniCal.
// All default values should be defined here to ensure a single source of truth.
package config

// Gateway defaults
const (
	// DefaultGatewayMode selects the backend automatically: remote when an
	// endpoint is configured, simulation otherwise.
	DefaultGatewayMode = "auto"

	// GatewayModeRemote forces the HTTP bridge to the planning collaborator.
	GatewayModeRemote = "remote"

	// GatewayModeSimulation forces the in-process simulated collaborator.
	GatewayModeSimulation = "simulation"

	// DefaultRequestTimeoutSeconds bounds one planning round trip.
	DefaultRequestTimeoutSeconds = 30
)

// ConfigFileName is the name of the main configuration file.
const ConfigFileName = "config.yaml"
