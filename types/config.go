package types

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose   bool            `mapstructure:"verbose"`
	Config    string          `mapstructure:"config"`
	Project   ProjectConfig   `mapstructure:"project" validate:"required"`
	Gateway   GatewayConfig   `mapstructure:"gateway" validate:"required"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ProjectConfig holds project-related settings
type ProjectConfig struct {
	RootDir string `mapstructure:"rootDir" validate:"required"`
}

// GatewayConfig configures how planning commands reach the remote planner.
type GatewayConfig struct {
	// Mode selects the gateway backend: "remote" requires an endpoint,
	// "simulation" uses the in-process collaborator, "auto" (default) picks
	// remote when an endpoint is configured and simulation otherwise.
	Mode     string `mapstructure:"mode" validate:"omitempty,oneof=auto remote simulation"`
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
	// RequestTimeoutSeconds controls the HTTP client timeout for remote planning calls
	RequestTimeoutSeconds int `mapstructure:"requestTimeoutSeconds" validate:"omitempty,min=5,max=600"`
	// SimulationDB is the SQLite file backing the simulated collaborator.
	// Empty means an in-memory database.
	SimulationDB string `mapstructure:"simulationDb"`
}

// TelemetryConfig holds anonymous usage analytics settings.
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIKey   string `mapstructure:"apiKey"`
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}
