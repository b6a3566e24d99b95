package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/M-24rjgc/cognical/internal/config"
	"github.com/M-24rjgc/cognical/internal/gateway"
	"github.com/M-24rjgc/cognical/internal/logger"
	"github.com/M-24rjgc/cognical/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check CogniCal setup and diagnose issues",
	Long: `Validate your CogniCal installation and configuration.

Checks:
  • Configuration file and gateway settings
  • Planning collaborator reachability
  • Simulation database location
  • Telemetry consent state
  • Recent crash logs

Use this to troubleshoot issues or verify setup after init.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor()
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// DoctorCheck represents a single diagnostic check
type DoctorCheck struct {
	Name    string
	Status  string // "ok", "warn", "fail"
	Message string
	Hint    string
}

func runDoctor() error {
	fmt.Println("🩺 CogniCal Doctor")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	checks := []DoctorCheck{
		checkConfigFile(),
		checkGateway(),
		checkSimulationDB(),
		checkTelemetry(),
		checkCrashLogs(),
	}

	hasErrors := false
	for _, c := range checks {
		printCheck(c)
		if c.Status == "fail" {
			hasErrors = true
		}
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	if hasErrors {
		fmt.Println("❌ Issues found. Fix the errors above before continuing.")
	} else {
		fmt.Println("✅ Everything looks good!")
	}
	return nil
}

func printCheck(c DoctorCheck) {
	var icon string
	switch c.Status {
	case "ok":
		icon = "✅"
	case "warn":
		icon = "⚠️ "
	case "fail":
		icon = "❌"
	}
	fmt.Printf("%s %s: %s\n", icon, c.Name, c.Message)
	if c.Hint != "" {
		fmt.Printf("   → %s\n", c.Hint)
	}
}

func checkConfigFile() DoctorCheck {
	used := viper.ConfigFileUsed()
	if used == "" {
		return DoctorCheck{
			Name:    "Configuration",
			Status:  "warn",
			Message: "no config file found, using defaults",
			Hint:    "run 'cognical init' to create one",
		}
	}
	return DoctorCheck{Name: "Configuration", Status: "ok", Message: used}
}

func checkGateway() DoctorCheck {
	cfg := GetConfig().Gateway
	gw, err := gateway.New(&cfg)
	if err != nil {
		return DoctorCheck{
			Name:    "Gateway",
			Status:  "fail",
			Message: err.Error(),
			Hint:    "check gateway.mode and gateway.endpoint in your config",
		}
	}
	if c, ok := gw.(interface{ Close() error }); ok {
		defer func() { _ = c.Close() }()
	}

	if _, ok := gw.(*gateway.Simulation); ok {
		return DoctorCheck{Name: "Gateway", Status: "ok", Message: "simulation mode (offline)"}
	}

	// Probe the remote planner with a cheap preferences read.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := gw.GetPreferences(ctx, ""); err != nil {
		return DoctorCheck{
			Name:    "Gateway",
			Status:  "warn",
			Message: fmt.Sprintf("remote planner at %s not reachable: %s", cfg.Endpoint, errorCode(err)),
			Hint:    "planning commands will fail until the endpoint is reachable",
		}
	}
	return DoctorCheck{Name: "Gateway", Status: "ok", Message: fmt.Sprintf("remote planner at %s", cfg.Endpoint)}
}

func checkSimulationDB() DoctorCheck {
	path := config.GetSimulationDBPath()
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return DoctorCheck{
			Name:    "Simulation DB",
			Status:  "warn",
			Message: fmt.Sprintf("%s (directory will be created on first use)", path),
		}
	}
	return DoctorCheck{Name: "Simulation DB", Status: "ok", Message: path}
}

func checkTelemetry() DoctorCheck {
	consent, err := telemetry.Load()
	if err != nil {
		return DoctorCheck{Name: "Telemetry", Status: "warn", Message: err.Error()}
	}
	switch {
	case consent.NeedsConsent():
		return DoctorCheck{
			Name:    "Telemetry",
			Status:  "ok",
			Message: "not configured",
			Hint:    "opt in with 'cognical config telemetry enable'",
		}
	case consent.IsEnabled():
		return DoctorCheck{Name: "Telemetry", Status: "ok", Message: "enabled"}
	default:
		return DoctorCheck{Name: "Telemetry", Status: "ok", Message: "disabled"}
	}
}

func checkCrashLogs() DoctorCheck {
	logs, err := logger.ListCrashLogs()
	if err != nil || len(logs) == 0 {
		return DoctorCheck{Name: "Crash logs", Status: "ok", Message: "none"}
	}
	return DoctorCheck{
		Name:    "Crash logs",
		Status:  "warn",
		Message: fmt.Sprintf("%d crash log(s), latest: %s", len(logs), logs[0]),
		Hint:    "please report crashes at https://github.com/M-24rjgc/cognical/issues",
	}
}
