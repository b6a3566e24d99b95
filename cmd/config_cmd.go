package cmd

import (
	"fmt"

	"github.com/M-24rjgc/cognical/internal/config"
	"github.com/M-24rjgc/cognical/internal/telemetry"
	"github.com/spf13/cobra"
)

// configCmd is the parent config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CogniCal configuration",
	Long:  `View and manage CogniCal configuration settings.`,
}

var (
	gatewayMode     string
	gatewayEndpoint string
)

var configGatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Show or change how planning commands reach the collaborator",
	Long: `Without flags, shows the active gateway configuration. With --mode or
--endpoint, persists the new settings to the global config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("mode") && !cmd.Flags().Changed("endpoint") {
			cfg := GetConfig().Gateway
			if isJSON() {
				return printJSON(cfg)
			}
			fmt.Printf("Mode:       %s\n", cfg.Mode)
			if cfg.Endpoint != "" {
				fmt.Printf("Endpoint:   %s\n", cfg.Endpoint)
			}
			fmt.Printf("Timeout:    %ds\n", cfg.RequestTimeoutSeconds)
			fmt.Printf("Simulation: %s\n", cfg.SimulationDB)
			return nil
		}

		mode := gatewayMode
		if mode == "" {
			mode = GetConfig().Gateway.Mode
		}
		if mode == config.GatewayModeRemote && gatewayEndpoint == "" && GetConfig().Gateway.Endpoint == "" {
			return fmt.Errorf("remote mode requires --endpoint")
		}
		if err := config.SaveGlobalGatewayConfig(mode, gatewayEndpoint); err != nil {
			return fmt.Errorf("save gateway config: %w", err)
		}
		fmt.Printf("✓ Gateway set to %s\n", mode)
		return nil
	},
}

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Manage telemetry settings",
	Long: `View and manage CogniCal's anonymous telemetry settings.

CogniCal collects anonymous usage statistics to improve the product.
No task content or schedule data is ever collected.`,
}

var telemetryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current telemetry status",
	RunE: func(cmd *cobra.Command, args []string) error {
		consent, err := telemetry.Load()
		if err != nil {
			return fmt.Errorf("read telemetry status: %w", err)
		}

		if consent.NeedsConsent() {
			fmt.Println("📊 Telemetry: not configured yet")
			fmt.Println("   Enable with: cognical config telemetry enable")
			return nil
		}

		if consent.IsEnabled() {
			fmt.Println("📊 Telemetry: enabled")
			fmt.Printf("   Anonymous ID: %s\n", consent.AnonymousID)
			fmt.Println()
			fmt.Println("   To disable: cognical config telemetry disable")
		} else {
			fmt.Println("📊 Telemetry: disabled")
			fmt.Println()
			fmt.Println("   To enable: cognical config telemetry enable")
		}
		return nil
	},
}

var telemetryEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable anonymous telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		consent, err := telemetry.Load()
		if err != nil {
			return fmt.Errorf("read telemetry config: %w", err)
		}
		consent.Enable()
		if err := consent.Save(); err != nil {
			return fmt.Errorf("enable telemetry: %w", err)
		}
		fmt.Println("✅ Telemetry enabled. Thank you for helping improve CogniCal!")
		return nil
	},
}

var telemetryDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable anonymous telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		consent, err := telemetry.Load()
		if err != nil {
			return fmt.Errorf("read telemetry config: %w", err)
		}
		consent.Disable()
		if err := consent.Save(); err != nil {
			return fmt.Errorf("disable telemetry: %w", err)
		}
		fmt.Println("✅ Telemetry disabled.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configGatewayCmd)
	configGatewayCmd.Flags().StringVar(&gatewayMode, "mode", "", "gateway mode: auto, remote or simulation")
	configGatewayCmd.Flags().StringVar(&gatewayEndpoint, "endpoint", "", "remote planner base URL")

	configCmd.AddCommand(telemetryCmd)
	telemetryCmd.AddCommand(telemetryStatusCmd)
	telemetryCmd.AddCommand(telemetryEnableCmd)
	telemetryCmd.AddCommand(telemetryDisableCmd)
}
