package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/M-24rjgc/cognical/internal/logger"
	"github.com/M-24rjgc/cognical/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// verbose enables verbose output.
	verbose bool
	// jsonOutput switches command output to machine-readable JSON.
	jsonOutput bool
	// version is the application version, overridden at build time.
	version = "0.3.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cognical",
	Short: "CogniCal plans your tasks around your calendar.",
	Long: `CogniCal CLI talks to the planning collaborator to fit your tasks into
your calendar. It can generate candidate schedules, apply one, resolve
conflicts, and manage your scheduling preferences.

Without a configured endpoint it runs against a local simulated
collaborator backed by SQLite, so apply, resolve and preference
commands work offline.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetCommand(cmd.CommandPath())
		cfg := GetConfig()
		if err := telemetry.Init(cfg.Telemetry.APIKey, cfg.Telemetry.Endpoint, version); err != nil && verbose {
			cmd.PrintErrln("telemetry init:", err)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Help()
			os.Exit(0)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer logger.HandlePanic()
	defer telemetry.Shutdown()
	logger.SetVersion(version)
	logger.SetLastInput(strings.Join(os.Args[1:], " "))

	start := time.Now()
	err := rootCmd.Execute()
	trackInvocation(start, err)
	if err != nil {
		os.Exit(1)
	}
}

// GetVersion returns the application version string.
func GetVersion() string {
	return version
}

func trackInvocation(start time.Time, err error) {
	cmdPath, _, findErr := rootCmd.Find(os.Args[1:])
	name := "cognical"
	if findErr == nil && cmdPath != nil {
		name = cmdPath.CommandPath()
	}
	errorType := ""
	if err != nil {
		errorType = errorCode(err)
	}
	telemetry.TrackCommand(name, time.Since(start).Milliseconds(), err == nil, errorType)
}

func init() {
	cobra.OnInitialize(InitConfig)
	rootCmd.Version = version

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./.cognical/config.yaml or $HOME/.cognical/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output machine-readable JSON")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}
