package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/M-24rjgc/cognical/internal/config"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize CogniCal in the current directory",
	Long: `Initialize CogniCal in the current directory.

This creates the .cognical directory with:
  • config.yaml - project configuration (gateway mode, endpoint)
  • planning.db - SQLite database for the simulated collaborator

Project-local configuration takes precedence over ~/.cognical.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := filepath.Join(configDirName, config.ConfigFileName)

		if _, err := os.Stat(configPath); err == nil {
			fmt.Println("✓ CogniCal already initialized in this directory")
			return nil
		}

		if err := config.WriteDefaultConfig(configPath); err != nil {
			return fmt.Errorf("write config: %w", err)
		}

		// The simulation database is generated state; keep it out of git.
		gitignorePath := filepath.Join(configDirName, ".gitignore")
		gitignoreContent := `# CogniCal generated/cache files
planning.db
planning.db-journal
planning.db-wal
planning.db-shm
`
		if err := os.WriteFile(gitignorePath, []byte(gitignoreContent), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create .gitignore: %v\n", err)
		}

		fmt.Println("✓ CogniCal initialized")
		fmt.Println("")
		fmt.Println("Created:")
		fmt.Printf("  %s\n", configPath)
		fmt.Println("")
		fmt.Println("Next steps:")
		fmt.Println("  cognical config gateway --mode remote --endpoint <url>   # connect a planner")
		fmt.Println("  cognical plan generate --task <task-id>                  # generate a schedule")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
