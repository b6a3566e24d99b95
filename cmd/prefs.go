package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/M-24rjgc/cognical/internal/telemetry"
	"github.com/M-24rjgc/cognical/internal/ui"
	"github.com/M-24rjgc/cognical/models"
	"github.com/spf13/cobra"
)

// prefsCmd groups the preference profile commands.
var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Manage scheduling preferences",
	Long: `Preference profiles shape how the collaborator places time blocks:
focus hours, buffers between blocks, compact versus spread schedules, and
recurring windows to avoid. The profile id defaults to "default".`,
}

var (
	prefsForce      bool
	prefsFocusStart string
	prefsFocusEnd   string
	prefsBuffer     int64
	prefsCompact    bool
	prefsAvoid      []string
	prefsFile       string
)

var prefsShowCmd = &cobra.Command{
	Use:   "show [profile-id]",
	Short: "Show a preference profile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPrefsShow,
}

var prefsSetCmd = &cobra.Command{
	Use:   "set [profile-id]",
	Short: "Update a preference profile",
	Example: `  cognical prefs set --focus-start 09:00 --focus-end 17:00
  cognical prefs set "deep work" --buffer 15 --compact
  cognical prefs set --avoid "mon 12:00-13:00" --avoid "fri 15:00-17:00"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrefsSet,
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetCmd)

	prefsShowCmd.Flags().BoolVar(&prefsForce, "force", false, "bypass the local cache and fetch from the collaborator")

	prefsSetCmd.Flags().StringVar(&prefsFocusStart, "focus-start", "", "start of the focus window (HH:MM)")
	prefsSetCmd.Flags().StringVar(&prefsFocusEnd, "focus-end", "", "end of the focus window (HH:MM)")
	prefsSetCmd.Flags().Int64Var(&prefsBuffer, "buffer", 0, "minutes of buffer between blocks")
	prefsSetCmd.Flags().BoolVar(&prefsCompact, "compact", false, "prefer a compact schedule")
	prefsSetCmd.Flags().StringArrayVar(&prefsAvoid, "avoid", nil, `recurring window to avoid ("mon 12:00-13:00", repeatable, replaces existing)`)
	prefsSetCmd.Flags().StringVar(&prefsFile, "file", "", "JSON file with the full preference snapshot")
}

func profileArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func runPrefsShow(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	snapshot, err := store.LoadPreferences(context.Background(), profileArg(args), prefsForce)
	if err != nil {
		return reportError(err)
	}

	if isJSON() {
		return printJSON(snapshot)
	}
	ui.RenderPreferences(store.ActivePreferenceID(), snapshot)
	return nil
}

func runPrefsSet(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	profileID := profileArg(args)

	var snapshot models.PreferenceSnapshot
	if prefsFile != "" {
		if err := readJSONFile(prefsFile, &snapshot); err != nil {
			return fmt.Errorf("read preference file: %w", err)
		}
	} else {
		// Read-modify-write: flags only touch the fields they set.
		current, err := store.LoadPreferences(context.Background(), profileID, true)
		if err != nil {
			return reportError(err)
		}
		snapshot = *current

		if cmd.Flags().Changed("focus-start") {
			minute, err := parseClock(prefsFocusStart)
			if err != nil {
				return fmt.Errorf("invalid --focus-start: %w", err)
			}
			snapshot.FocusStartMinute = &minute
		}
		if cmd.Flags().Changed("focus-end") {
			minute, err := parseClock(prefsFocusEnd)
			if err != nil {
				return fmt.Errorf("invalid --focus-end: %w", err)
			}
			snapshot.FocusEndMinute = &minute
		}
		if cmd.Flags().Changed("buffer") {
			snapshot.BufferMinutesBetweenBlocks = prefsBuffer
		}
		if cmd.Flags().Changed("compact") {
			snapshot.PreferCompactSchedule = prefsCompact
		}
		if cmd.Flags().Changed("avoid") {
			windows := make([]models.AvoidanceWindow, 0, len(prefsAvoid))
			for _, spec := range prefsAvoid {
				window, err := parseAvoidanceWindow(spec)
				if err != nil {
					return fmt.Errorf("invalid --avoid %q: %w", spec, err)
				}
				windows = append(windows, window)
			}
			snapshot.AvoidanceWindows = windows
		}
	}

	if err := store.UpdatePreferences(context.Background(), profileID, snapshot); err != nil {
		return reportError(err)
	}
	telemetry.TrackPreferencesUpdated(len(snapshot.AvoidanceWindows), snapshot.PreferCompactSchedule)

	if isJSON() {
		return printJSON(snapshot)
	}
	fmt.Printf("%s Preferences saved\n", ui.StyleSuccess.Render("✓"))
	ui.RenderPreferences(store.ActivePreferenceID(), &snapshot)
	return nil
}

// parseClock converts "HH:MM" to a minute of day.
func parseClock(value string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM")
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM")
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM")
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("time of day out of range")
	}
	return hours*60 + minutes, nil
}

var weekdayNames = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// parseAvoidanceWindow converts "mon 12:00-13:00" to a weekly window.
func parseAvoidanceWindow(spec string) (models.AvoidanceWindow, error) {
	fields := strings.Fields(strings.ToLower(spec))
	if len(fields) != 2 {
		return models.AvoidanceWindow{}, fmt.Errorf(`expected "<weekday> HH:MM-HH:MM"`)
	}
	weekday, ok := weekdayNames[fields[0]]
	if !ok {
		return models.AvoidanceWindow{}, fmt.Errorf("unknown weekday %q", fields[0])
	}
	bounds := strings.SplitN(fields[1], "-", 2)
	if len(bounds) != 2 {
		return models.AvoidanceWindow{}, fmt.Errorf(`expected "<weekday> HH:MM-HH:MM"`)
	}
	start, err := parseClock(bounds[0])
	if err != nil {
		return models.AvoidanceWindow{}, err
	}
	end, err := parseClock(bounds[1])
	if err != nil {
		return models.AvoidanceWindow{}, err
	}
	if end <= start {
		return models.AvoidanceWindow{}, fmt.Errorf("window end must be after start")
	}
	return models.AvoidanceWindow{Weekday: weekday, StartMinute: start, EndMinute: end}, nil
}
