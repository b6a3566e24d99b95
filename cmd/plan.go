package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/M-24rjgc/cognical/internal/gateway"
	"github.com/M-24rjgc/cognical/internal/planning"
	"github.com/M-24rjgc/cognical/internal/schema"
	"github.com/M-24rjgc/cognical/internal/telemetry"
	"github.com/M-24rjgc/cognical/internal/ui"
	"github.com/M-24rjgc/cognical/models"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

// planCmd groups the planning session commands.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate and manage planning sessions",
	Long: `Plan commands talk to the planning collaborator: generate candidate
schedules for your tasks, apply the one you like, and resolve conflicts.

Generating new plans requires a configured remote endpoint. Apply, resolve
and preference commands also work offline against the local simulated
collaborator.`,
}

var (
	planTasks        []string
	planPreference   string
	planSeed         uint64
	planConstraints  string
	planPick         bool
	applyOverrides   string
	applyAutoResolve bool
	resolveFile      string
	resolveMark      bool
	importWatch      bool
)

var planGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate candidate schedules for a set of tasks",
	Example: `  cognical plan generate --task task-1 --task task-2
  cognical plan generate --task task-1 --preference "deep work" --pick
  cognical plan generate --task task-1 --constraints constraints.json --json`,
	RunE: runPlanGenerate,
}

var planApplyCmd = &cobra.Command{
	Use:   "apply <session-id> <option-id>",
	Short: "Apply one planning option to the calendar",
	Long: `Apply commits one generated option. Time blocks can be adjusted at
apply time with a JSON file of overrides ({"blockId": ..., "startAt": ...}).

With --resolve, any conflicts reported by the collaborator are automatically
remediated by shifting the affected blocks and re-checking.`,
	Args: cobra.ExactArgs(2),
	RunE: runPlanApply,
}

var planResolveCmd = &cobra.Command{
	Use:   "resolve <session-id> <option-id>",
	Short: "Resolve conflicts on an applied option",
	Long: `Resolve re-checks one option's conflicts after applying adjustments.

Pass --adjustments with a JSON file of time block overrides, or
--mark-resolved to re-check without changing the schedule.`,
	Args: cobra.ExactArgs(2),
	RunE: runPlanResolve,
}

var planImportCmd = &cobra.Command{
	Use:   "import <file|dir>",
	Short: "Load planning sessions into the simulated collaborator",
	Long: `Import seeds the local simulated collaborator with planning session
views from JSON files, so apply and resolve can be exercised offline.

With --watch, the argument is a directory: every session file already in
it is imported, then the directory is watched and new or rewritten files
are imported as they appear, until interrupted.

Only available when the gateway runs in simulation mode.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanImport,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planGenerateCmd)
	planCmd.AddCommand(planApplyCmd)
	planCmd.AddCommand(planResolveCmd)
	planCmd.AddCommand(planImportCmd)

	planGenerateCmd.Flags().StringArrayVarP(&planTasks, "task", "t", nil, "task ID to schedule (repeatable)")
	planGenerateCmd.Flags().StringVarP(&planPreference, "preference", "p", "", "preference profile to plan with")
	planGenerateCmd.Flags().Uint64Var(&planSeed, "seed", 0, "seed for reproducible plan generation")
	planGenerateCmd.Flags().StringVar(&planConstraints, "constraints", "", "JSON file with schedule constraints")
	planGenerateCmd.Flags().BoolVar(&planPick, "pick", false, "interactively pick and apply an option")
	_ = planGenerateCmd.MarkFlagRequired("task")

	planApplyCmd.Flags().StringVar(&applyOverrides, "overrides", "", "JSON file with time block overrides")
	planApplyCmd.Flags().BoolVar(&applyAutoResolve, "resolve", false, "automatically remediate reported conflicts")

	planResolveCmd.Flags().StringVar(&resolveFile, "adjustments", "", "JSON file with time block adjustments")
	planResolveCmd.Flags().BoolVar(&resolveMark, "mark-resolved", false, "re-check conflicts without changing the schedule")

	planImportCmd.Flags().BoolVar(&importWatch, "watch", false, "treat the argument as a directory and keep importing new files")
}

func runPlanGenerate(cmd *cobra.Command, args []string) error {
	input := models.GeneratePlanInput{
		TaskIDs:      planTasks,
		PreferenceID: planPreference,
	}
	if cmd.Flags().Changed("seed") {
		seed := planSeed
		input.Seed = &seed
	}
	if planConstraints != "" {
		constraints := &models.ScheduleConstraints{}
		if err := readJSONFile(planConstraints, constraints); err != nil {
			return fmt.Errorf("read constraints file: %w", err)
		}
		input.Constraints = constraints
	}

	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	var view *models.PlanningSessionView
	err = runWithProgress("Generating plan options", func() error {
		var genErr error
		view, genErr = store.GeneratePlan(context.Background(), input)
		return genErr
	})
	if err != nil {
		return reportError(err)
	}

	telemetry.TrackPlanGenerated(len(input.TaskIDs), len(view.Options), len(view.Conflicts))

	if isJSON() {
		return printJSON(view)
	}
	ui.RenderSessionView(view, isVerbose())

	if planPick && len(view.Options) > 0 {
		option, err := selectOptionInteractive(view)
		if err != nil {
			if err == promptui.ErrInterrupt {
				return nil
			}
			return err
		}
		return applyOption(store, models.ApplyPlanInput{
			SessionID: view.Session.ID,
			OptionID:  option.Option.ID,
		}, false)
	}
	return nil
}

func runPlanApply(cmd *cobra.Command, args []string) error {
	input := models.ApplyPlanInput{
		SessionID: args[0],
		OptionID:  args[1],
	}
	if applyOverrides != "" {
		if err := readJSONFile(applyOverrides, &input.Overrides); err != nil {
			return fmt.Errorf("read overrides file: %w", err)
		}
	}

	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	return applyOption(store, input, applyAutoResolve)
}

func applyOption(store *planning.Store, input models.ApplyPlanInput, autoResolve bool) error {
	applied, err := store.ApplyOption(context.Background(), input)
	if err != nil {
		return reportError(err)
	}
	telemetry.TrackPlanApplied(len(applied.Option.Blocks), len(applied.Conflicts), len(input.Overrides) > 0)

	if isJSON() && !autoResolve {
		return printJSON(applied)
	}
	if !isJSON() {
		ui.RenderAppliedPlan(applied)
	}

	if !autoResolve || len(applied.Option.Conflicts) == 0 {
		return nil
	}

	adjustments := planning.AutoAdjustments(applied.Option)
	if len(adjustments) == 0 {
		if !isJSON() {
			fmt.Println(ui.StyleWarning.Render("No automatic adjustment available for the remaining conflicts."))
		}
		return nil
	}
	return resolveConflicts(store, models.ResolveConflictsInput{
		SessionID:   input.SessionID,
		OptionID:    input.OptionID,
		Adjustments: adjustments,
	})
}

func runPlanResolve(cmd *cobra.Command, args []string) error {
	if resolveFile != "" && resolveMark {
		return fmt.Errorf("--adjustments and --mark-resolved are mutually exclusive")
	}

	var adjustments []models.TimeBlockOverride
	switch {
	case resolveMark:
		adjustments = planning.MarkResolvedAdjustments()
	case resolveFile != "":
		if err := readJSONFile(resolveFile, &adjustments); err != nil {
			return fmt.Errorf("read adjustments file: %w", err)
		}
	default:
		return fmt.Errorf("provide --adjustments <file> or --mark-resolved")
	}

	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	return resolveConflicts(store, models.ResolveConflictsInput{
		SessionID:   args[0],
		OptionID:    args[1],
		Adjustments: adjustments,
	})
}

func resolveConflicts(store *planning.Store, input models.ResolveConflictsInput) error {
	view, err := store.ResolveConflicts(context.Background(), input)
	if err != nil {
		return reportError(err)
	}
	telemetry.TrackConflictsResolved(len(input.Adjustments), len(view.Conflicts))

	if isJSON() {
		return printJSON(view)
	}
	if len(view.Conflicts) == 0 {
		fmt.Println(ui.StyleSuccess.Render("✓ All conflicts resolved"))
	} else {
		fmt.Printf("%s %d conflict(s) remain\n", ui.StyleWarning.Render("!"), len(view.Conflicts))
	}
	ui.RenderSessionView(view, isVerbose())
	return nil
}

func runPlanImport(cmd *cobra.Command, args []string) error {
	gw, err := gateway.New(&GetConfig().Gateway)
	if err != nil {
		return fmt.Errorf("initialize planning gateway: %w", err)
	}
	sim, ok := gw.(*gateway.Simulation)
	if !ok {
		return fmt.Errorf("plan import requires the gateway to run in simulation mode")
	}
	defer func() { _ = sim.Close() }()

	if importWatch {
		fmt.Printf("Watching %s for session files (Ctrl-C to stop)\n", args[0])
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := planning.WatchSessions(ctx, args[0], sim, nil); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}

	var view models.PlanningSessionView
	if err := readJSONFile(args[0], &view); err != nil {
		return fmt.Errorf("read session file: %w", err)
	}
	schema.NormalizeSessionView(&view)
	if err := schema.CheckSessionView(&view); err != nil {
		return fmt.Errorf("session file is not a valid planning session: %w", err)
	}

	if err := sim.SeedSession(view); err != nil {
		return reportError(err)
	}

	if isJSON() {
		return printJSON(map[string]any{"sessionId": view.Session.ID, "options": len(view.Options)})
	}
	fmt.Printf("%s Imported session %s with %d option(s)\n", ui.StyleSuccess.Render("✓"), view.Session.ID, len(view.Options))
	return nil
}

// selectOptionInteractive prompts the user to pick one generated option.
func selectOptionInteractive(view *models.PlanningSessionView) (models.PlanningOptionView, error) {
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}?",
		Active:   `> Option {{ .Option.Rank | cyan }}: {{ .Option.Summary }} ({{ len .Blocks }} blocks, {{ len .Conflicts }} conflicts)`,
		Inactive: `  Option {{ .Option.Rank | faint }}: {{ .Option.Summary | faint }}`,
		Selected: `{{ "✔" | green }} Option {{ .Option.Rank }}: {{ .Option.Summary | faint }}`,
	}

	prompt := promptui.Select{
		Label:     "Apply which option",
		Items:     view.Options,
		Templates: templates,
	}

	i, _, err := prompt.Run()
	if err != nil {
		return models.PlanningOptionView{}, err
	}
	return view.Options[i], nil
}

// runWithProgress shows a spinner while fn runs, unless output is JSON.
func runWithProgress(label string, fn func() error) error {
	if isJSON() {
		return fn()
	}
	return ui.RunWithSpinner(label, fn)
}

func readJSONFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
