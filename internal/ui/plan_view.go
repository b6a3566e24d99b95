package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/M-24rjgc/cognical/models"
)

// RenderSessionView renders a full planning session to stdout: one table of
// time blocks per option, followed by that option's conflicts. Verbose mode
// additionally prints the collaborator's reasoning steps.
func RenderSessionView(view *models.PlanningSessionView, verbose bool) {
	selected := ""
	if view.Session.SelectedOptionID != nil {
		selected = *view.Session.SelectedOptionID
	}

	fmt.Printf(" 📅 Session %s: %d option(s), status %s\n",
		StyleTitle.Render(view.Session.ID), len(view.Options), view.Session.Status)
	fmt.Println(StyleSubtle.Render(strings.Repeat("─", 50)))

	for _, option := range view.Options {
		renderOption(option, option.Option.ID == selected, verbose)
	}

	if len(view.Conflicts) > 0 {
		fmt.Println(StyleSectionTitle.Render("Session conflicts"))
		renderConflicts(view.Conflicts)
	}
}

// RenderAppliedPlan renders the outcome of applying one option.
func RenderAppliedPlan(applied *models.AppliedPlan) {
	fmt.Printf("%s Applied option %s to session %s\n",
		StyleSuccess.Render("✓"), applied.Option.Option.ID, applied.Session.ID)
	renderBlocksTable(applied.Option.Blocks)

	if len(applied.Option.Conflicts) > 0 {
		fmt.Println(StyleSectionTitle.Render("Conflicts"))
		renderConflicts(applied.Option.Conflicts)
	}
}

// RenderPreferences renders one preference profile.
func RenderPreferences(profileID string, snapshot *models.PreferenceSnapshot) {
	fmt.Println(StyleHeader.Render(fmt.Sprintf("Preferences: %s", profileID)))

	if snapshot.FocusStartMinute != nil && snapshot.FocusEndMinute != nil {
		fmt.Printf("  Focus window:  %s – %s\n",
			minuteClock(*snapshot.FocusStartMinute), minuteClock(*snapshot.FocusEndMinute))
	} else {
		fmt.Printf("  Focus window:  %s\n", StyleSubtle.Render("not set"))
	}
	fmt.Printf("  Block buffer:  %d min\n", snapshot.BufferMinutesBetweenBlocks)
	layout := "spread"
	if snapshot.PreferCompactSchedule {
		layout = "compact"
	}
	fmt.Printf("  Schedule:      %s\n", layout)

	if len(snapshot.AvoidanceWindows) == 0 {
		fmt.Printf("  Avoid:         %s\n", StyleSubtle.Render("none"))
		return
	}
	fmt.Println("  Avoid:")
	for _, w := range snapshot.AvoidanceWindows {
		fmt.Printf("    • %s %s – %s\n", weekdayName(w.Weekday), minuteClock(w.StartMinute), minuteClock(w.EndMinute))
	}
}

func renderOption(option models.PlanningOptionView, selected, verbose bool) {
	marker := ""
	if selected {
		marker = StyleSuccess.Render(" ← selected")
	}
	title := fmt.Sprintf("Option %d · %s", option.Option.Rank, option.Option.ID)
	if option.Option.IsFallback {
		title += " (fallback)"
	}
	fmt.Println(StyleHeader.Render(title) + marker)
	if option.Option.Summary != "" {
		fmt.Printf("  %s\n", option.Option.Summary)
	}

	renderBlocksTable(option.Blocks)

	if len(option.Conflicts) > 0 {
		renderConflicts(option.Conflicts)
	}

	if verbose {
		for _, step := range option.Option.CotSteps {
			fmt.Printf("  %s %s\n", StyleSubtle.Render(fmt.Sprintf("%d.", step.Step)), step.Thought)
		}
		for _, note := range option.Option.RiskNotes.Notes {
			fmt.Printf("  %s %s\n", StyleWarning.Render("note:"), note)
		}
	}
	fmt.Println()
}

func renderBlocksTable(blocks []models.PlanningTimeBlock) {
	if len(blocks) == 0 {
		fmt.Printf("  %s\n", StyleSubtle.Render("no time blocks"))
		return
	}

	table := &Table{
		Headers:  []string{"Block", "Task", "Start", "End", "Status"},
		MaxWidth: 28,
	}
	for _, b := range blocks {
		status := string(b.Status)
		if len(b.ConflictFlags) > 0 {
			status += " ⚠"
		}
		table.Rows = append(table.Rows, []string{
			b.ID, b.TaskID, formatInstant(b.StartAt), formatInstant(b.EndAt), status,
		})
	}
	fmt.Print(table.Render())
}

func renderConflicts(conflicts []models.ScheduleConflict) {
	for _, c := range conflicts {
		fmt.Printf("  %s %s: %s\n", severityBadge(c.Severity), c.ConflictType, c.Message)
	}
}

func severityBadge(severity models.ConflictSeverity) string {
	switch severity {
	case models.SeverityHigh:
		return StyleError.Render("[high]")
	case models.SeverityMedium:
		return StyleWarning.Render("[medium]")
	default:
		return StyleSubtle.Render("[low]")
	}
}

// formatInstant renders an RFC3339 instant compactly, keeping its original
// offset. Unparsable values pass through untouched.
func formatInstant(value string) string {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return t.Format("Mon Jan 2 15:04")
}

// minuteClock renders a minute of day as HH:MM.
func minuteClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

func weekdayName(weekday int) string {
	if weekday < 0 || weekday > 6 {
		return fmt.Sprintf("day %d", weekday)
	}
	return time.Weekday(weekday).String()[:3]
}
