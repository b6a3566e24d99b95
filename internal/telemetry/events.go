package telemetry

// Event names for planning activity. Only shapes and counts are reported,
// never task content or schedule data.
const (
	EventCommandExecuted    = "command_executed"
	EventPlanGenerated      = "plan_generated"
	EventPlanApplied        = "plan_applied"
	EventConflictsResolved  = "conflicts_resolved"
	EventPreferencesUpdated = "preferences_updated"
	EventSimulationFallback = "simulation_fallback"
)

// TrackCommand reports one CLI command execution on the global client.
func TrackCommand(command string, durationMs int64, success bool, errorType string) {
	props := Properties{
		"command":     command,
		"duration_ms": durationMs,
		"success":     success,
	}
	if errorType != "" {
		props["error_type"] = errorType
	}
	Get().Track(EventCommandExecuted, props)
}

// TrackPlanGenerated reports a successful generate round trip.
func TrackPlanGenerated(taskCount, optionCount, conflictCount int) {
	Get().Track(EventPlanGenerated, Properties{
		"task_count":     taskCount,
		"option_count":   optionCount,
		"conflict_count": conflictCount,
	})
}

// TrackPlanApplied reports a successful apply round trip.
func TrackPlanApplied(blockCount, conflictCount int, overridden bool) {
	Get().Track(EventPlanApplied, Properties{
		"block_count":    blockCount,
		"conflict_count": conflictCount,
		"overridden":     overridden,
	})
}

// TrackPreferencesUpdated reports a preference profile write.
func TrackPreferencesUpdated(avoidanceWindowCount int, compact bool) {
	Get().Track(EventPreferencesUpdated, Properties{
		"avoidance_window_count": avoidanceWindowCount,
		"compact":                compact,
	})
}

// TrackConflictsResolved reports a successful resolve round trip.
func TrackConflictsResolved(adjustmentCount, remainingConflicts int) {
	Get().Track(EventConflictsResolved, Properties{
		"adjustment_count":    adjustmentCount,
		"remaining_conflicts": remainingConflicts,
	})
}
