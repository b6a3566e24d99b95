package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/M-24rjgc/cognical/internal/events"
	"github.com/M-24rjgc/cognical/models"
	"github.com/M-24rjgc/cognical/types"
)

var simClock = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestSimulation(t *testing.T) *Simulation {
	t.Helper()
	sim, err := NewSimulation("")
	if err != nil {
		t.Fatalf("NewSimulation() error = %v", err)
	}
	t.Cleanup(func() { sim.Close() })
	sim.SetClock(func() time.Time { return simClock })
	return sim
}

func strPtr(s string) *string { return &s }

func seedView() models.PlanningSessionView {
	return models.PlanningSessionView{
		Session: models.PlanningSession{
			ID:          "sess-1",
			TaskIDs:     []string{"task-1", "task-2"},
			Status:      models.SessionPending,
			GeneratedAt: "2026-03-02T09:00:00Z",
			CreatedAt:   "2026-03-02T09:00:00Z",
			UpdatedAt:   "2026-03-02T09:00:00Z",
			Constraints: &models.ScheduleConstraints{
				ExistingEvents: []models.ExistingEvent{
					{ID: "ev-1", Title: "standup", StartAt: "2026-03-02T13:00:00Z", EndAt: "2026-03-02T13:30:00Z"},
				},
			},
		},
		Options: []models.PlanningOptionView{
			{
				Option: models.PlanningOption{ID: "opt-1", SessionID: "sess-1", Rank: 1, CreatedAt: "2026-03-02T09:00:00Z"},
				Blocks: []models.PlanningTimeBlock{
					testBlock2("opt-1", "b1", "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"),
					testBlock2("opt-1", "b2", "2026-03-02T14:00:00Z", "2026-03-02T15:00:00Z"),
				},
			},
			{
				Option: models.PlanningOption{ID: "opt-2", SessionID: "sess-1", Rank: 2, CreatedAt: "2026-03-02T09:00:00Z"},
				Blocks: []models.PlanningTimeBlock{
					testBlock2("opt-2", "b3", "2026-03-02T13:15:00Z", "2026-03-02T14:15:00Z"),
				},
			},
		},
	}
}

func testBlock2(optionID, id, startAt, endAt string) models.PlanningTimeBlock {
	return models.PlanningTimeBlock{
		ID:       id,
		OptionID: optionID,
		TaskID:   "task-1",
		StartAt:  startAt,
		EndAt:    endAt,
		Status:   models.BlockDraft,
	}
}

func appCode(t *testing.T, err error) types.ErrorCode {
	t.Helper()
	var app *types.AppError
	if !errors.As(err, &app) {
		t.Fatalf("error %v is not an AppError", err)
	}
	return app.Code
}

func TestSimulationGenerateIsUnavailable(t *testing.T) {
	sim := newTestSimulation(t)

	_, err := sim.Generate(context.Background(), models.GeneratePlanInput{TaskIDs: []string{"task-1"}})
	if got := appCode(t, err); got != types.ErrConnectivityUnavailable {
		t.Errorf("code = %q, want CONNECTIVITY_UNAVAILABLE", got)
	}

	_, err = sim.Generate(context.Background(), models.GeneratePlanInput{})
	if got := appCode(t, err); got != types.ErrInputValidationFailed {
		t.Errorf("code for empty input = %q, want INPUT_VALIDATION_FAILED", got)
	}
}

func TestSimulationApply(t *testing.T) {
	sim := newTestSimulation(t)
	if err := sim.SeedSession(seedView()); err != nil {
		t.Fatalf("SeedSession() error = %v", err)
	}

	applied, err := sim.Apply(context.Background(), models.ApplyPlanInput{SessionID: "sess-1", OptionID: "opt-1"})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if applied.Session.Status != models.SessionApplied {
		t.Errorf("session status = %q, want applied", applied.Session.Status)
	}
	if applied.Session.SelectedOptionID == nil || *applied.Session.SelectedOptionID != "opt-1" {
		t.Errorf("selected option = %v, want opt-1", applied.Session.SelectedOptionID)
	}
	for _, b := range applied.Option.Blocks {
		if b.Status != models.BlockPlanned {
			t.Errorf("block %s status = %q, want planned", b.ID, b.Status)
		}
		if b.AppliedAt == nil || *b.AppliedAt != "2026-03-02T12:00:00Z" {
			t.Errorf("block %s appliedAt = %v, want the simulation clock", b.ID, b.AppliedAt)
		}
	}
	if len(applied.Conflicts) != 0 {
		t.Errorf("conflicts = %+v, want none for the clean option", applied.Conflicts)
	}
}

func TestSimulationApplyDetectsConflicts(t *testing.T) {
	sim := newTestSimulation(t)
	if err := sim.SeedSession(seedView()); err != nil {
		t.Fatalf("SeedSession() error = %v", err)
	}

	// opt-2's block overlaps the seeded standup event.
	applied, err := sim.Apply(context.Background(), models.ApplyPlanInput{SessionID: "sess-1", OptionID: "opt-2"})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(applied.Conflicts) != 1 || applied.Conflicts[0].ConflictType != conflictCalendarOverlap {
		t.Fatalf("conflicts = %+v, want one calendar-overlap", applied.Conflicts)
	}
	if got := applied.Option.Blocks[0].ConflictFlags; len(got) != 1 || got[0] != conflictCalendarOverlap {
		t.Errorf("block flags = %v, want the overlap flag", got)
	}
}

func TestSimulationApplyIdempotency(t *testing.T) {
	sim := newTestSimulation(t)
	if err := sim.SeedSession(seedView()); err != nil {
		t.Fatalf("SeedSession() error = %v", err)
	}

	if _, err := sim.Apply(context.Background(), models.ApplyPlanInput{SessionID: "sess-1", OptionID: "opt-1"}); err != nil {
		t.Fatalf("first Apply() error = %v", err)
	}
	// Re-applying the selected option is a no-op commit, not an error.
	if _, err := sim.Apply(context.Background(), models.ApplyPlanInput{SessionID: "sess-1", OptionID: "opt-1"}); err != nil {
		t.Fatalf("repeat Apply() of the selected option error = %v", err)
	}
	// Switching options after an apply is a real conflict.
	_, err := sim.Apply(context.Background(), models.ApplyPlanInput{SessionID: "sess-1", OptionID: "opt-2"})
	if got := appCode(t, err); got != types.ErrConflict {
		t.Errorf("code = %q, want CONFLICT", got)
	}
}

func TestSimulationApplyUnknownTargets(t *testing.T) {
	sim := newTestSimulation(t)
	if err := sim.SeedSession(seedView()); err != nil {
		t.Fatalf("SeedSession() error = %v", err)
	}

	_, err := sim.Apply(context.Background(), models.ApplyPlanInput{SessionID: "sess-404", OptionID: "opt-1"})
	if got := appCode(t, err); got != types.ErrNotFound {
		t.Errorf("unknown session code = %q, want NOT_FOUND", got)
	}
	_, err = sim.Apply(context.Background(), models.ApplyPlanInput{SessionID: "sess-1", OptionID: "opt-404"})
	if got := appCode(t, err); got != types.ErrNotFound {
		t.Errorf("unknown option code = %q, want NOT_FOUND", got)
	}
	_, err = sim.Apply(context.Background(), models.ApplyPlanInput{
		SessionID: "sess-1",
		OptionID:  "opt-1",
		Overrides: []models.TimeBlockOverride{{BlockID: "b-404", StartAt: strPtr("2026-03-02T09:00:00Z")}},
	})
	if got := appCode(t, err); got != types.ErrInputValidationFailed {
		t.Errorf("unknown override target code = %q, want INPUT_VALIDATION_FAILED", got)
	}
}

func TestSimulationApplyOverridesPatchBlocks(t *testing.T) {
	sim := newTestSimulation(t)
	if err := sim.SeedSession(seedView()); err != nil {
		t.Fatalf("SeedSession() error = %v", err)
	}

	flex := models.FlexibilityFixed
	applied, err := sim.Apply(context.Background(), models.ApplyPlanInput{
		SessionID: "sess-1",
		OptionID:  "opt-1",
		Overrides: []models.TimeBlockOverride{
			{
				BlockID:     "b1",
				StartAt:     strPtr("2026-03-02T08:00:00Z"),
				EndAt:       strPtr("2026-03-02T09:00:00Z"),
				Flexibility: &flex,
			},
		},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	b1 := applied.Option.Blocks[0]
	if b1.StartAt != "2026-03-02T08:00:00Z" || b1.EndAt != "2026-03-02T09:00:00Z" {
		t.Errorf("b1 window = [%s, %s], want the override applied", b1.StartAt, b1.EndAt)
	}
	if b1.Flexibility != models.FlexibilityFixed {
		t.Errorf("b1 flexibility = %q, want fixed", b1.Flexibility)
	}
	// The untouched block keeps its seeded window.
	if b2 := applied.Option.Blocks[1]; b2.StartAt != "2026-03-02T14:00:00Z" {
		t.Errorf("b2 start = %q, want untouched", b2.StartAt)
	}
}

func TestSimulationApplyFailedOverridesLeaveSessionUntouched(t *testing.T) {
	sim := newTestSimulation(t)
	if err := sim.SeedSession(seedView()); err != nil {
		t.Fatalf("SeedSession() error = %v", err)
	}

	// The first override is valid and would patch b1; the second targets an
	// unknown block and fails the whole command.
	_, err := sim.Apply(context.Background(), models.ApplyPlanInput{
		SessionID: "sess-1",
		OptionID:  "opt-1",
		Overrides: []models.TimeBlockOverride{
			{BlockID: "b1", StartAt: strPtr("2026-03-02T11:00:00Z"), EndAt: strPtr("2026-03-02T12:00:00Z")},
			{BlockID: "b-404", StartAt: strPtr("2026-03-02T13:00:00Z")},
		},
	})
	if got := appCode(t, err); got != types.ErrInputValidationFailed {
		t.Fatalf("code = %q, want INPUT_VALIDATION_FAILED", got)
	}

	applied, err := sim.Apply(context.Background(), models.ApplyPlanInput{SessionID: "sess-1", OptionID: "opt-1"})
	if err != nil {
		t.Fatalf("Apply() after the failed attempt error = %v", err)
	}
	if b1 := applied.Option.Blocks[0]; b1.StartAt != "2026-03-02T09:00:00Z" || b1.EndAt != "2026-03-02T10:00:00Z" {
		t.Errorf("b1 window = [%s, %s], want the seeded window; the failed apply leaked its partial patches", b1.StartAt, b1.EndAt)
	}
}

func TestSimulationResolveFailedAdjustmentsLeaveSessionUntouched(t *testing.T) {
	sim := newTestSimulation(t)
	if err := sim.SeedSession(seedView()); err != nil {
		t.Fatalf("SeedSession() error = %v", err)
	}

	// The first adjustment would clear opt-2's overlap; the second collapses
	// b3's window and fails the whole command.
	_, err := sim.ResolveConflicts(context.Background(), models.ResolveConflictsInput{
		SessionID: "sess-1",
		OptionID:  "opt-2",
		Adjustments: []models.TimeBlockOverride{
			{BlockID: "b3", StartAt: strPtr("2026-03-02T13:30:00Z"), EndAt: strPtr("2026-03-02T14:30:00Z")},
			{BlockID: "b3", EndAt: strPtr("2026-03-02T13:00:00Z")},
		},
	})
	if got := appCode(t, err); got != types.ErrInputValidationFailed {
		t.Fatalf("code = %q, want INPUT_VALIDATION_FAILED", got)
	}

	view, err := sim.ResolveConflicts(context.Background(), models.ResolveConflictsInput{SessionID: "sess-1", OptionID: "opt-2"})
	if err != nil {
		t.Fatalf("ResolveConflicts() after the failed attempt error = %v", err)
	}
	opt2 := view.Options[1]
	if b3 := opt2.Blocks[0]; b3.StartAt != "2026-03-02T13:15:00Z" {
		t.Errorf("b3 startAt = %q, want the seeded window", b3.StartAt)
	}
	if len(opt2.Conflicts) != 1 {
		t.Errorf("opt-2 conflicts = %d, want the seeded overlap still detected", len(opt2.Conflicts))
	}
}

func TestSimulationPublishesCommandNotifications(t *testing.T) {
	sim := newTestSimulation(t)
	bus := events.NewDispatcher()
	sim.SetBus(bus)

	payloads := map[string][][]byte{}
	for _, topic := range []string{
		events.TopicPlanGenerated,
		events.TopicPlanApplied,
		events.TopicConflictsResolved,
		events.TopicPreferencesUpdated,
	} {
		topic := topic
		bus.Subscribe(topic, func(payload []byte) {
			payloads[topic] = append(payloads[topic], payload)
		})
	}

	ctx := context.Background()
	if err := sim.SeedSession(seedView()); err != nil {
		t.Fatalf("SeedSession() error = %v", err)
	}
	if _, err := sim.Apply(ctx, models.ApplyPlanInput{SessionID: "sess-1", OptionID: "opt-1"}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if _, err := sim.ResolveConflicts(ctx, models.ResolveConflictsInput{SessionID: "sess-1", OptionID: "opt-1"}); err != nil {
		t.Fatalf("ResolveConflicts() error = %v", err)
	}
	if err := sim.UpdatePreferences(ctx, "focus", models.PreferenceSnapshot{BufferMinutesBetweenBlocks: 10}); err != nil {
		t.Fatalf("UpdatePreferences() error = %v", err)
	}

	var generated models.PlanningSessionView
	if got := payloads[events.TopicPlanGenerated]; len(got) != 1 {
		t.Fatalf("generated notifications = %d, want 1", len(got))
	} else if err := json.Unmarshal(got[0], &generated); err != nil || generated.Session.ID != "sess-1" {
		t.Errorf("generated payload = %s (err %v), want the seeded view", got[0], err)
	}

	var applied models.AppliedPlan
	if got := payloads[events.TopicPlanApplied]; len(got) != 1 {
		t.Fatalf("applied notifications = %d, want 1", len(got))
	} else if err := json.Unmarshal(got[0], &applied); err != nil || applied.Option.Option.ID != "opt-1" {
		t.Errorf("applied payload = %s (err %v), want the committed plan", got[0], err)
	}

	var conflicts []models.ScheduleConflict
	if got := payloads[events.TopicConflictsResolved]; len(got) != 1 {
		t.Fatalf("conflicts-resolved notifications = %d, want 1", len(got))
	} else if err := json.Unmarshal(got[0], &conflicts); err != nil || len(conflicts) != 0 {
		t.Errorf("conflicts payload = %s (err %v), want the re-checked empty list", got[0], err)
	}

	var prefID string
	if got := payloads[events.TopicPreferencesUpdated]; len(got) != 1 {
		t.Fatalf("preferences-updated notifications = %d, want 1", len(got))
	} else if err := json.Unmarshal(got[0], &prefID); err != nil || prefID != "focus" {
		t.Errorf("preference payload = %s (err %v), want the written id", got[0], err)
	}

	// A rejected command announces nothing.
	if _, err := sim.Apply(ctx, models.ApplyPlanInput{SessionID: "sess-1", OptionID: "opt-2"}); err == nil {
		t.Fatal("Apply() of a second option after commit should fail")
	}
	if got := payloads[events.TopicPlanApplied]; len(got) != 1 {
		t.Errorf("applied notifications after the rejected command = %d, want still 1", len(got))
	}
}

func TestSimulationResolveConflicts(t *testing.T) {
	sim := newTestSimulation(t)
	if err := sim.SeedSession(seedView()); err != nil {
		t.Fatalf("SeedSession() error = %v", err)
	}

	// opt-2 overlaps the standup; an empty adjustment list re-checks as-is.
	view, err := sim.ResolveConflicts(context.Background(), models.ResolveConflictsInput{
		SessionID:   "sess-1",
		OptionID:    "opt-2",
		Adjustments: []models.TimeBlockOverride{},
	})
	if err != nil {
		t.Fatalf("ResolveConflicts() error = %v", err)
	}
	opt2 := view.Options[1]
	if len(opt2.Conflicts) != 1 {
		t.Fatalf("opt-2 conflicts = %d, want 1", len(opt2.Conflicts))
	}
	if len(view.Conflicts) != 0 {
		t.Errorf("session conflicts = %+v, want none (opt-2 is not selected)", view.Conflicts)
	}

	// Shifting the block past the event clears the conflict.
	view, err = sim.ResolveConflicts(context.Background(), models.ResolveConflictsInput{
		SessionID: "sess-1",
		OptionID:  "opt-2",
		Adjustments: []models.TimeBlockOverride{
			{BlockID: "b3", StartAt: strPtr("2026-03-02T13:30:00Z"), EndAt: strPtr("2026-03-02T14:30:00Z")},
		},
	})
	if err != nil {
		t.Fatalf("ResolveConflicts() after adjustment error = %v", err)
	}
	opt2 = view.Options[1]
	if len(opt2.Conflicts) != 0 {
		t.Errorf("opt-2 conflicts after shift = %+v, want none", opt2.Conflicts)
	}
	if len(opt2.Blocks[0].ConflictFlags) != 0 {
		t.Errorf("b3 flags after shift = %v, want cleared", opt2.Blocks[0].ConflictFlags)
	}
}

func TestSimulationResolveMirrorsSelectedOption(t *testing.T) {
	sim := newTestSimulation(t)
	seeded := seedView()
	seeded.Session.Status = models.SessionApplied
	seeded.Session.SelectedOptionID = strPtr("opt-2")
	if err := sim.SeedSession(seeded); err != nil {
		t.Fatalf("SeedSession() error = %v", err)
	}

	view, err := sim.ResolveConflicts(context.Background(), models.ResolveConflictsInput{
		SessionID: "sess-1",
		OptionID:  "opt-2",
	})
	if err != nil {
		t.Fatalf("ResolveConflicts() error = %v", err)
	}
	if len(view.Conflicts) != 1 {
		t.Errorf("session conflicts = %d, want 1 (mirror of the selected opt-2)", len(view.Conflicts))
	}
}

func TestSimulationPreferencesRoundTrip(t *testing.T) {
	sim := newTestSimulation(t)
	ctx := context.Background()

	// Unknown profiles resolve to zero-value defaults.
	snap, err := sim.GetPreferences(ctx, "focus")
	if err != nil {
		t.Fatalf("GetPreferences() error = %v", err)
	}
	if snap.BufferMinutesBetweenBlocks != 0 || snap.FocusStartMinute != nil {
		t.Errorf("first read = %+v, want the zero snapshot", snap)
	}

	start, end := 540, 1020
	written := models.PreferenceSnapshot{
		FocusStartMinute:           &start,
		FocusEndMinute:             &end,
		BufferMinutesBetweenBlocks: 15,
		PreferCompactSchedule:      true,
	}
	if err := sim.UpdatePreferences(ctx, "focus", written); err != nil {
		t.Fatalf("UpdatePreferences() error = %v", err)
	}

	snap, err = sim.GetPreferences(ctx, "focus")
	if err != nil {
		t.Fatalf("GetPreferences() after write error = %v", err)
	}
	if snap.BufferMinutesBetweenBlocks != 15 || !snap.PreferCompactSchedule {
		t.Errorf("read back = %+v, want the written snapshot", snap)
	}
	if snap.FocusStartMinute == nil || *snap.FocusStartMinute != 540 {
		t.Errorf("focus start = %v, want 540", snap.FocusStartMinute)
	}
}

func TestSimulationPreferencesBlankIDResolvesToDefault(t *testing.T) {
	sim := newTestSimulation(t)
	ctx := context.Background()

	if err := sim.UpdatePreferences(ctx, "", models.PreferenceSnapshot{BufferMinutesBetweenBlocks: 7}); err != nil {
		t.Fatalf("UpdatePreferences(blank) error = %v", err)
	}
	snap, err := sim.GetPreferences(ctx, models.DefaultPreferenceID)
	if err != nil {
		t.Fatalf("GetPreferences(default) error = %v", err)
	}
	if snap.BufferMinutesBetweenBlocks != 7 {
		t.Errorf("default profile = %+v, want the blank-id write", snap)
	}
}

func TestSimulationUpdatePreferencesRejectsInvalid(t *testing.T) {
	sim := newTestSimulation(t)

	bad := models.PreferenceSnapshot{BufferMinutesBetweenBlocks: -5}
	err := sim.UpdatePreferences(context.Background(), "focus", bad)
	if got := appCode(t, err); got != types.ErrInputValidationFailed {
		t.Errorf("code = %q, want INPUT_VALIDATION_FAILED", got)
	}
}

func TestSimulationPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.db")
	ctx := context.Background()

	first, err := NewSimulation(path)
	if err != nil {
		t.Fatalf("NewSimulation() error = %v", err)
	}
	first.SetClock(func() time.Time { return simClock })
	if err := first.SeedSession(seedView()); err != nil {
		t.Fatalf("SeedSession() error = %v", err)
	}
	if err := first.UpdatePreferences(ctx, "focus", models.PreferenceSnapshot{BufferMinutesBetweenBlocks: 25}); err != nil {
		t.Fatalf("UpdatePreferences() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second, err := NewSimulation(path)
	if err != nil {
		t.Fatalf("reopen NewSimulation() error = %v", err)
	}
	defer second.Close()
	second.SetClock(func() time.Time { return simClock })

	// The session survives the restart and is found via the database.
	if _, err := second.Apply(ctx, models.ApplyPlanInput{SessionID: "sess-1", OptionID: "opt-1"}); err != nil {
		t.Fatalf("Apply() on the reopened store error = %v", err)
	}
	snap, err := second.GetPreferences(ctx, "focus")
	if err != nil {
		t.Fatalf("GetPreferences() on the reopened store error = %v", err)
	}
	if snap.BufferMinutesBetweenBlocks != 25 {
		t.Errorf("persisted preferences = %+v, want the first instance's write", snap)
	}
}
