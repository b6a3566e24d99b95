package planning

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/M-24rjgc/cognical/internal/events"
	"github.com/M-24rjgc/cognical/models"
	"github.com/M-24rjgc/cognical/types"
)

// fakeGateway satisfies gateway.Planner with per-method stubs and call
// counters.
type fakeGateway struct {
	mu sync.Mutex

	generateCalls    int
	applyCalls       int
	resolveCalls     int
	getPrefsCalls    int
	updatePrefsCalls int

	generate    func(models.GeneratePlanInput) (*models.PlanningSessionView, error)
	apply       func(models.ApplyPlanInput) (*models.AppliedPlan, error)
	resolve     func(models.ResolveConflictsInput) (*models.PlanningSessionView, error)
	getPrefs    func(string) (*models.PreferenceSnapshot, error)
	updatePrefs func(string, models.PreferenceSnapshot) error
}

func (f *fakeGateway) Generate(_ context.Context, input models.GeneratePlanInput) (*models.PlanningSessionView, error) {
	f.mu.Lock()
	f.generateCalls++
	fn := f.generate
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("generate not stubbed")
	}
	return fn(input)
}

func (f *fakeGateway) Apply(_ context.Context, input models.ApplyPlanInput) (*models.AppliedPlan, error) {
	f.mu.Lock()
	f.applyCalls++
	fn := f.apply
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("apply not stubbed")
	}
	return fn(input)
}

func (f *fakeGateway) ResolveConflicts(_ context.Context, input models.ResolveConflictsInput) (*models.PlanningSessionView, error) {
	f.mu.Lock()
	f.resolveCalls++
	fn := f.resolve
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("resolve not stubbed")
	}
	return fn(input)
}

func (f *fakeGateway) GetPreferences(_ context.Context, id string) (*models.PreferenceSnapshot, error) {
	f.mu.Lock()
	f.getPrefsCalls++
	fn := f.getPrefs
	f.mu.Unlock()
	if fn == nil {
		return &models.PreferenceSnapshot{}, nil
	}
	return fn(id)
}

func (f *fakeGateway) UpdatePreferences(_ context.Context, id string, snap models.PreferenceSnapshot) error {
	f.mu.Lock()
	f.updatePrefsCalls++
	fn := f.updatePrefs
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(id, snap)
}

func (f *fakeGateway) counts() (generate, apply, resolve, getPrefs, updatePrefs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generateCalls, f.applyCalls, f.resolveCalls, f.getPrefsCalls, f.updatePrefsCalls
}

// newTestStore wires a store to a fresh dispatcher and guarantees bridge
// cleanup, since the attach flag is process-wide.
func newTestStore(t *testing.T, gw *fakeGateway) *Store {
	t.Helper()
	s := NewStore(gw, events.NewDispatcher())
	t.Cleanup(detachEventBridge)
	return s
}

const fixtureInstant = "2026-03-02T09:00:00Z"

func strPtr(s string) *string { return &s }

func fixtureConflict(blockID string) models.ScheduleConflict {
	return models.ScheduleConflict{
		ConflictType:   "calendar-overlap",
		Severity:       models.SeverityHigh,
		Message:        "overlaps an existing event",
		RelatedBlockID: strPtr(blockID),
	}
}

func fixtureBlock(optionID, blockID, startAt, endAt string) models.PlanningTimeBlock {
	return models.PlanningTimeBlock{
		ID:       blockID,
		OptionID: optionID,
		TaskID:   "task-1",
		StartAt:  startAt,
		EndAt:    endAt,
		Status:   models.BlockDraft,
	}
}

func fixtureOption(sessionID, optionID string, rank int) models.PlanningOptionView {
	return models.PlanningOptionView{
		Option: models.PlanningOption{
			ID:        optionID,
			SessionID: sessionID,
			Rank:      rank,
			CreatedAt: fixtureInstant,
		},
		Blocks: []models.PlanningTimeBlock{
			fixtureBlock(optionID, optionID+"-b1", "2026-03-02T10:00:00Z", "2026-03-02T11:00:00Z"),
		},
		Conflicts: []models.ScheduleConflict{},
	}
}

func fixtureView(sessionID string, optionIDs ...string) *models.PlanningSessionView {
	view := &models.PlanningSessionView{
		Session: models.PlanningSession{
			ID:          sessionID,
			TaskIDs:     []string{"task-1"},
			Status:      models.SessionPending,
			GeneratedAt: fixtureInstant,
			CreatedAt:   fixtureInstant,
			UpdatedAt:   fixtureInstant,
		},
		Options:   []models.PlanningOptionView{},
		Conflicts: []models.ScheduleConflict{},
	}
	for i, id := range optionIDs {
		view.Options = append(view.Options, fixtureOption(sessionID, id, i+1))
	}
	return view
}

func fixtureAppliedPlan(view *models.PlanningSessionView, optionID string) *models.AppliedPlan {
	session := view.Session
	session.Status = models.SessionApplied
	session.SelectedOptionID = strPtr(optionID)

	var option models.PlanningOptionView
	for _, opt := range view.Options {
		if opt.Option.ID == optionID {
			option = cloneOptionView(opt)
			break
		}
	}
	for i := range option.Blocks {
		option.Blocks[i].Status = models.BlockApplied
		option.Blocks[i].AppliedAt = strPtr(fixtureInstant)
	}
	return &models.AppliedPlan{
		Session:   session,
		Option:    option,
		Conflicts: []models.ScheduleConflict{},
	}
}

func TestGeneratePlanReplacesSession(t *testing.T) {
	snapshot := &models.PreferenceSnapshot{BufferMinutesBetweenBlocks: 10}
	gw := &fakeGateway{
		generate: func(models.GeneratePlanInput) (*models.PlanningSessionView, error) {
			view := fixtureView("sess-1", "opt-1", "opt-2")
			view.PreferenceSnapshot = snapshot
			return view, nil
		},
	}
	s := newTestStore(t, gw)

	view, err := s.GeneratePlan(context.Background(), models.GeneratePlanInput{TaskIDs: []string{"task-1"}})
	if err != nil {
		t.Fatalf("GeneratePlan() error = %v", err)
	}
	if view.Session.ID != "sess-1" {
		t.Errorf("session id = %q, want sess-1", view.Session.ID)
	}

	current := s.CurrentSession()
	if current == nil || current.Session.ID != "sess-1" {
		t.Fatalf("CurrentSession() = %+v, want sess-1", current)
	}
	if len(current.Options) != 2 {
		t.Errorf("options = %d, want 2", len(current.Options))
	}
	if got := s.ActivePreferenceID(); got != models.DefaultPreferenceID {
		t.Errorf("ActivePreferenceID() = %q, want %q", got, models.DefaultPreferenceID)
	}
	if snap, ok := s.PreferenceFor(""); !ok || snap.BufferMinutesBetweenBlocks != 10 {
		t.Errorf("PreferenceFor(default) = %+v, %v; want cached snapshot", snap, ok)
	}
	if s.LastError() != nil {
		t.Errorf("LastError() = %v, want nil", s.LastError())
	}
	if s.IsGenerating() {
		t.Error("IsGenerating() = true after completion")
	}
}

func TestGeneratePlanFailureKeepsPriorSession(t *testing.T) {
	calls := 0
	gw := &fakeGateway{}
	gw.generate = func(models.GeneratePlanInput) (*models.PlanningSessionView, error) {
		calls++
		if calls == 1 {
			return fixtureView("sess-1", "opt-1"), nil
		}
		return nil, types.NewAppError(types.ErrConnectivityUnavailable, "", nil)
	}
	s := newTestStore(t, gw)

	if _, err := s.GeneratePlan(context.Background(), models.GeneratePlanInput{TaskIDs: []string{"task-1"}}); err != nil {
		t.Fatalf("first GeneratePlan() error = %v", err)
	}
	_, err := s.GeneratePlan(context.Background(), models.GeneratePlanInput{TaskIDs: []string{"task-1"}})
	if err == nil {
		t.Fatal("second GeneratePlan() error = nil, want failure")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrConnectivityUnavailable {
		t.Fatalf("error = %v, want CONNECTIVITY_UNAVAILABLE", err)
	}
	if got := s.CurrentSession(); got == nil || got.Session.ID != "sess-1" {
		t.Errorf("CurrentSession() = %+v, want the prior sess-1 view", got)
	}
	if s.LastError() == nil || s.LastError().Code != types.ErrConnectivityUnavailable {
		t.Errorf("LastError() = %v, want stored CONNECTIVITY_UNAVAILABLE", s.LastError())
	}

	s.ClearError()
	if s.LastError() != nil {
		t.Errorf("LastError() after ClearError() = %v, want nil", s.LastError())
	}
	if got := s.CurrentSession(); got == nil || got.Session.ID != "sess-1" {
		t.Error("ClearError() touched the cached session")
	}
}

func TestApplyOptionMergesByOptionID(t *testing.T) {
	base := fixtureView("sess-1", "opt-1", "opt-2")
	gw := &fakeGateway{
		generate: func(models.GeneratePlanInput) (*models.PlanningSessionView, error) {
			return base, nil
		},
		apply: func(input models.ApplyPlanInput) (*models.AppliedPlan, error) {
			return fixtureAppliedPlan(base, input.OptionID), nil
		},
	}
	s := newTestStore(t, gw)

	if _, err := s.GeneratePlan(context.Background(), models.GeneratePlanInput{TaskIDs: []string{"task-1"}}); err != nil {
		t.Fatalf("GeneratePlan() error = %v", err)
	}
	applied, err := s.ApplyOption(context.Background(), models.ApplyPlanInput{SessionID: "sess-1", OptionID: "opt-1"})
	if err != nil {
		t.Fatalf("ApplyOption() error = %v", err)
	}
	if applied.Session.Status != models.SessionApplied {
		t.Errorf("applied session status = %q, want applied", applied.Session.Status)
	}

	current := s.CurrentSession()
	if len(current.Options) != 2 {
		t.Fatalf("options after apply = %d, want 2 (merge, not append)", len(current.Options))
	}
	if current.Options[0].Option.ID != "opt-1" || current.Options[1].Option.ID != "opt-2" {
		t.Errorf("option order = %q, %q; want rank order opt-1, opt-2",
			current.Options[0].Option.ID, current.Options[1].Option.ID)
	}
	if got := current.Options[0].Blocks[0].Status; got != models.BlockApplied {
		t.Errorf("merged block status = %q, want applied", got)
	}
	if current.Session.SelectedOptionID == nil || *current.Session.SelectedOptionID != "opt-1" {
		t.Errorf("selected option = %v, want opt-1", current.Session.SelectedOptionID)
	}
}

func TestApplyOptionSessionMismatchStartsFresh(t *testing.T) {
	gw := &fakeGateway{
		generate: func(models.GeneratePlanInput) (*models.PlanningSessionView, error) {
			return fixtureView("sess-1", "opt-1", "opt-2"), nil
		},
		apply: func(input models.ApplyPlanInput) (*models.AppliedPlan, error) {
			other := fixtureView("sess-2", "opt-9")
			return fixtureAppliedPlan(other, "opt-9"), nil
		},
	}
	s := newTestStore(t, gw)

	if _, err := s.GeneratePlan(context.Background(), models.GeneratePlanInput{TaskIDs: []string{"task-1"}}); err != nil {
		t.Fatalf("GeneratePlan() error = %v", err)
	}
	if _, err := s.ApplyOption(context.Background(), models.ApplyPlanInput{SessionID: "sess-2", OptionID: "opt-9"}); err != nil {
		t.Fatalf("ApplyOption() error = %v", err)
	}

	current := s.CurrentSession()
	if current.Session.ID != "sess-2" {
		t.Fatalf("session id = %q, want sess-2 (stale options must not merge)", current.Session.ID)
	}
	if len(current.Options) != 1 || current.Options[0].Option.ID != "opt-9" {
		t.Errorf("options = %+v, want exactly opt-9", current.Options)
	}
}

func TestResolveConflictsMirrorsSelectedOption(t *testing.T) {
	resolved := fixtureView("sess-1", "opt-1", "opt-2")
	resolved.Session.Status = models.SessionApplied
	resolved.Session.SelectedOptionID = strPtr("opt-1")
	resolved.Options[0].Conflicts = []models.ScheduleConflict{fixtureConflict("opt-1-b1")}
	resolved.Conflicts = []models.ScheduleConflict{}

	gw := &fakeGateway{
		resolve: func(models.ResolveConflictsInput) (*models.PlanningSessionView, error) {
			return resolved, nil
		},
	}
	s := newTestStore(t, gw)

	view, err := s.ResolveConflicts(context.Background(), models.ResolveConflictsInput{SessionID: "sess-1", OptionID: "opt-1"})
	if err != nil {
		t.Fatalf("ResolveConflicts() error = %v", err)
	}
	if view.Session.ID != "sess-1" {
		t.Errorf("session id = %q, want sess-1", view.Session.ID)
	}

	current := s.CurrentSession()
	if len(current.Conflicts) != 1 || current.Conflicts[0].ConflictType != "calendar-overlap" {
		t.Errorf("session conflicts = %+v, want the selected option's single conflict", current.Conflicts)
	}
}

func TestLoadPreferencesCacheFirst(t *testing.T) {
	gw := &fakeGateway{
		getPrefs: func(string) (*models.PreferenceSnapshot, error) {
			return &models.PreferenceSnapshot{BufferMinutesBetweenBlocks: 5}, nil
		},
	}
	s := newTestStore(t, gw)

	snap, err := s.LoadPreferences(context.Background(), "focus", false)
	if err != nil {
		t.Fatalf("LoadPreferences() error = %v", err)
	}
	if snap.BufferMinutesBetweenBlocks != 5 {
		t.Errorf("snapshot buffer = %d, want 5", snap.BufferMinutesBetweenBlocks)
	}

	if _, err := s.LoadPreferences(context.Background(), "focus", false); err != nil {
		t.Fatalf("cached LoadPreferences() error = %v", err)
	}
	if _, _, _, gets, _ := gw.counts(); gets != 1 {
		t.Errorf("gateway fetches after cached read = %d, want 1", gets)
	}

	if _, err := s.LoadPreferences(context.Background(), "focus", true); err != nil {
		t.Fatalf("forced LoadPreferences() error = %v", err)
	}
	if _, _, _, gets, _ := gw.counts(); gets != 2 {
		t.Errorf("gateway fetches after force = %d, want 2", gets)
	}
	if got := s.ActivePreferenceID(); got != "focus" {
		t.Errorf("ActivePreferenceID() = %q, want focus", got)
	}
}

func TestLoadPreferencesResolvesBlankID(t *testing.T) {
	gw := &fakeGateway{
		getPrefs: func(id string) (*models.PreferenceSnapshot, error) {
			if id != models.DefaultPreferenceID {
				t.Errorf("gateway asked for %q, want %q", id, models.DefaultPreferenceID)
			}
			return &models.PreferenceSnapshot{}, nil
		},
	}
	s := newTestStore(t, gw)

	if _, err := s.LoadPreferences(context.Background(), "   ", false); err != nil {
		t.Fatalf("LoadPreferences(blank) error = %v", err)
	}
	// The resolved id and the literal default share one cache entry.
	if _, err := s.LoadPreferences(context.Background(), models.DefaultPreferenceID, false); err != nil {
		t.Fatalf("LoadPreferences(default) error = %v", err)
	}
	if _, _, _, gets, _ := gw.counts(); gets != 1 {
		t.Errorf("gateway fetches = %d, want 1", gets)
	}
}

func TestUpdatePreferencesTrustsTheWrite(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestStore(t, gw)

	written := models.PreferenceSnapshot{BufferMinutesBetweenBlocks: 20, PreferCompactSchedule: true}
	if err := s.UpdatePreferences(context.Background(), "focus", written); err != nil {
		t.Fatalf("UpdatePreferences() error = %v", err)
	}

	snap, err := s.LoadPreferences(context.Background(), "focus", false)
	if err != nil {
		t.Fatalf("LoadPreferences() error = %v", err)
	}
	if snap.BufferMinutesBetweenBlocks != 20 || !snap.PreferCompactSchedule {
		t.Errorf("snapshot = %+v, want the written values", snap)
	}
	if _, _, _, gets, _ := gw.counts(); gets != 0 {
		t.Errorf("gateway fetches after write = %d, want 0 (no read-back)", gets)
	}
}

func TestUpdatePreferencesFailureKeepsCache(t *testing.T) {
	gw := &fakeGateway{
		getPrefs: func(string) (*models.PreferenceSnapshot, error) {
			return &models.PreferenceSnapshot{BufferMinutesBetweenBlocks: 5}, nil
		},
		updatePrefs: func(string, models.PreferenceSnapshot) error {
			return types.NewAppError(types.ErrUpstreamUnavailable, "", nil)
		},
	}
	s := newTestStore(t, gw)

	if _, err := s.LoadPreferences(context.Background(), "focus", false); err != nil {
		t.Fatalf("LoadPreferences() error = %v", err)
	}
	err := s.UpdatePreferences(context.Background(), "focus", models.PreferenceSnapshot{BufferMinutesBetweenBlocks: 99})
	if err == nil {
		t.Fatal("UpdatePreferences() error = nil, want failure")
	}

	if snap, ok := s.PreferenceFor("focus"); !ok || snap.BufferMinutesBetweenBlocks != 5 {
		t.Errorf("cached snapshot = %+v, %v; want the pre-write value", snap, ok)
	}
	if s.LastError() == nil || s.LastError().Code != types.ErrUpstreamUnavailable {
		t.Errorf("LastError() = %v, want UPSTREAM_UNAVAILABLE", s.LastError())
	}
}

func TestResetClearsEverything(t *testing.T) {
	gw := &fakeGateway{
		generate: func(models.GeneratePlanInput) (*models.PlanningSessionView, error) {
			return fixtureView("sess-1", "opt-1"), nil
		},
	}
	s := newTestStore(t, gw)

	if _, err := s.GeneratePlan(context.Background(), models.GeneratePlanInput{TaskIDs: []string{"task-1"}}); err != nil {
		t.Fatalf("GeneratePlan() error = %v", err)
	}
	s.Reset()

	if s.CurrentSession() != nil {
		t.Error("CurrentSession() after Reset() is not nil")
	}
	if _, ok := s.PreferenceFor(""); ok {
		t.Error("preference cache survived Reset()")
	}
	if s.ActivePreferenceID() != "" {
		t.Error("active preference id survived Reset()")
	}
	if s.LastError() != nil {
		t.Error("stored error survived Reset()")
	}
}

func TestCurrentSessionDoesNotAliasRationale(t *testing.T) {
	result := "done"
	view := fixtureView("sess-1", "opt-1")
	view.Options[0].Option.CotSteps = []models.CotStep{{Step: 1, Thought: "pack the morning", Result: &result}}
	view.Options[0].Option.RiskNotes = models.RiskNotes{
		Notes:     []string{"tight buffer before standup"},
		Conflicts: []models.ScheduleConflict{fixtureConflict("opt-1-b1")},
	}
	gw := &fakeGateway{
		generate: func(models.GeneratePlanInput) (*models.PlanningSessionView, error) {
			return view, nil
		},
	}
	s := newTestStore(t, gw)
	if _, err := s.GeneratePlan(context.Background(), models.GeneratePlanInput{TaskIDs: []string{"task-1"}}); err != nil {
		t.Fatalf("GeneratePlan() error = %v", err)
	}

	first := s.CurrentSession()
	first.Options[0].Option.CotSteps[0].Thought = "scribbled over"
	first.Options[0].Option.RiskNotes.Notes[0] = "scribbled over"
	first.Options[0].Option.RiskNotes.Conflicts[0].Message = "scribbled over"
	first.Options[0].Blocks[0].ConflictFlags = append(first.Options[0].Blocks[0].ConflictFlags, "scribbled")

	second := s.CurrentSession()
	opt := second.Options[0].Option
	if opt.CotSteps[0].Thought != "pack the morning" {
		t.Errorf("cached rationale = %q, want untouched", opt.CotSteps[0].Thought)
	}
	if opt.RiskNotes.Notes[0] != "tight buffer before standup" {
		t.Errorf("cached risk note = %q, want untouched", opt.RiskNotes.Notes[0])
	}
	if opt.RiskNotes.Conflicts[0].Message == "scribbled over" {
		t.Error("cached risk conflicts alias the returned view")
	}
	if len(second.Options[0].Blocks[0].ConflictFlags) != 0 {
		t.Errorf("cached flags = %v, want untouched", second.Options[0].Blocks[0].ConflictFlags)
	}
}
