// Package planning owns the client-side planning state: the current
// session view, the per-profile preference cache, and the busy/error flags
// the UI renders. Its operations are the only mutation entry points;
// everything else is a read-only projection.
package planning

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/M-24rjgc/cognical/internal/events"
	"github.com/M-24rjgc/cognical/internal/gateway"
	"github.com/M-24rjgc/cognical/internal/schema"
	"github.com/M-24rjgc/cognical/models"
	"github.com/M-24rjgc/cognical/types"
)

// Store is the single owner of in-memory planning state. The remote
// collaborator owns the durable truth; the store only caches what the
// gateway and the event bridge hand it.
//
// One mutex guards the cached state. It is released across gateway round
// trips; the busy flags cover that window so the UI can debounce duplicate
// submissions. Two concurrent writers resolve last-write-wins at the cache
// level.
type Store struct {
	gw  gateway.Planner
	bus events.Bus
	log *slog.Logger

	mu           sync.Mutex
	session      *models.PlanningSessionView
	prefs        map[string]models.PreferenceSnapshot
	activePrefID string

	generating   bool
	applying     bool
	resolving    bool
	loadingPrefs bool

	lastErr *types.AppError
}

// NewStore creates a store over the given gateway and notification bus.
func NewStore(gw gateway.Planner, bus events.Bus) *Store {
	return &Store{
		gw:    gw,
		bus:   bus,
		log:   slog.Default().With("component", "planning.store"),
		prefs: make(map[string]models.PreferenceSnapshot),
	}
}

// GeneratePlan requests a new schedule and replaces the current session on
// success. The previous session is left untouched on failure.
func (s *Store) GeneratePlan(ctx context.Context, input models.GeneratePlanInput) (*models.PlanningSessionView, error) {
	s.mu.Lock()
	s.generating = true
	s.lastErr = nil
	s.mu.Unlock()

	s.EnsureEventBridge()

	view, err := s.gw.Generate(ctx, input)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false
	if err != nil {
		return nil, s.failLocked("generate plan", err)
	}

	s.replaceSessionLocked(view)
	prefID := schema.ResolvePreferenceID(input.PreferenceID)
	s.activePrefID = prefID
	if view.PreferenceSnapshot != nil {
		s.prefs[prefID] = *view.PreferenceSnapshot
	}
	s.log.Info("planning session generated",
		"session_id", view.Session.ID, "options", len(view.Options))
	return view, nil
}

// ApplyOption commits one option. On success the session becomes applied
// with the option selected, and the returned option is merged by id into
// the cached option list.
func (s *Store) ApplyOption(ctx context.Context, input models.ApplyPlanInput) (*models.AppliedPlan, error) {
	s.mu.Lock()
	s.applying = true
	s.lastErr = nil
	s.mu.Unlock()

	applied, err := s.gw.Apply(ctx, input)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applying = false
	if err != nil {
		return nil, s.failLocked("apply option", err)
	}

	s.mergeAppliedLocked(applied)
	s.log.Info("planning option applied",
		"session_id", applied.Session.ID, "option_id", applied.Option.Option.ID)
	return applied, nil
}

// ResolveConflicts re-checks one option after the given adjustments and
// refreshes the cached view from the collaborator's answer.
func (s *Store) ResolveConflicts(ctx context.Context, input models.ResolveConflictsInput) (*models.PlanningSessionView, error) {
	s.mu.Lock()
	s.resolving = true
	s.lastErr = nil
	s.mu.Unlock()

	view, err := s.gw.ResolveConflicts(ctx, input)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolving = false
	if err != nil {
		return nil, s.failLocked("resolve conflicts", err)
	}

	s.replaceSessionLocked(view)
	s.log.Info("planning conflicts resolved",
		"session_id", view.Session.ID, "option_id", input.OptionID, "conflicts", len(view.Conflicts))
	return view, nil
}

// LoadPreferences returns the cached snapshot for the resolved id, fetching
// from the collaborator only on a miss or when force is set. The resolved
// id becomes the active one.
func (s *Store) LoadPreferences(ctx context.Context, preferenceID string, force bool) (*models.PreferenceSnapshot, error) {
	id := schema.ResolvePreferenceID(preferenceID)

	s.mu.Lock()
	if !force {
		if snap, ok := s.prefs[id]; ok {
			s.activePrefID = id
			s.mu.Unlock()
			out := snap
			return &out, nil
		}
	}
	s.loadingPrefs = true
	s.lastErr = nil
	s.mu.Unlock()

	snap, err := s.gw.GetPreferences(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingPrefs = false
	if err != nil {
		return nil, s.failLocked("load preferences", err)
	}

	s.prefs[id] = *snap
	s.activePrefID = id
	out := *snap
	return &out, nil
}

// UpdatePreferences writes a snapshot through to the collaborator and then
// updates the local cache from the written value. There is no re-read; the
// write is trusted.
func (s *Store) UpdatePreferences(ctx context.Context, preferenceID string, snapshot models.PreferenceSnapshot) error {
	id := schema.ResolvePreferenceID(preferenceID)

	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()

	err := s.gw.UpdatePreferences(ctx, id, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return s.failLocked("update preferences", err)
	}
	s.prefs[id] = snapshot
	return nil
}

// ClearError drops the stored error without touching anything else.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

// Reset detaches the event bridge and restores every field to its initial
// value. It exists for test isolation and logout-style flows. In-flight
// operations still resolve into the reset store; last write wins.
func (s *Store) Reset() {
	detachEventBridge()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.prefs = make(map[string]models.PreferenceSnapshot)
	s.activePrefID = ""
	s.generating = false
	s.applying = false
	s.resolving = false
	s.loadingPrefs = false
	s.lastErr = nil
}

// CurrentSession returns a copy of the cached session view, or nil when no
// session is loaded.
func (s *Store) CurrentSession() *models.PlanningSessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	out := cloneSessionView(*s.session)
	return &out
}

// PreferenceFor returns the cached snapshot for the resolved id.
func (s *Store) PreferenceFor(preferenceID string) (models.PreferenceSnapshot, bool) {
	id := schema.ResolvePreferenceID(preferenceID)
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.prefs[id]
	return snap, ok
}

// ActivePreferenceID returns the id of the profile the store considers
// active, or the empty string before any preference interaction.
func (s *Store) ActivePreferenceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePrefID
}

// LastError returns the stored error, if any.
func (s *Store) LastError() *types.AppError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// IsGenerating reports whether a generate round trip is in flight.
func (s *Store) IsGenerating() bool { return s.flag(&s.generating) }

// IsApplying reports whether an apply round trip is in flight.
func (s *Store) IsApplying() bool { return s.flag(&s.applying) }

// IsResolving reports whether a resolve round trip is in flight.
func (s *Store) IsResolving() bool { return s.flag(&s.resolving) }

// IsLoadingPreferences reports whether a preference fetch is in flight.
func (s *Store) IsLoadingPreferences() bool { return s.flag(&s.loadingPrefs) }

func (s *Store) flag(f *bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *f
}

// failLocked normalizes a failure, stores it for the UI banner, and returns
// it so the caller's own error handling still fires. Both channels always
// fire together.
func (s *Store) failLocked(op string, err error) *types.AppError {
	app := gateway.Normalize(err)
	s.lastErr = app
	s.log.Warn("planning operation failed", "op", op, "code", app.Code, "error", app.Message)
	return app
}

// replaceSessionLocked installs a validated collaborator view as the
// current session. There is only one session slot; the previous copy is
// discarded (the collaborator retains history).
func (s *Store) replaceSessionLocked(view *models.PlanningSessionView) {
	clone := cloneSessionView(*view)
	s.session = &clone
	s.syncSessionConflictsLocked()
}

// mergeAppliedLocked merges an apply result by option id when the session
// ids match; on a mismatch the old option list is discarded and the cache
// starts over with just the applied option. Two unrelated sessions are
// never merged.
func (s *Store) mergeAppliedLocked(applied *models.AppliedPlan) {
	option := cloneOptionView(applied.Option)

	if s.session != nil && s.session.Session.ID == applied.Session.ID {
		s.session.Session = applied.Session
		replaced := false
		for i := range s.session.Options {
			if s.session.Options[i].Option.ID == option.Option.ID {
				s.session.Options[i] = option
				replaced = true
				break
			}
		}
		if !replaced {
			s.session.Options = append(s.session.Options, option)
		}
		sort.SliceStable(s.session.Options, func(a, b int) bool {
			return s.session.Options[a].Option.Rank < s.session.Options[b].Option.Rank
		})
	} else {
		s.session = &models.PlanningSessionView{
			Session:            applied.Session,
			Options:            []models.PlanningOptionView{option},
			Conflicts:          append([]models.ScheduleConflict{}, applied.Conflicts...),
			PreferenceSnapshot: applied.Session.PersonalizationSnapshot,
		}
	}

	s.syncSessionConflictsLocked()
}

// syncSessionConflictsLocked keeps the session-level conflict list a
// reflection of the selected option's conflicts, never a union over all
// options. Without a selection the collaborator's aggregate stands.
func (s *Store) syncSessionConflictsLocked() {
	if s.session == nil || s.session.Session.SelectedOptionID == nil {
		return
	}
	for i := range s.session.Options {
		if s.session.Options[i].Option.ID == *s.session.Session.SelectedOptionID {
			s.session.Conflicts = append([]models.ScheduleConflict{}, s.session.Options[i].Conflicts...)
			return
		}
	}
}

func cloneOptionView(opt models.PlanningOptionView) models.PlanningOptionView {
	opt.Blocks = append([]models.PlanningTimeBlock{}, opt.Blocks...)
	for i := range opt.Blocks {
		opt.Blocks[i].ConflictFlags = append([]string{}, opt.Blocks[i].ConflictFlags...)
	}
	opt.Conflicts = append([]models.ScheduleConflict{}, opt.Conflicts...)
	opt.Option.CotSteps = append([]models.CotStep{}, opt.Option.CotSteps...)
	opt.Option.RiskNotes.Notes = append([]string{}, opt.Option.RiskNotes.Notes...)
	opt.Option.RiskNotes.Conflicts = append([]models.ScheduleConflict{}, opt.Option.RiskNotes.Conflicts...)
	return opt
}

func cloneSessionView(view models.PlanningSessionView) models.PlanningSessionView {
	options := make([]models.PlanningOptionView, len(view.Options))
	for i, opt := range view.Options {
		options[i] = cloneOptionView(opt)
	}
	view.Options = options
	view.Conflicts = append([]models.ScheduleConflict{}, view.Conflicts...)
	return view
}
