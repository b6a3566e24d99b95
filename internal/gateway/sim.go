package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/M-24rjgc/cognical/internal/events"
	"github.com/M-24rjgc/cognical/internal/schema"
	"github.com/M-24rjgc/cognical/models"
	"github.com/M-24rjgc/cognical/types"
)

// Simulation is the in-process planning collaborator used in development
// and tests. It honors the remote contract: the same request/response
// shapes, the same validation, the same error taxonomy. Plan generation is
// deliberately not simulated; producing options is the remote planner's
// responsibility, so Generate reports the service as unreachable. Apply and
// resolve-conflicts are fabricated deterministically from a seeded session.
//
// The simulated collaborator owns its durable truth in SQLite, mirroring
// how the real one retains session history. After every committed command it
// emits the matching planning notification on the process-wide bus, the way
// the real collaborator announces its state changes out of band.
type Simulation struct {
	mu      sync.Mutex
	db      *sql.DB
	bus     events.Bus
	session *models.PlanningSessionView
	now     func() time.Time
	log     *slog.Logger
}

// NewSimulation opens (or creates) the backing SQLite database. An empty
// path selects an in-memory database. Notifications go to the default bus;
// SetBus replaces it.
func NewSimulation(path string) (*Simulation, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open simulation db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Simulation{
		db:  db,
		bus: events.Default(),
		now: time.Now,
		log: slog.Default().With("component", "gateway.simulation"),
	}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS planning_sessions (
			id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS schedule_preferences (
			id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate simulation db: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *Simulation) Close() error {
	return s.db.Close()
}

// SetClock overrides the simulation clock. Tests use this for deterministic
// timestamps.
func (s *Simulation) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetBus replaces the notification bus. A nil bus silences notifications.
func (s *Simulation) SetBus(bus events.Bus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bus = bus
}

// publish emits one notification for a committed command. Runs outside the
// mutex: a subscriber may call straight back into the gateway (the store's
// preferences-updated handler does).
func (s *Simulation) publish(topic string, payload any) {
	s.mu.Lock()
	bus := s.bus
	s.mu.Unlock()
	if bus == nil {
		return
	}
	bus.Publish(topic, payload)
}

// SeedSession installs a session for apply/resolve calls to operate on, the
// way a prior generate round trip would have, and announces it as generated.
func (s *Simulation) SeedSession(view models.PlanningSessionView) error {
	schema.NormalizeSessionView(&view)
	if err := schema.CheckSessionView(&view); err != nil {
		return validationFailed(err)
	}

	s.mu.Lock()
	if err := s.persistLocked(&view); err != nil {
		s.mu.Unlock()
		return err
	}
	s.session = &view
	s.mu.Unlock()

	s.publish(events.TopicPlanGenerated, &view)
	return nil
}

// Generate always fails: the simulation cannot invent schedules.
func (s *Simulation) Generate(ctx context.Context, input models.GeneratePlanInput) (*models.PlanningSessionView, error) {
	if err := schema.CheckGenerateInput(&input); err != nil {
		return nil, validationFailed(err)
	}
	return nil, types.NewAppError(types.ErrConnectivityUnavailable,
		"plan generation requires the remote planning service", nil)
}

// Apply commits one option of the seeded session.
func (s *Simulation) Apply(ctx context.Context, input models.ApplyPlanInput) (*models.AppliedPlan, error) {
	if err := schema.CheckApplyInput(&input); err != nil {
		return nil, validationFailed(err)
	}

	applied, err := s.applyOption(input)
	if err != nil {
		return nil, err
	}
	s.publish(events.TopicPlanApplied, applied)
	return applied, nil
}

// applyOption stages every mutation on a copy of the session and installs
// the copy only once validation and persistence have succeeded; a failed
// call leaves the cached session exactly as it was, the way the real
// collaborator's transaction rolls back.
func (s *Simulation) applyOption(input models.ApplyPlanInput) (*models.AppliedPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.sessionByIDLocked(input.SessionID)
	if err != nil {
		return nil, err
	}

	if current.Session.Status == models.SessionApplied &&
		(current.Session.SelectedOptionID == nil || *current.Session.SelectedOptionID != input.OptionID) {
		return nil, types.NewAppError(types.ErrConflict,
			"the planning session already has a different option applied", nil)
	}

	staged := cloneSessionView(*current)
	opt := findOption(&staged, input.OptionID)
	if opt == nil {
		return nil, types.NewAppError(types.ErrNotFound, "unknown planning option", nil)
	}
	if len(opt.Blocks) == 0 {
		return nil, validationFailed(fmt.Errorf("option %s has no time blocks to apply", input.OptionID))
	}

	if err := applyOverrides(opt.Blocks, input.Overrides); err != nil {
		return nil, err
	}

	conflicts := detectConflicts(opt.Blocks, staged.Session.Constraints)
	updateConflictFlags(opt.Blocks, conflicts)
	opt.Conflicts = conflicts

	now := s.now().UTC().Format(time.RFC3339)
	for i := range opt.Blocks {
		appliedAt := now
		opt.Blocks[i].AppliedAt = &appliedAt
		opt.Blocks[i].Status = models.BlockPlanned
	}

	optionID := input.OptionID
	staged.Session.Status = models.SessionApplied
	staged.Session.SelectedOptionID = &optionID
	staged.Session.UpdatedAt = now
	staged.Conflicts = append([]models.ScheduleConflict{}, conflicts...)

	applied := models.AppliedPlan{
		Session:   staged.Session,
		Option:    cloneOptionView(*opt),
		Conflicts: append([]models.ScheduleConflict{}, conflicts...),
	}
	if err := schema.CheckAppliedPlan(&applied); err != nil {
		return nil, upstreamMalformed(err)
	}

	if err := s.persistLocked(&staged); err != nil {
		return nil, err
	}
	s.session = &staged
	return &applied, nil
}

// ResolveConflicts adjusts one option's blocks and re-checks its conflicts.
func (s *Simulation) ResolveConflicts(ctx context.Context, input models.ResolveConflictsInput) (*models.PlanningSessionView, error) {
	if err := schema.CheckResolveInput(&input); err != nil {
		return nil, validationFailed(err)
	}

	view, err := s.resolveOption(input)
	if err != nil {
		return nil, err
	}
	if opt := findOption(view, input.OptionID); opt != nil {
		s.publish(events.TopicConflictsResolved, opt.Conflicts)
	}
	return view, nil
}

// resolveOption stages on a copy and installs it after persistence, exactly
// like applyOption.
func (s *Simulation) resolveOption(input models.ResolveConflictsInput) (*models.PlanningSessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.sessionByIDLocked(input.SessionID)
	if err != nil {
		return nil, err
	}

	staged := cloneSessionView(*current)
	opt := findOption(&staged, input.OptionID)
	if opt == nil {
		return nil, types.NewAppError(types.ErrNotFound, "unknown planning option", nil)
	}
	if len(opt.Blocks) == 0 {
		return nil, validationFailed(fmt.Errorf("option %s has no time blocks to adjust", input.OptionID))
	}

	if err := applyOverrides(opt.Blocks, input.Adjustments); err != nil {
		return nil, err
	}

	conflicts := detectConflicts(opt.Blocks, staged.Session.Constraints)
	updateConflictFlags(opt.Blocks, conflicts)
	opt.Conflicts = conflicts
	staged.Session.UpdatedAt = s.now().UTC().Format(time.RFC3339)

	if staged.Session.SelectedOptionID != nil && *staged.Session.SelectedOptionID == input.OptionID {
		staged.Conflicts = append([]models.ScheduleConflict{}, conflicts...)
	}

	out := cloneSessionView(staged)
	if err := schema.CheckSessionView(&out); err != nil {
		return nil, upstreamMalformed(err)
	}

	if err := s.persistLocked(&staged); err != nil {
		return nil, err
	}
	s.session = &staged
	return &out, nil
}

// GetPreferences reads one profile; unknown ids resolve to zero-value
// defaults, matching the collaborator's behavior for first-time profiles.
func (s *Simulation) GetPreferences(ctx context.Context, preferenceID string) (*models.PreferenceSnapshot, error) {
	id := schema.ResolvePreferenceID(preferenceID)

	s.mu.Lock()
	defer s.mu.Unlock()

	var payload string
	err := s.db.QueryRow(`SELECT payload FROM schedule_preferences WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return &models.PreferenceSnapshot{}, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrUpstreamUnavailable, fmt.Sprintf("read preferences: %v", err), nil)
	}

	var snapshot models.PreferenceSnapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return nil, upstreamMalformed(fmt.Errorf("stored preferences for %s: %w", id, err))
	}
	if err := schema.CheckPreferences(&snapshot); err != nil {
		return nil, upstreamMalformed(err)
	}
	return &snapshot, nil
}

// UpdatePreferences writes one profile.
func (s *Simulation) UpdatePreferences(ctx context.Context, preferenceID string, snapshot models.PreferenceSnapshot) error {
	if err := schema.CheckPreferences(&snapshot); err != nil {
		return validationFailed(err)
	}
	id := schema.ResolvePreferenceID(preferenceID)

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return validationFailed(fmt.Errorf("encode preferences: %w", err))
	}

	s.mu.Lock()
	_, err = s.db.Exec(`INSERT INTO schedule_preferences (id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		id, string(payload), s.now().UTC().Format(time.RFC3339))
	s.mu.Unlock()
	if err != nil {
		return types.NewAppError(types.ErrUpstreamUnavailable, fmt.Sprintf("write preferences: %v", err), nil)
	}

	s.publish(events.TopicPreferencesUpdated, id)
	return nil
}

// sessionByIDLocked returns the live session when the id matches, falling
// back to the database for sessions from a previous process.
func (s *Simulation) sessionByIDLocked(sessionID string) (*models.PlanningSessionView, error) {
	if s.session != nil && s.session.Session.ID == sessionID {
		return s.session, nil
	}

	var payload string
	err := s.db.QueryRow(`SELECT payload FROM planning_sessions WHERE id = ?`, sessionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, types.NewAppError(types.ErrNotFound, "unknown planning session", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrUpstreamUnavailable, fmt.Sprintf("read session: %v", err), nil)
	}

	var view models.PlanningSessionView
	if err := json.Unmarshal([]byte(payload), &view); err != nil {
		return nil, upstreamMalformed(fmt.Errorf("stored session %s: %w", sessionID, err))
	}
	s.session = &view
	return s.session, nil
}

func (s *Simulation) persistLocked(view *models.PlanningSessionView) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return types.NewAppError(types.ErrUnknown, fmt.Sprintf("encode session: %v", err), nil)
	}
	_, err = s.db.Exec(`INSERT INTO planning_sessions (id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		view.Session.ID, string(payload), s.now().UTC().Format(time.RFC3339))
	if err != nil {
		s.log.Warn("failed to persist simulated session", "session_id", view.Session.ID, "error", err)
		return types.NewAppError(types.ErrUpstreamUnavailable, fmt.Sprintf("write session: %v", err), nil)
	}
	return nil
}

func findOption(view *models.PlanningSessionView, optionID string) *models.PlanningOptionView {
	for i := range view.Options {
		if view.Options[i].Option.ID == optionID {
			return &view.Options[i]
		}
	}
	return nil
}

// applyOverrides patches only the blocks named in the override list; every
// named block must exist.
func applyOverrides(blocks []models.PlanningTimeBlock, overrides []models.TimeBlockOverride) error {
	if len(overrides) == 0 {
		return nil
	}

	index := map[string]int{}
	for i := range blocks {
		index[blocks[i].ID] = i
	}

	for _, o := range overrides {
		pos, ok := index[o.BlockID]
		if !ok {
			return validationFailed(fmt.Errorf("override targets unknown time block %s", o.BlockID))
		}
		block := &blocks[pos]
		if o.StartAt != nil {
			block.StartAt = *o.StartAt
		}
		if o.EndAt != nil {
			block.EndAt = *o.EndAt
		}
		start, end, err := blockWindow(block)
		if err != nil {
			return validationFailed(fmt.Errorf("block %s: %w", block.ID, err))
		}
		if !end.After(start) {
			return validationFailed(fmt.Errorf("block %s: endAt must be after startAt", block.ID))
		}
		if o.Flexibility != nil {
			block.Flexibility = *o.Flexibility
		}
	}
	return nil
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
