package planning

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/M-24rjgc/cognical/internal/events"
	"github.com/M-24rjgc/cognical/internal/schema"
	"github.com/M-24rjgc/cognical/models"
)

// The bridge attach flag is process-wide, not per store. Every consumer
// calls EnsureEventBridge on its own schedule; only the first call wires
// the subscriptions, so a notification is never handled twice.
var (
	bridgeMu       sync.Mutex
	bridgeAttached bool
	bridgeDetach   func()
)

// EnsureEventBridge subscribes the store to the planning notification
// topics. Safe to call any number of times; only the first attaches.
func (s *Store) EnsureEventBridge() {
	bridgeMu.Lock()
	defer bridgeMu.Unlock()
	if bridgeAttached {
		return
	}

	unsubs := []func(){
		s.bus.Subscribe(events.TopicPlanGenerated, s.contain(events.TopicPlanGenerated, s.onGenerated)),
		s.bus.Subscribe(events.TopicPlanApplied, s.contain(events.TopicPlanApplied, s.onApplied)),
		s.bus.Subscribe(events.TopicConflictsResolved, s.contain(events.TopicConflictsResolved, s.onConflictsResolved)),
		s.bus.Subscribe(events.TopicPreferencesUpdated, s.contain(events.TopicPreferencesUpdated, s.onPreferencesUpdated)),
	}

	bridgeAttached = true
	bridgeDetach = func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
	s.log.Debug("event bridge attached")
}

// detachEventBridge removes the subscriptions and clears the attach flag so
// the next EnsureEventBridge call re-wires them. Used by Reset.
func detachEventBridge() {
	bridgeMu.Lock()
	defer bridgeMu.Unlock()
	if !bridgeAttached {
		return
	}
	bridgeDetach()
	bridgeAttached = false
	bridgeDetach = nil
}

// contain wraps a notification handler so a malformed payload or a panic
// never propagates into the dispatcher. A notification is a hint, not a
// command; on any failure the handler logs and leaves state untouched.
func (s *Store) contain(topic string, h events.Handler) events.Handler {
	return func(payload []byte) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("planning notification handler panicked", "topic", topic, "panic", r)
			}
		}()
		h(payload)
	}
}

func (s *Store) onGenerated(payload []byte) {
	var view models.PlanningSessionView
	if err := json.Unmarshal(payload, &view); err != nil {
		s.log.Warn("dropping malformed generated notification", "error", err)
		return
	}
	schema.NormalizeSessionView(&view)
	if err := schema.CheckSessionView(&view); err != nil {
		s.log.Warn("dropping invalid generated notification", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceSessionLocked(&view)
	if view.PreferenceSnapshot != nil {
		id := s.activePrefID
		if id == "" {
			id = models.DefaultPreferenceID
		}
		s.prefs[id] = *view.PreferenceSnapshot
	}
}

func (s *Store) onApplied(payload []byte) {
	var applied models.AppliedPlan
	if err := json.Unmarshal(payload, &applied); err != nil {
		s.log.Warn("dropping malformed applied notification", "error", err)
		return
	}
	schema.NormalizeOptionView(&applied.Option)
	if err := schema.CheckAppliedPlan(&applied); err != nil {
		s.log.Warn("dropping invalid applied notification", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeAppliedLocked(&applied)
}

// onConflictsResolved carries a bare conflict list, no session id. It is
// taken to describe the currently selected option of the loaded session;
// without a loaded session or a selection it is a no-op.
func (s *Store) onConflictsResolved(payload []byte) {
	var conflicts []models.ScheduleConflict
	if err := json.Unmarshal(payload, &conflicts); err != nil {
		s.log.Warn("dropping malformed conflicts-resolved notification", "error", err)
		return
	}
	if err := schema.CheckConflicts(conflicts); err != nil {
		s.log.Warn("dropping invalid conflicts-resolved notification", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil || s.session.Session.SelectedOptionID == nil {
		return
	}
	selected := *s.session.Session.SelectedOptionID
	for i := range s.session.Options {
		if s.session.Options[i].Option.ID == selected {
			s.session.Options[i].Conflicts = append([]models.ScheduleConflict{}, conflicts...)
			break
		}
	}
	s.session.Conflicts = append([]models.ScheduleConflict{}, conflicts...)
}

// onPreferencesUpdated evicts the named cache entry. When the entry is the
// active one, the handler reloads it through the gateway right away so the
// next read is never served stale.
func (s *Store) onPreferencesUpdated(payload []byte) {
	id := models.DefaultPreferenceID
	if len(payload) > 0 {
		var raw string
		if err := json.Unmarshal(payload, &raw); err != nil {
			s.log.Warn("dropping malformed preferences-updated notification", "error", err)
			return
		}
		id = schema.ResolvePreferenceID(raw)
	}

	s.mu.Lock()
	delete(s.prefs, id)
	active := s.activePrefID == id
	s.mu.Unlock()

	if !active {
		return
	}
	if _, err := s.LoadPreferences(context.Background(), id, true); err != nil {
		s.log.Warn("forced preference reload failed", "preference_id", id, "error", err)
	}
}
