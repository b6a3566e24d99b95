// Package schema validates and normalizes every payload crossing the
// planning gateway boundary. Malformed data is rejected before it can reach
// the planning store's cache, in either direction.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/M-24rjgc/cognical/models"
)

// ValidationError provides structured error information for schema validation failures
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationResult contains the result of schema validation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ErrorSummary joins all error messages into one line.
func (r ValidationResult) ErrorSummary() string {
	if r.Valid {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Err converts an invalid result into an error, nil otherwise.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("schema validation failed: %s", r.ErrorSummary())
}

func (r *ValidationResult) add(field, tag, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Tag: tag, Message: message})
}

// ResolvePreferenceID normalizes an absent preference id to the default
// profile key.
func ResolvePreferenceID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.DefaultPreferenceID
	}
	return id
}

// CheckGenerateInput validates a generate request and normalizes its
// preference id in place.
func CheckGenerateInput(in *models.GeneratePlanInput) error {
	in.PreferenceID = ResolvePreferenceID(in.PreferenceID)
	result := structResult(in)
	if in.Constraints != nil {
		checkConstraints(in.Constraints, &result)
	}
	return result.Err()
}

// CheckApplyInput validates an apply request.
func CheckApplyInput(in *models.ApplyPlanInput) error {
	result := structResult(in)
	checkOverrides("Overrides", in.Overrides, &result)
	return result.Err()
}

// CheckResolveInput validates a resolve-conflicts request.
func CheckResolveInput(in *models.ResolveConflictsInput) error {
	result := structResult(in)
	checkOverrides("Adjustments", in.Adjustments, &result)
	return result.Err()
}

// CheckSessionView validates a full session view as returned by the
// collaborator, including the cross-field invariants the struct tags cannot
// express: option/session id coherence, block/option id coherence, and
// endAt strictly after startAt on every window.
func CheckSessionView(v *models.PlanningSessionView) error {
	result := structResult(v)
	if v.Session.Constraints != nil {
		checkConstraints(v.Session.Constraints, &result)
	}
	for i := range v.Options {
		opt := &v.Options[i]
		if opt.Option.SessionID != v.Session.ID {
			result.add("Options", "session_id",
				fmt.Sprintf("option %s belongs to session %s, not %s", opt.Option.ID, opt.Option.SessionID, v.Session.ID))
		}
		checkOptionView(opt, &result)
	}
	return result.Err()
}

// CheckAppliedPlan validates an apply result.
func CheckAppliedPlan(p *models.AppliedPlan) error {
	result := structResult(p)
	if p.Option.Option.SessionID != p.Session.ID {
		result.add("Option", "session_id",
			fmt.Sprintf("applied option %s belongs to session %s, not %s", p.Option.Option.ID, p.Option.Option.SessionID, p.Session.ID))
	}
	checkOptionView(&p.Option, &result)
	return result.Err()
}

// CheckConflicts validates a bare conflict list (the conflicts-resolved
// notification payload).
func CheckConflicts(conflicts []models.ScheduleConflict) error {
	var result = ValidationResult{Valid: true}
	for i := range conflicts {
		sub := structResult(&conflicts[i])
		result.Errors = append(result.Errors, sub.Errors...)
		result.Valid = result.Valid && sub.Valid
	}
	return result.Err()
}

// CheckPreferences validates a preference snapshot.
func CheckPreferences(p *models.PreferenceSnapshot) error {
	result := structResult(p)
	if p.FocusStartMinute != nil && p.FocusEndMinute != nil && *p.FocusEndMinute <= *p.FocusStartMinute {
		result.add("FocusEndMinute", "window", "focusEndMinute must be after focusStartMinute")
	}
	for i, w := range p.AvoidanceWindows {
		if w.EndMinute <= w.StartMinute {
			result.add(fmt.Sprintf("AvoidanceWindows[%d]", i), "window", "endMinute must be after startMinute")
		}
	}
	return result.Err()
}

// NormalizeSessionView makes a collaborator payload safe for caching: nil
// slices become empty, option lists are sorted by rank.
func NormalizeSessionView(v *models.PlanningSessionView) {
	if v.Options == nil {
		v.Options = []models.PlanningOptionView{}
	}
	if v.Conflicts == nil {
		v.Conflicts = []models.ScheduleConflict{}
	}
	for i := range v.Options {
		NormalizeOptionView(&v.Options[i])
	}
	sort.SliceStable(v.Options, func(a, b int) bool {
		return v.Options[a].Option.Rank < v.Options[b].Option.Rank
	})
}

// NormalizeOptionView fills nil slices on an option view.
func NormalizeOptionView(opt *models.PlanningOptionView) {
	if opt.Blocks == nil {
		opt.Blocks = []models.PlanningTimeBlock{}
	}
	if opt.Conflicts == nil {
		opt.Conflicts = []models.ScheduleConflict{}
	}
}

func checkOptionView(opt *models.PlanningOptionView, result *ValidationResult) {
	for i := range opt.Blocks {
		block := &opt.Blocks[i]
		if block.OptionID != opt.Option.ID {
			result.add("Blocks", "option_id",
				fmt.Sprintf("block %s belongs to option %s, not %s", block.ID, block.OptionID, opt.Option.ID))
		}
		checkWindow(fmt.Sprintf("Blocks[%d]", i), block.StartAt, block.EndAt, result)
	}
}

func checkConstraints(c *models.ScheduleConstraints, result *ValidationResult) {
	for i, w := range c.AvailableWindows {
		checkWindow(fmt.Sprintf("AvailableWindows[%d]", i), w.StartAt, w.EndAt, result)
	}
	for i, e := range c.ExistingEvents {
		checkWindow(fmt.Sprintf("ExistingEvents[%d]", i), e.StartAt, e.EndAt, result)
	}
}

func checkOverrides(field string, overrides []models.TimeBlockOverride, result *ValidationResult) {
	for i, o := range overrides {
		if o.StartAt != nil && o.EndAt != nil {
			checkWindow(fmt.Sprintf("%s[%d]", field, i), *o.StartAt, *o.EndAt, result)
		}
	}
}

// checkWindow requires endAt strictly after startAt. Instants that fail to
// parse are already reported by the rfc3339 tag, so they are skipped here.
func checkWindow(field, startAt, endAt string, result *ValidationResult) {
	start, err := time.Parse(time.RFC3339, startAt)
	if err != nil {
		return
	}
	end, err := time.Parse(time.RFC3339, endAt)
	if err != nil {
		return
	}
	if !end.After(start) {
		result.add(field, "window", fmt.Sprintf("%s: endAt %s must be after startAt %s", field, endAt, startAt))
	}
}

// structResult runs tag validation and wraps the outcome.
func structResult(s any) ValidationResult {
	if err := models.ValidateStruct(s); err != nil {
		return ValidationResult{Valid: false, Errors: []ValidationError{{
			Field:   "",
			Tag:     "struct",
			Message: err.Error(),
		}}}
	}
	return ValidationResult{Valid: true}
}
