package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultPreferenceID is the preference cache key used when a caller does
// not name a preference profile.
const DefaultPreferenceID = "default"

// SessionStatus represents the lifecycle phase of a planning session.
type SessionStatus string

const (
	SessionPending SessionStatus = "pending"
	SessionApplied SessionStatus = "applied"
)

// BlockStatus represents the execution state of a scheduled time block.
type BlockStatus string

const (
	BlockDraft      BlockStatus = "draft"
	BlockPlanned    BlockStatus = "planned"
	BlockApplied    BlockStatus = "applied"
	BlockCompleted  BlockStatus = "completed"
	BlockSkipped    BlockStatus = "skipped"
	BlockConflicted BlockStatus = "conflicted"
)

// ConflictSeverity ranks how disruptive a detected scheduling conflict is.
type ConflictSeverity string

const (
	SeverityLow    ConflictSeverity = "low"
	SeverityMedium ConflictSeverity = "medium"
	SeverityHigh   ConflictSeverity = "high"
)

// Flexibility tags understood by auto-remediation. The field itself is
// free-form; these are the values the planner emits.
const (
	FlexibilityFixed    = "fixed"
	FlexibilityModerate = "moderate"
	FlexibilityFlexible = "flexible"
)

// PlanningSession is one scheduling request's lifecycle record.
type PlanningSession struct {
	ID                      string               `json:"id" validate:"required"`
	TaskIDs                 []string             `json:"taskIds" validate:"required,min=1,dive,required"`
	Constraints             *ScheduleConstraints `json:"constraints,omitempty"`
	Status                  SessionStatus        `json:"status" validate:"required,oneof=pending applied"`
	SelectedOptionID        *string              `json:"selectedOptionId,omitempty"`
	PersonalizationSnapshot *PreferenceSnapshot  `json:"personalizationSnapshot,omitempty"`
	GeneratedAt             string               `json:"generatedAt" validate:"required,rfc3339"`
	CreatedAt               string               `json:"createdAt" validate:"required,rfc3339"`
	UpdatedAt               string               `json:"updatedAt" validate:"required,rfc3339"`
}

// CotStep is one ordered rationale step attached to an option. Explanatory
// only; never used for control flow.
type CotStep struct {
	Step    int     `json:"step" validate:"min=1"`
	Thought string  `json:"thought" validate:"required"`
	Result  *string `json:"result,omitempty"`
}

// RiskNotes carries free-form notes plus the conflict subset specific to an
// option.
type RiskNotes struct {
	Notes     []string           `json:"notes,omitempty"`
	Conflicts []ScheduleConflict `json:"conflicts,omitempty" validate:"dive"`
}

// PlanningOption is one ranked candidate schedule within a session.
type PlanningOption struct {
	ID         string    `json:"id" validate:"required"`
	SessionID  string    `json:"sessionId" validate:"required"`
	Rank       int       `json:"rank" validate:"min=1"`
	Score      *float64  `json:"score,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	CotSteps   []CotStep `json:"cotSteps,omitempty" validate:"dive"`
	RiskNotes  RiskNotes `json:"riskNotes"`
	IsFallback bool      `json:"isFallback"`
	CreatedAt  string    `json:"createdAt" validate:"required,rfc3339"`
}

// PlanningTimeBlock is one scheduled interval belonging to one option and
// one task.
type PlanningTimeBlock struct {
	ID            string      `json:"id" validate:"required"`
	OptionID      string      `json:"optionId" validate:"required"`
	TaskID        string      `json:"taskId" validate:"required"`
	StartAt       string      `json:"startAt" validate:"required,rfc3339"`
	EndAt         string      `json:"endAt" validate:"required,rfc3339"`
	Flexibility   string      `json:"flexibility,omitempty"`
	Confidence    *float64    `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	ConflictFlags []string    `json:"conflictFlags,omitempty"`
	Status        BlockStatus `json:"status" validate:"required,oneof=draft planned applied completed skipped conflicted"`
	AppliedAt     *string     `json:"appliedAt,omitempty" validate:"omitempty,rfc3339"`
	ActualStartAt *string     `json:"actualStartAt,omitempty" validate:"omitempty,rfc3339"`
	ActualEndAt   *string     `json:"actualEndAt,omitempty" validate:"omitempty,rfc3339"`
}

// ScheduleConflict is a detected scheduling problem tied to a block and/or
// an external calendar event. The back-references are lookup hints, never
// ownership.
type ScheduleConflict struct {
	ConflictType   string           `json:"conflictType" validate:"required"`
	Severity       ConflictSeverity `json:"severity" validate:"required,oneof=low medium high"`
	Message        string           `json:"message" validate:"required"`
	RelatedBlockID *string          `json:"relatedBlockId,omitempty"`
	RelatedEventID *string          `json:"relatedEventId,omitempty"`
}

// TimeWindow is a half-open availability window used in constraints.
type TimeWindow struct {
	StartAt string `json:"startAt" validate:"required,rfc3339"`
	EndAt   string `json:"endAt" validate:"required,rfc3339"`
}

// ExistingEvent is a calendar event the planner must schedule around.
type ExistingEvent struct {
	ID      string `json:"id" validate:"required"`
	Title   string `json:"title,omitempty"`
	StartAt string `json:"startAt" validate:"required,rfc3339"`
	EndAt   string `json:"endAt" validate:"required,rfc3339"`
}

// ScheduleConstraints bound what the planner may generate.
type ScheduleConstraints struct {
	PlanningStartAt       *string         `json:"planningStartAt,omitempty" validate:"omitempty,rfc3339"`
	PlanningEndAt         *string         `json:"planningEndAt,omitempty" validate:"omitempty,rfc3339"`
	AvailableWindows      []TimeWindow    `json:"availableWindows,omitempty" validate:"dive"`
	ExistingEvents        []ExistingEvent `json:"existingEvents,omitempty" validate:"dive"`
	MaxFocusMinutesPerDay *int64          `json:"maxFocusMinutesPerDay,omitempty" validate:"omitempty,min=1"`
}

// AvoidanceWindow marks a repeating weekly interval the user wants kept
// free.
type AvoidanceWindow struct {
	Weekday     int `json:"weekday" validate:"gte=0,lte=6"`
	StartMinute int `json:"startMinute" validate:"minute_of_day"`
	EndMinute   int `json:"endMinute" validate:"minute_of_day"`
}

// PreferenceSnapshot holds the scheduling personalization values used to
// bias plan generation. Sessions carry an immutable copy, not a live
// reference.
type PreferenceSnapshot struct {
	FocusStartMinute           *int              `json:"focusStartMinute,omitempty" validate:"omitempty,minute_of_day"`
	FocusEndMinute             *int              `json:"focusEndMinute,omitempty" validate:"omitempty,minute_of_day"`
	BufferMinutesBetweenBlocks int64             `json:"bufferMinutesBetweenBlocks" validate:"gte=0"`
	PreferCompactSchedule      bool              `json:"preferCompactSchedule"`
	AvoidanceWindows           []AvoidanceWindow `json:"avoidanceWindows,omitempty" validate:"dive"`
}

// TimeBlockOverride is a sparse per-block patch supplied when applying or
// resolving a plan. Only the named block is touched; nil fields keep the
// collaborator's values.
type TimeBlockOverride struct {
	BlockID     string  `json:"blockId" validate:"required"`
	StartAt     *string `json:"startAt,omitempty" validate:"omitempty,rfc3339"`
	EndAt       *string `json:"endAt,omitempty" validate:"omitempty,rfc3339"`
	Flexibility *string `json:"flexibility,omitempty"`
}

// PlanningOptionView pairs an option with its blocks and option-level
// conflicts.
type PlanningOptionView struct {
	Option    PlanningOption      `json:"option"`
	Blocks    []PlanningTimeBlock `json:"blocks" validate:"dive"`
	Conflicts []ScheduleConflict  `json:"conflicts" validate:"dive"`
}

// PlanningSessionView is the unit exchanged with the UI and the wire
// protocol. A bare session never crosses a boundary.
type PlanningSessionView struct {
	Session            PlanningSession      `json:"session"`
	Options            []PlanningOptionView `json:"options" validate:"dive"`
	Conflicts          []ScheduleConflict   `json:"conflicts" validate:"dive"`
	PreferenceSnapshot *PreferenceSnapshot  `json:"preferenceSnapshot,omitempty"`
}

// AppliedPlan is the result of committing one option's blocks.
type AppliedPlan struct {
	Session   PlanningSession    `json:"session"`
	Option    PlanningOptionView `json:"option"`
	Conflicts []ScheduleConflict `json:"conflicts" validate:"dive"`
}

// GeneratePlanInput requests a new multi-task schedule from the planner.
type GeneratePlanInput struct {
	TaskIDs      []string             `json:"taskIds" validate:"required,min=1,dive,required"`
	Constraints  *ScheduleConstraints `json:"constraints,omitempty"`
	PreferenceID string               `json:"preferenceId,omitempty"`
	Seed         *uint64              `json:"seed,omitempty"`
}

// ApplyPlanInput commits one option, optionally patching some of its
// blocks.
type ApplyPlanInput struct {
	SessionID string              `json:"sessionId" validate:"required"`
	OptionID  string              `json:"optionId" validate:"required"`
	Overrides []TimeBlockOverride `json:"overrides" validate:"dive"`
}

// ResolveConflictsInput re-checks one option's conflicts after applying the
// given adjustments. An empty adjustment list marks the conflicts resolved
// without changing the schedule.
type ResolveConflictsInput struct {
	SessionID   string              `json:"sessionId" validate:"required"`
	OptionID    string              `json:"optionId" validate:"required"`
	Adjustments []TimeBlockOverride `json:"adjustments" validate:"dive"`
}

// global validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// ISO-8601 instants travel as strings end to end; rfc3339 checks they
	// parse without mutating them.
	_ = validate.RegisterValidation("rfc3339", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(time.RFC3339, fl.Field().String())
		return err == nil
	})

	_ = validate.RegisterValidation("minute_of_day", func(fl validator.FieldLevel) bool {
		m := fl.Field().Int()
		return m >= 0 && m <= 1439
	})
}

// ValidateStruct performs validation on any struct that has validation tags.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var errorMessages []string
		for _, e := range validationErrors {
			errorMessages = append(errorMessages, fmt.Sprintf("Validation failed on field '%s': rule '%s' (value: '%v')", e.StructNamespace(), e.Tag(), e.Value()))
		}
		return fmt.Errorf("%s", strings.Join(errorMessages, "; "))
	}
	return nil
}
