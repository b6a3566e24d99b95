package planning

import (
	"time"

	"github.com/M-24rjgc/cognical/models"
)

// conflictShift is how far a conflicted block is pushed when the user asks
// for an automatic fix. Small enough to stay inside the same part of the
// day, large enough to clear back-to-back calendar overlaps.
const conflictShift = 15 * time.Minute

// AutoAdjustments proposes one override per conflicted block in the given
// option: the block is shifted later by a fixed amount with its duration
// preserved. A block counts as conflicted when an option conflict names it
// or when it carries conflict flags of its own. The result feeds a resolve
// request; the collaborator re-checks, so an adjustment that creates a new
// overlap is caught there, not here.
func AutoAdjustments(option models.PlanningOptionView) []models.TimeBlockOverride {
	affected := make(map[string]bool)
	for _, c := range option.Conflicts {
		if c.RelatedBlockID != nil {
			affected[*c.RelatedBlockID] = true
		}
	}
	for _, b := range option.Blocks {
		if len(b.ConflictFlags) > 0 {
			affected[b.ID] = true
		}
	}

	overrides := make([]models.TimeBlockOverride, 0, len(affected))
	for _, b := range option.Blocks {
		if !affected[b.ID] {
			continue
		}
		start, err := time.Parse(time.RFC3339, b.StartAt)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, b.EndAt)
		if err != nil {
			continue
		}
		startAt := start.Add(conflictShift).Format(time.RFC3339)
		endAt := end.Add(conflictShift).Format(time.RFC3339)
		flexibility := b.Flexibility
		if flexibility == "" {
			flexibility = models.FlexibilityModerate
		}
		overrides = append(overrides, models.TimeBlockOverride{
			BlockID:     b.ID,
			StartAt:     &startAt,
			EndAt:       &endAt,
			Flexibility: &flexibility,
		})
	}
	return overrides
}

// MarkResolvedAdjustments is the acknowledge-without-moving remediation: an
// empty adjustment list sent through a resolve request makes the
// collaborator re-check the option as laid out and clear anything that no
// longer conflicts.
func MarkResolvedAdjustments() []models.TimeBlockOverride {
	return []models.TimeBlockOverride{}
}
