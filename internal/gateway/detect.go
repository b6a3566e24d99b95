package gateway

import (
	"fmt"
	"sort"
	"time"

	"github.com/M-24rjgc/cognical/models"
)

// Conflict types the simulated collaborator can detect.
const (
	conflictCalendarOverlap = "calendar-overlap"
	conflictDailyOverload   = "daily-overload"
)

var severityOrder = map[models.ConflictSeverity]int{
	models.SeverityHigh:   0,
	models.SeverityMedium: 1,
	models.SeverityLow:    2,
}

// detectConflicts re-checks an option's blocks against the session
// constraints: overlaps with existing calendar events and the daily
// focus-minute cap. Results are ordered by descending severity.
func detectConflicts(blocks []models.PlanningTimeBlock, constraints *models.ScheduleConstraints) []models.ScheduleConflict {
	conflicts := []models.ScheduleConflict{}
	if constraints == nil {
		return conflicts
	}

	for i := range blocks {
		block := &blocks[i]
		blockStart, blockEnd, err := blockWindow(block)
		if err != nil {
			continue
		}
		for j := range constraints.ExistingEvents {
			event := &constraints.ExistingEvents[j]
			eventStart, perr := time.Parse(time.RFC3339, event.StartAt)
			if perr != nil {
				continue
			}
			eventEnd, perr := time.Parse(time.RFC3339, event.EndAt)
			if perr != nil {
				continue
			}
			if overlaps(blockStart, blockEnd, eventStart, eventEnd) {
				blockID := block.ID
				eventID := event.ID
				conflicts = append(conflicts, models.ScheduleConflict{
					ConflictType:   conflictCalendarOverlap,
					Severity:       models.SeverityHigh,
					Message:        fmt.Sprintf("time block [%s - %s] overlaps event %s", block.StartAt, block.EndAt, event.ID),
					RelatedBlockID: &blockID,
					RelatedEventID: &eventID,
				})
			}
		}
	}

	if limit := constraints.MaxFocusMinutesPerDay; limit != nil {
		dayTotals := map[string]int64{}
		for i := range blocks {
			start, end, err := blockWindow(&blocks[i])
			if err != nil {
				continue
			}
			day := start.Format("2006-01-02")
			dayTotals[day] += int64(end.Sub(start).Minutes())
		}
		days := make([]string, 0, len(dayTotals))
		for day := range dayTotals {
			days = append(days, day)
		}
		sort.Strings(days)
		for _, day := range days {
			if minutes := dayTotals[day]; minutes > *limit {
				conflicts = append(conflicts, models.ScheduleConflict{
					ConflictType: conflictDailyOverload,
					Severity:     models.SeverityMedium,
					Message:      fmt.Sprintf("%s schedules %d focus minutes, over the %d minute cap", day, minutes, *limit),
				})
			}
		}
	}

	sort.SliceStable(conflicts, func(a, b int) bool {
		return severityOrder[conflicts[a].Severity] < severityOrder[conflicts[b].Severity]
	})
	return conflicts
}

// updateConflictFlags rewrites every block's conflict flag list from the
// detected conflicts that reference it.
func updateConflictFlags(blocks []models.PlanningTimeBlock, conflicts []models.ScheduleConflict) {
	flagsByBlock := map[string][]string{}
	for _, c := range conflicts {
		if c.RelatedBlockID == nil {
			continue
		}
		flags := flagsByBlock[*c.RelatedBlockID]
		if !containsString(flags, c.ConflictType) {
			flagsByBlock[*c.RelatedBlockID] = append(flags, c.ConflictType)
		}
	}
	for i := range blocks {
		blocks[i].ConflictFlags = flagsByBlock[blocks[i].ID]
	}
}

func blockWindow(block *models.PlanningTimeBlock) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, block.StartAt)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse(time.RFC3339, block.EndAt)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
