package engine

import (
	"time"

	"github.com/Gkrumbach07/team-status/internal/jiraapi"
)

const dayLayout = "2006-01-02"

// DateRange returns every calendar day between start and end inclusive,
// formatted yyyy-MM-dd. An inverted or zero-valued range yields no days.
func DateRange(start, end time.Time) []string {
	if start.IsZero() || end.IsZero() {
		return []string{}
	}
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	days := []string{}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(dayLayout))
	}
	return days
}

// sprintDateSpan finds the earliest start and latest end across sprints,
// ignoring sprints missing either bound.
func sprintDateSpan(sprints []jiraapi.Sprint) (time.Time, time.Time) {
	var start, end time.Time
	for _, s := range sprints {
		if s.StartDate.IsZero() || s.EndDate.IsZero() {
			continue
		}
		if start.IsZero() || s.StartDate.Before(start) {
			start = s.StartDate
		}
		if end.IsZero() || s.EndDate.After(end) {
			end = s.EndDate
		}
	}
	return start, end
}
