package engine

import (
	"sort"
	"time"

	"github.com/Gkrumbach07/team-status/internal/jiraapi"
)

const statusInProgress = "In Progress"

// closingStatuses end an open in-progress interval when transitioned into.
var closingStatuses = map[string]bool{
	"Testing": true,
	"Done":    true,
	"Closed":  true,
	"Review":  true,
}

// completingStatuses additionally mark the issue as completed.
var completingStatuses = map[string]bool{
	"Done":   true,
	"Closed": true,
}

// StatusSummary is the outcome of replaying an issue's status history.
type StatusSummary struct {
	// TimeInProgress accumulates only closed intervals: an interval opened
	// by a transition into "In Progress" and closed by a later transition
	// into a closing status. A trailing open interval contributes nothing.
	TimeInProgress time.Duration
	Completed      bool
	FirstReviewAt  *time.Time
	FirstTestingAt *time.Time
}

// ReduceStatusHistory replays status transitions in chronological order and
// folds them into a summary. Ties on the timestamp preserve input order.
func ReduceStatusHistory(changes []jiraapi.StatusChange) StatusSummary {
	ordered := make([]jiraapi.StatusChange, len(changes))
	copy(ordered, changes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].At.Before(ordered[j].At)
	})

	var summary StatusSummary
	var openedAt *time.Time
	for _, change := range ordered {
		switch {
		case change.To == statusInProgress:
			at := change.At
			openedAt = &at
		case closingStatuses[change.To]:
			if openedAt != nil {
				summary.TimeInProgress += change.At.Sub(*openedAt)
				openedAt = nil
			}
			if completingStatuses[change.To] {
				summary.Completed = true
			}
		}
		if change.To == "Review" && summary.FirstReviewAt == nil {
			at := change.At
			summary.FirstReviewAt = &at
		}
		if change.To == "Testing" && summary.FirstTestingAt == nil {
			at := change.At
			summary.FirstTestingAt = &at
		}
	}
	return summary
}

func durationDays(d time.Duration) float64 {
	return d.Hours() / 24
}
