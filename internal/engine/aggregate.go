package engine

import (
	"strings"
	"time"

	"github.com/Gkrumbach07/team-status/internal/jiraapi"
)

const statusCategoryDone = "done"

// completedStatusNames mark an issue as delivered for the completed-issues
// series, independent of the status-history reducer.
var completedStatusNames = map[string]bool{
	"Closed":   true,
	"Resolved": true,
}

// Aggregate folds issues and their enriched pull requests into the metric
// series. Issues are processed in input order and each contributes points in
// a fixed per-series order, so the output is deterministic.
func Aggregate(issues []jiraapi.Issue, pulls map[int]*EnrichedPull, identities IdentityMap, owner, repo string) *Dataset {
	dataset := NewDataset()
	for _, issue := range issues {
		aggregateIssue(dataset, issue, pulls, identities, owner, repo)
	}
	return dataset
}

func aggregateIssue(dataset *Dataset, issue jiraapi.Issue, pulls map[int]*EnrichedPull, identities IdentityMap, owner, repo string) {
	var pull *EnrichedPull
	if number, ok := ParsePullNumber(issue.PullRequestURL, owner, repo); ok {
		pull = pulls[number]
	}

	builder := pointBuilder{issue: issue, pull: pull}
	summary := ReduceStatusHistory(issue.StatusChanges)

	switch strings.ToLower(issue.KindName) {
	case "bug":
		dataset.BugCount = append(dataset.BugCount, builder.point(f64(1), ""))
	case "story":
		dataset.StoryCount = append(dataset.StoryCount, builder.point(f64(1), ""))
	case "task":
		dataset.TaskCount = append(dataset.TaskCount, builder.point(f64(1), ""))
	case "sub-task", "subtask":
		dataset.SubTaskCount = append(dataset.SubTaskCount, builder.point(f64(1), ""))
	}

	if issue.StatusCategory == statusCategoryDone {
		points := 0.0
		if issue.StoryPoints != nil {
			points = *issue.StoryPoints
		}
		dataset.PointsCompleted = append(dataset.PointsCompleted, builder.point(f64(points), ""))
	}

	if issue.QAContact != "" {
		dataset.QAValidations = append(dataset.QAValidations, builder.point(nil, issue.QAContact))
	}

	if summary.Completed && summary.TimeInProgress > 0 {
		dataset.TimeInProgress = append(dataset.TimeInProgress, builder.point(f64(durationDays(summary.TimeInProgress)), ""))
	}

	if summary.FirstReviewAt != nil && summary.FirstTestingAt != nil {
		delta := durationDays(summary.FirstTestingAt.Sub(*summary.FirstReviewAt))
		dataset.TimeToQAContact = append(dataset.TimeToQAContact, builder.point(f64(delta), ""))
	}

	if pull != nil {
		aggregatePull(dataset, builder, pull, identities)
	}

	if completedStatusNames[issue.StatusName] {
		dataset.IssuesCompleted = append(dataset.IssuesCompleted, builder.point(nil, ""))
	}
}

// aggregatePull contributes the pull-request-scoped series for one issue:
// merge latency for the assignee, plus review activity attributed to the
// commenters. The pull author's own comments never count as review activity.
func aggregatePull(dataset *Dataset, builder pointBuilder, pull *EnrichedPull, identities IdentityMap) {
	issue := builder.issue

	if pull.MergedAt != nil {
		latency := durationDays(pull.MergedAt.Sub(pull.CreatedAt))
		dataset.TimeToMergePR = append(dataset.TimeToMergePR, builder.point(f64(latency), ""))
	}

	number := pull.Number
	received := 0
	seen := make(map[string]bool)
	var reviewers []string
	for _, comment := range pull.Comments {
		if comment.Author == "" || comment.Author == pull.Author {
			continue
		}
		received++
		if !seen[comment.Author] {
			seen[comment.Author] = true
			reviewers = append(reviewers, comment.Author)
		}
		dataset.ReviewCommentsGiven = append(dataset.ReviewCommentsGiven, MetricPoint{
			TeamMember: identities.Resolve(comment.Author),
			SprintID:   builder.sprintID(),
			IssueKey:   issue.Key,
			PRNumber:   &number,
			Value:      f64(1),
			Date:       comment.CreatedAt.Format(time.RFC3339),
			Title:      issue.Title,
			PRTitle:    pull.Title,
		})
	}

	for _, reviewer := range reviewers {
		dataset.ReviewsGiven = append(dataset.ReviewsGiven, MetricPoint{
			TeamMember: identities.Resolve(reviewer),
			SprintID:   builder.sprintID(),
			IssueKey:   issue.Key,
			PRNumber:   &number,
			Title:      issue.Title,
			PRTitle:    pull.Title,
		})
	}

	// One received-comments point per linked pull, zero-valued when nobody
	// but the author commented. Carries no event date.
	dataset.ReviewComments = append(dataset.ReviewComments, MetricPoint{
		TeamMember: assigneeOf(issue),
		SprintID:   builder.sprintID(),
		IssueKey:   issue.Key,
		PRNumber:   &number,
		Value:      f64(float64(received)),
		Title:      issue.Title,
		PRTitle:    pull.Title,
	})
}

// pointBuilder stamps metric points with one issue's shared context.
type pointBuilder struct {
	issue jiraapi.Issue
	pull  *EnrichedPull
}

// point builds an issue-scoped metric point. An empty attribution falls back
// to the issue assignee; the event date is the resolution timestamp when the
// issue has one, otherwise the creation timestamp.
func (b pointBuilder) point(value *float64, attribution string) MetricPoint {
	member := attribution
	if member == "" {
		member = assigneeOf(b.issue)
	}
	p := MetricPoint{
		TeamMember: member,
		SprintID:   b.sprintID(),
		IssueKey:   b.issue.Key,
		Value:      value,
		Date:       b.eventDate(),
		Title:      b.issue.Title,
		IssueKind: &IssueKind{
			Name:    b.issue.KindName,
			IconURL: b.issue.KindIconURL,
		},
	}
	if b.pull != nil {
		number := b.pull.Number
		p.PRNumber = &number
		p.PRTitle = b.pull.Title
	}
	return p
}

func (b pointBuilder) sprintID() string {
	if b.issue.SprintID == "" {
		return UnknownSprintLabel
	}
	return b.issue.SprintID
}

func (b pointBuilder) eventDate() string {
	if b.issue.Resolved != nil {
		return b.issue.Resolved.Format(time.RFC3339)
	}
	if b.issue.Created.IsZero() {
		return ""
	}
	return b.issue.Created.Format(time.RFC3339)
}

func f64(v float64) *float64 {
	return &v
}
