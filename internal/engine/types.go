package engine

import (
	"github.com/Gkrumbach07/team-status/internal/githubapi"
)

// UnassignedLabel is the sentinel contributor name for issues with no assignee.
const UnassignedLabel = "Unassigned"

// UnknownSprintLabel is the sentinel sprint id for issues fetched without one.
const UnknownSprintLabel = "Unknown"

// IssueKind describes an issue's type for display purposes.
type IssueKind struct {
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

// MetricPoint is one attributed, dated observation contributing to a series.
// A nil Value marks a presence point: consumers count the record itself.
type MetricPoint struct {
	TeamMember string     `json:"teamMember"`
	SprintID   string     `json:"sprintId"`
	IssueKey   string     `json:"jiraId"`
	PRNumber   *int       `json:"prId,omitempty"`
	Value      *float64   `json:"value,omitempty"`
	Date       string     `json:"date,omitempty"`
	Title      string     `json:"title"`
	PRTitle    string     `json:"prTitle,omitempty"`
	IssueKind  *IssueKind `json:"issueType,omitempty"`
}

// SprintName maps a sprint id to its display name.
type SprintName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Dataset is the full result payload: fourteen named metric series plus the
// sprint name lookup and the inclusive calendar range of all requested
// sprints. Series are append-only and insertion ordered.
type Dataset struct {
	PointsCompleted     []MetricPoint `json:"pointsCompleted"`
	TimeToMergePR       []MetricPoint `json:"timeToMergePR"`
	ReviewsGiven        []MetricPoint `json:"reviewsGiven"`
	QAValidations       []MetricPoint `json:"qaValidations"`
	ReviewComments      []MetricPoint `json:"reviewComments"`
	TimeInProgress      []MetricPoint `json:"timeInProgress"`
	ReviewCommentsGiven []MetricPoint `json:"reviewCommentsGiven"`
	IssuesCompleted     []MetricPoint `json:"jirasCompleted"`
	TimeToQAContact     []MetricPoint `json:"timeToQAContact"`
	BugCount            []MetricPoint `json:"bugCount"`
	StoryCount          []MetricPoint `json:"storyCount"`
	TaskCount           []MetricPoint `json:"taskCount"`
	SubTaskCount        []MetricPoint `json:"subTaskCount"`
	SprintNames         []SprintName  `json:"sprintNames"`
	AllDates            []string      `json:"allDates"`
}

// NewDataset creates a dataset with every series initialized so the JSON
// payload renders empty arrays rather than nulls.
func NewDataset() *Dataset {
	return &Dataset{
		PointsCompleted:     []MetricPoint{},
		TimeToMergePR:       []MetricPoint{},
		ReviewsGiven:        []MetricPoint{},
		QAValidations:       []MetricPoint{},
		ReviewComments:      []MetricPoint{},
		TimeInProgress:      []MetricPoint{},
		ReviewCommentsGiven: []MetricPoint{},
		IssuesCompleted:     []MetricPoint{},
		TimeToQAContact:     []MetricPoint{},
		BugCount:            []MetricPoint{},
		StoryCount:          []MetricPoint{},
		TaskCount:           []MetricPoint{},
		SubTaskCount:        []MetricPoint{},
		SprintNames:         []SprintName{},
		AllDates:            []string{},
	}
}

// EnrichedPull is a pull request with its merged comment stream. The stream
// combines inline review comments and general discussion comments without
// interleaving; counts and attribution are order independent.
type EnrichedPull struct {
	githubapi.PullRequest
	Comments []githubapi.Comment
}

// IdentityMap maps repository usernames to tracker display names. It is
// rebuilt from scratch for every computation and never persisted.
type IdentityMap map[string]string

// Resolve returns the tracker display name for a repository username,
// falling back to the raw username when the linkage was never observed.
func (m IdentityMap) Resolve(login string) string {
	if name, ok := m[login]; ok && name != "" {
		return name
	}
	return login
}
