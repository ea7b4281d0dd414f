package jiraapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// Sprint is one agile sprint summary.
type Sprint struct {
	ID        int64
	Name      string
	State     string
	StartDate time.Time
	EndDate   time.Time
}

// SprintResult is the typed result for fetching one sprint.
type SprintResult struct {
	Sprint   Sprint
	Metadata CallMetadata
}

// BoardSprintsResult is the typed result for listing a board's sprints.
type BoardSprintsResult struct {
	Sprints  []Sprint
	Metadata CallMetadata
}

// StatusChange is one status transition from an issue changelog. Non-status
// changelog items are filtered out during decoding.
type StatusChange struct {
	At   time.Time
	From string
	To   string
}

// Issue is one tracker issue with its status-change history. The status
// change log preserves source order and is not guaranteed sorted.
type Issue struct {
	Key            string
	SprintID       string
	Title          string
	Assignee       string
	StatusName     string
	StatusCategory string
	KindName       string
	KindIconURL    string
	StoryPoints    *float64
	Created        time.Time
	Resolved       *time.Time
	PullRequestURL string
	QAContact      string
	StatusChanges  []StatusChange
}

// IssueSearchResult is one page of a sprint issue search.
type IssueSearchResult struct {
	Total    int
	Issues   []Issue
	Metadata CallMetadata
}

// FieldIDs names the deployment-specific Jira custom fields the client reads.
type FieldIDs struct {
	StoryPoints string
	PRLink      string
	QAContact   string
}

// DataClient is a typed Jira REST data client for the sprint-metrics endpoints.
type DataClient struct {
	baseURL       *url.URL
	token         string
	fields        FieldIDs
	requestClient *Client
}

// NewDataClient creates a typed data client over the generic retry/rate-limit
// request client. Host is the tracker hostname; HTTPS is assumed.
func NewDataClient(host, token string, fields FieldIDs, requestClient *Client) (*DataClient, error) {
	if requestClient == nil {
		return nil, fmt.Errorf("request client is required")
	}
	trimmedHost := strings.TrimSpace(host)
	if trimmedHost == "" {
		return nil, fmt.Errorf("jira host is required")
	}

	raw := trimmedHost
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse jira base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("parse jira base url: missing host")
	}

	return &DataClient{
		baseURL:       parsed,
		token:         token,
		fields:        fields,
		requestClient: requestClient,
	}, nil
}

// SearchSprintIssues fetches one page of issues belonging to a sprint, each
// expanded with its full changelog. The caller drives pagination with
// startAt until it has collected Total issues.
func (c *DataClient) SearchSprintIssues(ctx context.Context, sprintID string, startAt, maxResults int) (IssueSearchResult, error) {
	trimmedSprint := strings.TrimSpace(sprintID)
	if trimmedSprint == "" {
		return IssueSearchResult{}, fmt.Errorf("sprint id is required")
	}
	if maxResults <= 0 {
		return IssueSearchResult{}, fmt.Errorf("max results must be > 0")
	}

	reqURL := c.endpoint("/rest/api/2/search")
	query := reqURL.Query()
	query.Set("jql", "Sprint = "+trimmedSprint)
	query.Set("fields", c.searchFields())
	query.Set("expand", "changelog")
	query.Set("startAt", strconv.Itoa(startAt))
	query.Set("maxResults", strconv.Itoa(maxResults))
	reqURL.RawQuery = query.Encode()

	var payload searchPayload
	metadata, err := c.getJSON(ctx, reqURL, &payload)
	result := IssueSearchResult{Metadata: metadata}
	if err != nil {
		return result, fmt.Errorf("search sprint %s issues: %w", trimmedSprint, err)
	}

	result.Total = payload.Total
	for _, issue := range payload.Issues {
		decoded, decodeErr := decodeIssue(issue, c.fields)
		if decodeErr != nil {
			return result, fmt.Errorf("decode issue %s: %w", issue.Key, decodeErr)
		}
		result.Issues = append(result.Issues, decoded)
	}
	return result, nil
}

// GetSprint fetches one sprint's detail from the agile API.
func (c *DataClient) GetSprint(ctx context.Context, sprintID string) (SprintResult, error) {
	trimmedSprint := strings.TrimSpace(sprintID)
	if trimmedSprint == "" {
		return SprintResult{}, fmt.Errorf("sprint id is required")
	}

	reqURL := c.endpoint("/rest/agile/1.0/sprint/" + url.PathEscape(trimmedSprint))

	var payload sprintPayload
	metadata, err := c.getJSON(ctx, reqURL, &payload)
	result := SprintResult{Metadata: metadata}
	if err != nil {
		return result, fmt.Errorf("get sprint %s: %w", trimmedSprint, err)
	}

	result.Sprint = payload.toSprint()
	return result, nil
}

// ListBoardSprints lists every sprint of one agile board, paging until the
// API reports the last page.
func (c *DataClient) ListBoardSprints(ctx context.Context, boardID int64) (BoardSprintsResult, error) {
	if boardID <= 0 {
		return BoardSprintsResult{}, fmt.Errorf("board id must be > 0")
	}

	result := BoardSprintsResult{}
	startAt := 0
	for {
		reqURL := c.endpoint("/rest/agile/1.0/board/" + strconv.FormatInt(boardID, 10) + "/sprint")
		query := reqURL.Query()
		query.Set("startAt", strconv.Itoa(startAt))
		reqURL.RawQuery = query.Encode()

		var payload boardSprintsPayload
		metadata, err := c.getJSON(ctx, reqURL, &payload)
		result.Metadata = mergeMetadata(result.Metadata, metadata)
		if err != nil {
			return result, fmt.Errorf("list board %d sprints: %w", boardID, err)
		}

		for _, sprint := range payload.Values {
			result.Sprints = append(result.Sprints, sprint.toSprint())
		}

		if payload.IsLast || len(payload.Values) == 0 {
			break
		}
		startAt += len(payload.Values)
	}
	return result, nil
}

func (c *DataClient) searchFields() string {
	fields := []string{
		"assignee",
		"status",
		"issuetype",
		"created",
		"resolutiondate",
		"summary",
	}
	if c.fields.StoryPoints != "" {
		fields = append(fields, c.fields.StoryPoints)
	}
	if c.fields.PRLink != "" {
		fields = append(fields, c.fields.PRLink)
	}
	if c.fields.QAContact != "" {
		fields = append(fields, c.fields.QAContact)
	}
	return strings.Join(fields, ",")
}

func (c *DataClient) endpoint(path string) *url.URL {
	cloned := *c.baseURL
	cloned.Path = strings.TrimSuffix(cloned.Path, "/") + path
	return &cloned
}

func (c *DataClient) getJSON(ctx context.Context, reqURL *url.URL, target any) (CallMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return CallMetadata{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, metadata, err := c.requestClient.Do(req)
	if err != nil {
		return metadata, fmt.Errorf("request failed: %w", err)
	}
	if resp == nil {
		return metadata, fmt.Errorf("request failed: nil response")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return metadata, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return metadata, fmt.Errorf("decode response: %w", err)
	}
	return metadata, nil
}

func mergeMetadata(current CallMetadata, incoming CallMetadata) CallMetadata {
	current.Attempts += incoming.Attempts
	current.LastDecision = incoming.LastDecision
	current.LastRateHeaders = incoming.LastRateHeaders
	return current
}

func decodeIssue(payload issuePayload, fields FieldIDs) (Issue, error) {
	var known issueFieldsPayload
	if err := json.Unmarshal(payload.Fields, &known); err != nil {
		return Issue{}, fmt.Errorf("decode fields: %w", err)
	}

	var custom map[string]json.RawMessage
	if err := json.Unmarshal(payload.Fields, &custom); err != nil {
		return Issue{}, fmt.Errorf("decode custom fields: %w", err)
	}

	issue := Issue{
		Key:            payload.Key,
		Title:          known.Summary,
		StatusName:     known.Status.Name,
		StatusCategory: known.Status.StatusCategory.Key,
		KindName:       known.IssueType.Name,
		KindIconURL:    known.IssueType.IconURL,
		Created:        parseJiraTime(known.Created),
	}
	if known.Assignee != nil {
		issue.Assignee = known.Assignee.DisplayName
	}
	if known.ResolutionDate != nil {
		resolved := parseJiraTime(*known.ResolutionDate)
		if !resolved.IsZero() {
			issue.Resolved = &resolved
		}
	}

	issue.StoryPoints = decodeStoryPoints(custom[fields.StoryPoints])
	issue.PullRequestURL = decodePRLink(custom[fields.PRLink])
	issue.QAContact = decodeQAContact(custom[fields.QAContact])
	issue.StatusChanges = decodeStatusChanges(payload.Changelog)

	return issue, nil
}

func decodeStoryPoints(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var points *float64
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil
	}
	return points
}

// decodePRLink reads the pull-request link custom field, which some Jira
// deployments store as a list of URLs and others as a single string.
func decodePRLink(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var urls []string
	if err := json.Unmarshal(raw, &urls); err == nil {
		if len(urls) > 0 {
			return urls[0]
		}
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	return ""
}

func decodeQAContact(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var contact *displayNamePayload
	if err := json.Unmarshal(raw, &contact); err != nil || contact == nil {
		return ""
	}
	return contact.DisplayName
}

func decodeStatusChanges(changelog *changelogPayload) []StatusChange {
	if changelog == nil {
		return nil
	}
	var changes []StatusChange
	for _, history := range changelog.Histories {
		at := parseJiraTime(history.Created)
		for _, item := range history.Items {
			if item.Field != "status" {
				continue
			}
			change := StatusChange{At: at}
			if item.FromString != nil {
				change.From = *item.FromString
			}
			if item.ToString != nil {
				change.To = *item.ToString
			}
			changes = append(changes, change)
		}
	}
	return changes
}

func parseJiraTime(raw string) time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}
	}
	if parsed, err := time.Parse(jiraTimeLayout, trimmed); err == nil {
		return parsed.UTC()
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return parsed.UTC()
	}
	return time.Time{}
}

type searchPayload struct {
	Total  int            `json:"total"`
	Issues []issuePayload `json:"issues"`
}

type issuePayload struct {
	Key       string            `json:"key"`
	Fields    json.RawMessage   `json:"fields"`
	Changelog *changelogPayload `json:"changelog"`
}

type issueFieldsPayload struct {
	Assignee       *displayNamePayload `json:"assignee"`
	Status         statusPayload       `json:"status"`
	IssueType      issueTypePayload    `json:"issuetype"`
	Created        string              `json:"created"`
	ResolutionDate *string             `json:"resolutiondate"`
	Summary        string              `json:"summary"`
}

type displayNamePayload struct {
	DisplayName string `json:"displayName"`
}

type statusPayload struct {
	Name           string                `json:"name"`
	StatusCategory statusCategoryPayload `json:"statusCategory"`
}

type statusCategoryPayload struct {
	Key string `json:"key"`
}

type issueTypePayload struct {
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

type changelogPayload struct {
	Histories []historyPayload `json:"histories"`
}

type historyPayload struct {
	Created string              `json:"created"`
	Items   []changeItemPayload `json:"items"`
}

type changeItemPayload struct {
	Field      string  `json:"field"`
	FromString *string `json:"fromString"`
	ToString   *string `json:"toString"`
}

type sprintPayload struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func (p sprintPayload) toSprint() Sprint {
	return Sprint{
		ID:        p.ID,
		Name:      p.Name,
		State:     p.State,
		StartDate: parseJiraTime(p.StartDate),
		EndDate:   parseJiraTime(p.EndDate),
	}
}

type boardSprintsPayload struct {
	IsLast bool            `json:"isLast"`
	Values []sprintPayload `json:"values"`
}
