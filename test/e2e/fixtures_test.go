//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// jiraFixture serves the tracker endpoints the runtime reads: sprint issue
// searches with changelogs, single sprint details, and board sprint listings.
type jiraFixture struct {
	server *httptest.Server
}

func newJiraFixture(t *testing.T) *jiraFixture {
	t.Helper()
	fixture := &jiraFixture{}
	fixture.server = httptest.NewServer(http.HandlerFunc(fixture.serveHTTP))
	t.Cleanup(fixture.server.Close)
	return fixture
}

func (f *jiraFixture) serveHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/rest/api/2/search":
		f.serveSearch(w, r)
	case strings.HasPrefix(r.URL.Path, "/rest/agile/1.0/sprint/"):
		f.serveSprint(w, r)
	case strings.HasPrefix(r.URL.Path, "/rest/agile/1.0/board/"):
		f.serveBoardSprints(w)
	default:
		http.NotFound(w, r)
	}
}

func (f *jiraFixture) serveSearch(w http.ResponseWriter, r *http.Request) {
	jql := r.URL.Query().Get("jql")
	if !strings.Contains(jql, "101") {
		writeJSON(w, map[string]any{"total": 0, "issues": []any{}})
		return
	}

	writeJSON(w, map[string]any{
		"total": 1,
		"issues": []map[string]any{
			{
				"key": "TS-1",
				"fields": map[string]any{
					"summary":        "Ship the widget",
					"assignee":       map[string]any{"displayName": "Alice Adams"},
					"status":         map[string]any{"name": "Closed", "statusCategory": map[string]any{"key": "done"}},
					"issuetype":      map[string]any{"name": "Story", "iconUrl": "https://tracker.example.com/story.svg"},
					"created":        "2026-03-01T09:00:00.000+0000",
					"resolutiondate": "2026-03-10T17:00:00.000+0000",
					"customfield_12310243": 5,
					"customfield_12310220": []string{
						fmt.Sprintf("https://github.com/acme/widgets/pull/%d", 42),
					},
					"customfield_12315948": map[string]any{"displayName": "Quinn Quality"},
				},
				"changelog": map[string]any{
					"histories": []map[string]any{
						{
							"created": "2026-03-02T09:00:00.000+0000",
							"items": []map[string]any{
								{"field": "status", "fromString": "To Do", "toString": "In Progress"},
							},
						},
						{
							"created": "2026-03-06T09:00:00.000+0000",
							"items": []map[string]any{
								{"field": "status", "fromString": "In Progress", "toString": "Done"},
							},
						},
					},
				},
			},
		},
	})
}

func (f *jiraFixture) serveSprint(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/rest/agile/1.0/sprint/")
	writeJSON(w, map[string]any{
		"id":        mustAtoi(id),
		"name":      "Sprint " + id,
		"state":     "closed",
		"startDate": "2026-03-01T00:00:00.000+0000",
		"endDate":   "2026-03-03T00:00:00.000+0000",
	})
}

func (f *jiraFixture) serveBoardSprints(w http.ResponseWriter) {
	writeJSON(w, map[string]any{
		"isLast": true,
		"values": []map[string]any{
			{"id": 101, "name": "Sprint 101", "state": "closed", "startDate": "2026-03-01T00:00:00.000+0000", "endDate": "2026-03-03T00:00:00.000+0000"},
			{"id": 102, "name": "Sprint 102", "state": "active"},
		},
	})
}

// githubFixture serves the pull request and comment endpoints.
type githubFixture struct {
	server *httptest.Server
}

func newGitHubFixture(t *testing.T) *githubFixture {
	t.Helper()
	fixture := &githubFixture{}
	fixture.server = httptest.NewServer(http.HandlerFunc(fixture.serveHTTP))
	t.Cleanup(fixture.server.Close)
	return fixture
}

func (f *githubFixture) serveHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/repos/acme/widgets/pulls/42":
		writeJSON(w, map[string]any{
			"number":     42,
			"title":      "Widget assembly",
			"user":       map[string]any{"login": "alice"},
			"created_at": "2026-03-02T12:00:00Z",
			"merged_at":  "2026-03-04T12:00:00Z",
		})
	case r.URL.Path == "/repos/acme/widgets/pulls/42/comments":
		writeJSON(w, []map[string]any{
			{"user": map[string]any{"login": "bob"}, "body": "nit", "created_at": "2026-03-03T10:00:00Z"},
			{"user": map[string]any{"login": "alice"}, "body": "done", "created_at": "2026-03-03T11:00:00Z"},
		})
	case r.URL.Path == "/repos/acme/widgets/issues/42/comments":
		writeJSON(w, []map[string]any{
			{"user": map[string]any{"login": "carol"}, "body": "lgtm", "created_at": "2026-03-04T09:00:00Z"},
		})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func mustAtoi(raw string) int {
	value := 0
	_, _ = fmt.Sscanf(raw, "%d", &value)
	return value
}
