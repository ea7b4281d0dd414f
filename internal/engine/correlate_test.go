package engine

import (
	"testing"

	"github.com/Gkrumbach07/team-status/internal/githubapi"
	"github.com/Gkrumbach07/team-status/internal/jiraapi"
)

func TestParsePullNumber(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		rawURL string
		want   int
		wantOK bool
	}{
		{
			name:   "canonical_link",
			rawURL: "https://github.com/acme/widgets/pull/42",
			want:   42,
			wantOK: true,
		},
		{
			name:   "trailing_slash",
			rawURL: "https://github.com/acme/widgets/pull/42/",
			want:   42,
			wantOK: true,
		},
		{
			name:   "empty_field",
			rawURL: "",
		},
		{
			name:   "wrong_repository",
			rawURL: "https://github.com/acme/gadgets/pull/42",
		},
		{
			name:   "wrong_owner",
			rawURL: "https://github.com/other/widgets/pull/42",
		},
		{
			name:   "non_numeric_tail",
			rawURL: "https://github.com/acme/widgets/pull/42/files",
		},
		{
			name:   "issue_link",
			rawURL: "https://github.com/acme/widgets/issues/42",
		},
		{
			name:   "not_a_url",
			rawURL: "see the attached PR",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParsePullNumber(tc.rawURL, "acme", "widgets")
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("ParsePullNumber(%q) = (%d, %t), want (%d, %t)", tc.rawURL, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestCollectPullNumbers(t *testing.T) {
	t.Parallel()

	issues := []jiraapi.Issue{
		{Key: "TS-1", PullRequestURL: "https://github.com/acme/widgets/pull/7"},
		{Key: "TS-2", PullRequestURL: "https://github.com/acme/widgets/pull/9"},
		{Key: "TS-3", PullRequestURL: "https://github.com/acme/widgets/pull/7"},
		{Key: "TS-4", PullRequestURL: "https://github.com/other/widgets/pull/11"},
		{Key: "TS-5"},
	}

	got := CollectPullNumbers(issues, "acme", "widgets")
	want := []int{7, 9}
	if len(got) != len(want) {
		t.Fatalf("CollectPullNumbers returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("CollectPullNumbers returned %v, want %v", got, want)
		}
	}
}

func TestBuildIdentityMap(t *testing.T) {
	t.Parallel()

	issues := []jiraapi.Issue{
		{Key: "TS-1", Assignee: "Alice Adams", PullRequestURL: "https://github.com/acme/widgets/pull/7"},
		{Key: "TS-2", PullRequestURL: "https://github.com/acme/widgets/pull/9"},
		{Key: "TS-3", Assignee: "Not Linked", PullRequestURL: "https://github.com/acme/widgets/pull/13"},
		{Key: "TS-4", Assignee: "Alice Prime", PullRequestURL: "https://github.com/acme/widgets/pull/15"},
	}
	pulls := map[int]*EnrichedPull{
		7:  {PullRequest: githubapi.PullRequest{Number: 7, Author: "alice"}},
		9:  {PullRequest: githubapi.PullRequest{Number: 9, Author: "bob"}},
		15: {PullRequest: githubapi.PullRequest{Number: 15, Author: "alice"}},
	}

	identities := BuildIdentityMap(issues, pulls, "acme", "widgets")

	// Later issues overwrite earlier linkages for the same author.
	if got := identities.Resolve("alice"); got != "Alice Prime" {
		t.Fatalf("Resolve(alice) = %q, want %q", got, "Alice Prime")
	}
	// Issues without an assignee map the author to the unassigned label.
	if got := identities.Resolve("bob"); got != UnassignedLabel {
		t.Fatalf("Resolve(bob) = %q, want %q", got, UnassignedLabel)
	}
	// Unlinked authors fall back to their username.
	if got := identities.Resolve("carol"); got != "carol" {
		t.Fatalf("Resolve(carol) = %q, want %q", got, "carol")
	}
	if _, ok := identities["TS-3"]; ok {
		t.Fatalf("issue with an unfetched pull must not contribute a linkage")
	}
}
