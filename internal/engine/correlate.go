package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Gkrumbach07/team-status/internal/jiraapi"
)

// ParsePullNumber extracts the pull request number from a tracker-side link
// field. Only canonical links into the configured repository count: anything
// else (another repository, a non-numeric tail, an empty field) leaves the
// issue unlinked.
func ParsePullNumber(rawURL, owner, repo string) (int, bool) {
	prefix := fmt.Sprintf("https://github.com/%s/%s/pull/", owner, repo)
	if !strings.HasPrefix(rawURL, prefix) {
		return 0, false
	}
	parts := strings.Split(strings.TrimSuffix(rawURL, "/"), "/")
	number, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || number <= 0 {
		return 0, false
	}
	return number, true
}

// CollectPullNumbers returns the distinct pull request numbers linked from
// the given issues, in first-seen order.
func CollectPullNumbers(issues []jiraapi.Issue, owner, repo string) []int {
	seen := make(map[int]struct{})
	var numbers []int
	for _, issue := range issues {
		number, ok := ParsePullNumber(issue.PullRequestURL, owner, repo)
		if !ok {
			continue
		}
		if _, dup := seen[number]; dup {
			continue
		}
		seen[number] = struct{}{}
		numbers = append(numbers, number)
	}
	return numbers
}

// BuildIdentityMap derives username-to-display-name pairs from issues whose
// linked pull request was fetched. When several issues disagree about an
// author's identity the last processed issue wins.
func BuildIdentityMap(issues []jiraapi.Issue, pulls map[int]*EnrichedPull, owner, repo string) IdentityMap {
	identities := make(IdentityMap)
	for _, issue := range issues {
		number, ok := ParsePullNumber(issue.PullRequestURL, owner, repo)
		if !ok {
			continue
		}
		pull, ok := pulls[number]
		if !ok || pull.Author == "" {
			continue
		}
		identities[pull.Author] = assigneeOf(issue)
	}
	return identities
}

func assigneeOf(issue jiraapi.Issue) string {
	if issue.Assignee == "" {
		return UnassignedLabel
	}
	return issue.Assignee
}
