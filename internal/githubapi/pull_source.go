package githubapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Gkrumbach07/team-status/internal/telemetry"
	"github.com/google/go-github/v75/github"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const commentPageSize = 100

// PullRequest is one pull request summary.
type PullRequest struct {
	Number    int
	Author    string
	Title     string
	CreatedAt time.Time
	MergedAt  *time.Time
}

// Comment is one pull request comment from either the review thread or the
// general discussion thread.
type Comment struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

// PullSource reads pull requests and their comments for one repository.
type PullSource struct {
	client *github.Client
	owner  string
	repo   string
}

// NewPullSource creates a pull request source bound to one repository.
func NewPullSource(client *github.Client, owner, repo string) (*PullSource, error) {
	if client == nil {
		return nil, fmt.Errorf("github client is required")
	}
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	if trimmedOwner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return nil, fmt.Errorf("repo is required")
	}

	return &PullSource{
		client: client,
		owner:  trimmedOwner,
		repo:   trimmedRepo,
	}, nil
}

// GetPullRequest fetches one pull request by number.
func (s *PullSource) GetPullRequest(ctx context.Context, number int) (PullRequest, error) {
	if number <= 0 {
		return PullRequest{}, fmt.Errorf("pull number must be > 0")
	}

	ctx, span := s.startSpan(ctx, "githubapi.get_pull_request", number)
	defer endSpan(span)

	pull, _, err := s.client.PullRequests.Get(ctx, s.owner, s.repo, number)
	if err != nil {
		recordSpanError(span, err)
		return PullRequest{}, fmt.Errorf("get pull request %d: %w", number, err)
	}

	typed := PullRequest{
		Number:    pull.GetNumber(),
		Author:    pull.GetUser().GetLogin(),
		Title:     pull.GetTitle(),
		CreatedAt: pull.GetCreatedAt().Time,
	}
	if pull.MergedAt != nil {
		merged := pull.MergedAt.Time
		typed.MergedAt = &merged
	}
	return typed, nil
}

// ListReviewComments lists all inline review comments for one pull request.
func (s *PullSource) ListReviewComments(ctx context.Context, number int) ([]Comment, error) {
	if number <= 0 {
		return nil, fmt.Errorf("pull number must be > 0")
	}

	ctx, span := s.startSpan(ctx, "githubapi.list_review_comments", number)
	defer endSpan(span)

	var comments []Comment
	opts := &github.PullRequestListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: commentPageSize},
	}
	for {
		page, resp, err := s.client.PullRequests.ListComments(ctx, s.owner, s.repo, number, opts)
		if err != nil {
			recordSpanError(span, err)
			return nil, fmt.Errorf("list review comments for pull %d: %w", number, err)
		}
		for _, comment := range page {
			comments = append(comments, Comment{
				Author:    comment.GetUser().GetLogin(),
				Body:      comment.GetBody(),
				CreatedAt: comment.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return comments, nil
}

// ListIssueComments lists all general discussion comments for one pull
// request. Pull requests share the issue comment namespace, so the pull
// number doubles as the issue number.
func (s *PullSource) ListIssueComments(ctx context.Context, number int) ([]Comment, error) {
	if number <= 0 {
		return nil, fmt.Errorf("pull number must be > 0")
	}

	ctx, span := s.startSpan(ctx, "githubapi.list_issue_comments", number)
	defer endSpan(span)

	var comments []Comment
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: commentPageSize},
	}
	for {
		page, resp, err := s.client.Issues.ListComments(ctx, s.owner, s.repo, number, opts)
		if err != nil {
			recordSpanError(span, err)
			return nil, fmt.Errorf("list issue comments for pull %d: %w", number, err)
		}
		for _, comment := range page {
			comments = append(comments, Comment{
				Author:    comment.GetUser().GetLogin(),
				Body:      comment.GetBody(),
				CreatedAt: comment.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return comments, nil
}

func (s *PullSource) startSpan(ctx context.Context, operation string, number int) (context.Context, trace.Span) {
	if !telemetry.ShouldTraceDependencies() {
		return ctx, nil
	}
	return otel.Tracer("team-status/internal/githubapi").Start(
		ctx,
		operation,
		trace.WithAttributes(
			attribute.String("github.owner", s.owner),
			attribute.String("github.repo", s.repo),
			attribute.Int("github.pull_number", number),
		),
	)
}

func recordSpanError(span trace.Span, err error) {
	if span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func endSpan(span trace.Span) {
	if span != nil {
		span.End()
	}
}
