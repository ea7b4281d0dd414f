package engine

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/Gkrumbach07/team-status/internal/githubapi"
	"github.com/Gkrumbach07/team-status/internal/jiraapi"
	"go.uber.org/zap"
)

// Progress stage labels and percentages, emitted in order during a run.
const (
	StageFetchingIssues   = "Fetching Jira issues"
	StageIssuesFetched    = "Jira issues fetched"
	StageCollectingLinks  = "Collecting PR URLs"
	StageLinksCollected   = "PR URLs collected"
	StageFetchingPulls    = "Fetching GitHub PRs"
	StagePullsFetched     = "GitHub PRs fetched"
	StageProcessing       = "Processing metrics"
	StageMetricsProcessed = "Metrics processed"
)

// NotificationKind discriminates the progress stream variants.
type NotificationKind string

const (
	// KindStatus is an intermediate stage announcement.
	KindStatus NotificationKind = "status"
	// KindResult is the terminal success notification carrying the dataset.
	KindResult NotificationKind = "result"
	// KindFailure is the terminal error notification.
	KindFailure NotificationKind = "failure"
)

// Notification is one element of a computation's progress stream. Exactly one
// terminal notification (result or failure) ends every stream.
type Notification struct {
	Kind     NotificationKind
	Status   string
	Progress int
	Result   *Dataset
	Err      error
}

// IssueSource fetches sprint issues and sprint details from the tracker.
type IssueSource interface {
	SearchSprintIssues(ctx context.Context, sprintID string, startAt, maxResults int) (jiraapi.IssueSearchResult, error)
	GetSprint(ctx context.Context, sprintID string) (jiraapi.SprintResult, error)
}

// PullSource fetches pull requests and their comment streams.
type PullSource interface {
	GetPullRequest(ctx context.Context, number int) (githubapi.PullRequest, error)
	ListReviewComments(ctx context.Context, number int) ([]githubapi.Comment, error)
	ListIssueComments(ctx context.Context, number int) ([]githubapi.Comment, error)
}

// Options configures one engine instance.
type Options struct {
	Issues IssueSource
	Pulls  PullSource
	// Owner and Repo select which pull request links count as canonical.
	Owner string
	Repo  string
	// PageSize bounds one issue search page; defaults to 100.
	PageSize int
	// FetchConcurrency bounds parallel pull request enrichment; defaults to 8.
	FetchConcurrency int
	Logger           *zap.Logger
}

// Engine computes delivery metrics for a set of sprints. Every run is
// self-contained: no state survives between runs.
type Engine struct {
	issues      IssueSource
	pulls       PullSource
	owner       string
	repo        string
	pageSize    int
	concurrency int
	logger      *zap.Logger
}

// New creates an engine, validating the wiring before any run can start.
func New(opts Options) (*Engine, error) {
	if opts.Issues == nil {
		return nil, fmt.Errorf("issue source is required")
	}
	if opts.Pulls == nil {
		return nil, fmt.Errorf("pull source is required")
	}
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("github owner and repo are required")
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	concurrency := opts.FetchConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		issues:      opts.Issues,
		pulls:       opts.Pulls,
		owner:       opts.Owner,
		repo:        opts.Repo,
		pageSize:    pageSize,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// Run computes metrics for the given sprints and streams progress on the
// returned channel. The channel closes after exactly one terminal
// notification. Cancelling ctx aborts the run; the stream then ends without
// a terminal notification.
func (e *Engine) Run(ctx context.Context, sprintIDs []string) <-chan Notification {
	out := make(chan Notification)
	go func() {
		defer close(out)
		e.run(ctx, sprintIDs, out)
	}()
	return out
}

func (e *Engine) run(ctx context.Context, sprintIDs []string, out chan<- Notification) {
	if len(sprintIDs) == 0 {
		dataset := NewDataset()
		emit(ctx, out, Notification{
			Kind:     KindResult,
			Status:   StageMetricsProcessed,
			Progress: 100,
			Result:   dataset,
		})
		return
	}

	if !emit(ctx, out, Notification{Kind: KindStatus, Status: StageFetchingIssues}) {
		return
	}
	issues, err := e.fetchAllIssues(ctx, sprintIDs)
	if err != nil {
		emit(ctx, out, Notification{Kind: KindFailure, Err: err})
		return
	}
	if !emit(ctx, out, Notification{Kind: KindStatus, Status: StageIssuesFetched, Progress: 20}) {
		return
	}

	sprints, err := e.fetchSprints(ctx, sprintIDs)
	if err != nil {
		emit(ctx, out, Notification{Kind: KindFailure, Err: err})
		return
	}

	if !emit(ctx, out, Notification{Kind: KindStatus, Status: StageCollectingLinks, Progress: 40}) {
		return
	}
	numbers := CollectPullNumbers(issues, e.owner, e.repo)
	if !emit(ctx, out, Notification{Kind: KindStatus, Status: StageLinksCollected, Progress: 60}) {
		return
	}

	if !emit(ctx, out, Notification{Kind: KindStatus, Status: StageFetchingPulls}) {
		return
	}
	pulls := e.fetchPulls(ctx, numbers)
	if ctx.Err() != nil {
		return
	}
	if !emit(ctx, out, Notification{Kind: KindStatus, Status: StagePullsFetched, Progress: 80}) {
		return
	}

	if !emit(ctx, out, Notification{Kind: KindStatus, Status: StageProcessing}) {
		return
	}
	identities := BuildIdentityMap(issues, pulls, e.owner, e.repo)
	dataset := Aggregate(issues, pulls, identities, e.owner, e.repo)
	for _, sprint := range sprints {
		dataset.SprintNames = append(dataset.SprintNames, SprintName{
			ID:   strconv.FormatInt(sprint.ID, 10),
			Name: sprint.Name,
		})
	}
	start, end := sprintDateSpan(sprints)
	dataset.AllDates = DateRange(start, end)

	emit(ctx, out, Notification{
		Kind:     KindResult,
		Status:   StageMetricsProcessed,
		Progress: 100,
		Result:   dataset,
	})
}

// fetchAllIssues fetches every sprint's issues in parallel, paging each
// sprint sequentially until its reported total is collected. Issues keep the
// per-sprint input order, concatenated in sprint-id order.
func (e *Engine) fetchAllIssues(ctx context.Context, sprintIDs []string) ([]jiraapi.Issue, error) {
	perSprint := make([][]jiraapi.Issue, len(sprintIDs))
	errs := make([]error, len(sprintIDs))

	var wg sync.WaitGroup
	for i, sprintID := range sprintIDs {
		i := i
		sprintID := sprintID
		wg.Add(1)
		go func() {
			defer wg.Done()
			perSprint[i], errs[i] = e.fetchSprintIssues(ctx, sprintID)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("fetch issues for sprint %s: %w", sprintIDs[i], err)
		}
	}

	var issues []jiraapi.Issue
	for _, page := range perSprint {
		issues = append(issues, page...)
	}
	return issues, nil
}

func (e *Engine) fetchSprintIssues(ctx context.Context, sprintID string) ([]jiraapi.Issue, error) {
	var issues []jiraapi.Issue
	startAt := 0
	for {
		result, err := e.issues.SearchSprintIssues(ctx, sprintID, startAt, e.pageSize)
		if err != nil {
			return nil, err
		}
		for _, issue := range result.Issues {
			issue.SprintID = sprintID
			issues = append(issues, issue)
		}
		if len(result.Issues) == 0 || len(issues) >= result.Total {
			break
		}
		startAt += e.pageSize
	}
	return issues, nil
}

func (e *Engine) fetchSprints(ctx context.Context, sprintIDs []string) ([]jiraapi.Sprint, error) {
	sprints := make([]jiraapi.Sprint, len(sprintIDs))
	errs := make([]error, len(sprintIDs))

	var wg sync.WaitGroup
	for i, sprintID := range sprintIDs {
		i := i
		sprintID := sprintID
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := e.issues.GetSprint(ctx, sprintID)
			sprints[i], errs[i] = result.Sprint, err
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("fetch sprint %s: %w", sprintIDs[i], err)
		}
	}
	return sprints, nil
}

// fetchPulls enriches pull requests with their comment streams, bounded by
// the configured concurrency. A pull that fails to fetch is logged and
// dropped; its issues degrade to unlinked rather than failing the run.
func (e *Engine) fetchPulls(ctx context.Context, numbers []int) map[int]*EnrichedPull {
	pulls := make(map[int]*EnrichedPull, len(numbers))
	if len(numbers) == 0 {
		return pulls
	}

	jobs := make(chan int, len(numbers))
	results := make(chan *EnrichedPull, len(numbers))

	var wg sync.WaitGroup
	workerCount := e.concurrency
	if workerCount > len(numbers) {
		workerCount = len(numbers)
	}
	for range workerCount {
		wg.Go(func() {
			for number := range jobs {
				enriched, err := e.fetchPull(ctx, number)
				if err != nil {
					e.logger.Warn("dropping pull request",
						zap.Int("number", number),
						zap.Error(err),
					)
					continue
				}
				results <- enriched
			}
		})
	}

	for _, number := range numbers {
		jobs <- number
	}
	close(jobs)

	wg.Wait()
	close(results)

	for enriched := range results {
		pulls[enriched.Number] = enriched
	}
	return pulls
}

// fetchPull fetches one pull request and both of its comment threads. The
// two comment listings run in parallel; review comments precede discussion
// comments in the merged stream.
func (e *Engine) fetchPull(ctx context.Context, number int) (*EnrichedPull, error) {
	pull, err := e.pulls.GetPullRequest(ctx, number)
	if err != nil {
		return nil, err
	}

	var reviewComments, issueComments []githubapi.Comment
	var reviewErr, issueErr error
	var wg sync.WaitGroup
	wg.Go(func() {
		reviewComments, reviewErr = e.pulls.ListReviewComments(ctx, number)
	})
	wg.Go(func() {
		issueComments, issueErr = e.pulls.ListIssueComments(ctx, number)
	})
	wg.Wait()

	if reviewErr != nil {
		return nil, reviewErr
	}
	if issueErr != nil {
		return nil, issueErr
	}

	enriched := &EnrichedPull{PullRequest: pull}
	enriched.Comments = append(enriched.Comments, reviewComments...)
	enriched.Comments = append(enriched.Comments, issueComments...)
	return enriched, nil
}

// emit delivers a notification unless the run has been cancelled.
func emit(ctx context.Context, out chan<- Notification, n Notification) bool {
	select {
	case out <- n:
		return true
	case <-ctx.Done():
		return false
	}
}
