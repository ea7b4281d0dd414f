package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Gkrumbach07/team-status/internal/config"
	"github.com/Gkrumbach07/team-status/internal/engine"
	"github.com/Gkrumbach07/team-status/internal/githubapi"
	"github.com/Gkrumbach07/team-status/internal/health"
	"github.com/Gkrumbach07/team-status/internal/jiraapi"
	"github.com/google/go-github/v75/github"
	"go.uber.org/zap"
)

// computeEngine runs one metric computation and streams its progress.
type computeEngine interface {
	Run(ctx context.Context, sprintIDs []string) <-chan engine.Notification
}

// sprintLister lists the sprints of the configured agile board.
type sprintLister interface {
	ListBoardSprints(ctx context.Context, boardID int64) (jiraapi.BoardSprintsResult, error)
}

// Runtime wires configuration into upstream clients and the computation
// engine, and serves the HTTP API. Every computation is self-contained; the
// runtime keeps no result state between requests.
type Runtime struct {
	cfg       *config.Config
	logger    *zap.Logger
	engine    computeEngine
	sprints   sprintLister
	metrics   *runtimeMetrics
	evaluator *health.StatusEvaluator

	lastComputationFailed atomic.Bool
}

// NewRuntime builds the upstream clients and computation engine from
// configuration. Invalid wiring fails here, before any request is served.
func NewRuntime(cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	eng, dataClient, err := buildEngine(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		cfg:       cfg,
		logger:    logger,
		engine:    eng,
		sprints:   dataClient,
		metrics:   newRuntimeMetrics(),
		evaluator: health.NewStatusEvaluator(),
	}, nil
}

// buildEngine constructs the upstream clients and the engine for one
// settings bundle. Malformed settings fail here, before any network call.
func buildEngine(cfg *config.Config, logger *zap.Logger) (*engine.Engine, *jiraapi.DataClient, error) {
	requestClient := jiraapi.NewClient(
		&http.Client{Timeout: cfg.Jira.RequestTimeout},
		jiraapi.RetryConfig{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			MaxBackoff:     cfg.Retry.MaxBackoff,
		},
		jiraapi.RateLimitPolicy{
			MinRemainingThreshold: cfg.RateLimit.MinRemainingThreshold,
			MinResetBuffer:        cfg.RateLimit.MinResetBuffer,
			LimitedBackoff:        cfg.RateLimit.SecondaryLimitBackoff,
		},
	)
	dataClient, err := jiraapi.NewDataClient(
		cfg.Jira.Host,
		cfg.Jira.AccessToken,
		jiraapi.FieldIDs{
			StoryPoints: cfg.Jira.StoryPointsField,
			PRLink:      cfg.Jira.PRLinkField,
			QAContact:   cfg.Jira.QAContactField,
		},
		requestClient,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("build jira client: %w", err)
	}

	githubClient, err := newGitHubClient(cfg.GitHub)
	if err != nil {
		return nil, nil, fmt.Errorf("build github client: %w", err)
	}
	pullSource, err := githubapi.NewPullSource(githubClient, cfg.GitHub.Owner, cfg.GitHub.Repo)
	if err != nil {
		return nil, nil, fmt.Errorf("build pull source: %w", err)
	}

	eng, err := engine.New(engine.Options{
		Issues:           dataClient,
		Pulls:            pullSource,
		Owner:            cfg.GitHub.Owner,
		Repo:             cfg.GitHub.Repo,
		PageSize:         cfg.Jira.PageSize,
		FetchConcurrency: cfg.GitHub.FetchConcurrency,
		Logger:           logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build engine: %w", err)
	}
	return eng, dataClient, nil
}

func newGitHubClient(cfg config.GitHubConfig) (*github.Client, error) {
	if strings.TrimSpace(cfg.Token) != "" {
		return githubapi.NewTokenRESTClient(githubapi.TokenAuthConfig{
			Token:   cfg.Token,
			Timeout: cfg.RequestTimeout,
		}, cfg.APIBaseURL)
	}
	return githubapi.NewInstallationRESTClient(githubapi.InstallationAuthConfig{
		AppID:          cfg.AppID,
		InstallationID: cfg.InstallationID,
		PrivateKeyPath: cfg.PrivateKeyPath,
		Timeout:        cfg.RequestTimeout,
	}, cfg.APIBaseURL)
}

// Handler returns the fully wired HTTP handler.
func (r *Runtime) Handler() http.Handler {
	return newRouter(r, health.NewHandler(r))
}

// CurrentStatus implements health.Provider.
func (r *Runtime) CurrentStatus(_ context.Context) health.Status {
	return r.evaluator.Evaluate(health.Input{
		JiraClientUsable:   r.sprints != nil,
		GitHubClientUsable: r.engine != nil,
		LastComputationOK:  !r.lastComputationFailed.Load(),
	})
}

type computeRequest struct {
	SprintIDs []string         `json:"sprintIds"`
	Settings  *computeSettings `json:"settings,omitempty"`
}

// computeSettings optionally overrides the configured connection bundle for
// one computation. Omitted fields keep their configured values.
type computeSettings struct {
	JiraHost    string `json:"jiraHost,omitempty"`
	JiraToken   string `json:"jiraToken,omitempty"`
	GitHubOwner string `json:"githubOwner,omitempty"`
	GitHubRepo  string `json:"githubRepo,omitempty"`
	GitHubToken string `json:"githubToken,omitempty"`
}

// engineFor returns the engine serving one request: the shared engine when no
// settings override is present, otherwise a fresh engine built for the
// overridden bundle. Construction failures surface before any upstream call.
func (r *Runtime) engineFor(settings *computeSettings) (computeEngine, error) {
	if settings == nil {
		return r.engine, nil
	}

	overridden := *r.cfg
	if host := strings.TrimSpace(settings.JiraHost); host != "" {
		overridden.Jira.Host = host
	}
	if token := strings.TrimSpace(settings.JiraToken); token != "" {
		overridden.Jira.AccessToken = token
	}
	if owner := strings.TrimSpace(settings.GitHubOwner); owner != "" {
		overridden.GitHub.Owner = owner
	}
	if repo := strings.TrimSpace(settings.GitHubRepo); repo != "" {
		overridden.GitHub.Repo = repo
	}
	if token := strings.TrimSpace(settings.GitHubToken); token != "" {
		overridden.GitHub.Token = token
		// A request-supplied token supersedes configured app credentials.
		overridden.GitHub.AppID = 0
		overridden.GitHub.InstallationID = 0
		overridden.GitHub.PrivateKeyPath = ""
	}

	eng, _, err := buildEngine(&overridden, r.logger)
	if err != nil {
		return nil, err
	}
	return eng, nil
}

type progressLine struct {
	Status   string          `json:"status"`
	Progress int             `json:"progress,omitempty"`
	Data     *engine.Dataset `json:"data,omitempty"`
}

type errorLine struct {
	Error string `json:"error"`
}

// handleComputeMetrics runs one computation and streams newline-delimited
// JSON progress lines, ending with either a data line or an error line.
func (r *Runtime) handleComputeMetrics(w http.ResponseWriter, req *http.Request) {
	var request computeRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}
	for _, sprintID := range request.SprintIDs {
		if strings.TrimSpace(sprintID) == "" {
			writeJSONError(w, http.StatusBadRequest, "sprint ids must be non-empty")
			return
		}
	}

	eng, err := r.engineFor(request.Settings)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid settings: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	r.metrics.activeComputations.Inc()
	defer r.metrics.activeComputations.Dec()
	started := time.Now()

	outcome := "cancelled"
	for notification := range eng.Run(req.Context(), request.SprintIDs) {
		switch notification.Kind {
		case engine.KindStatus:
			writeStreamLine(w, progressLine{
				Status:   notification.Status,
				Progress: notification.Progress,
			})
		case engine.KindResult:
			writeStreamLine(w, progressLine{
				Status:   notification.Status,
				Progress: notification.Progress,
				Data:     notification.Result,
			})
			outcome = "success"
		case engine.KindFailure:
			r.logger.Error("metric computation failed",
				zap.Strings("sprint_ids", request.SprintIDs),
				zap.Error(notification.Err),
			)
			writeStreamLine(w, errorLine{Error: notification.Err.Error()})
			outcome = "failure"
		}
	}

	r.lastComputationFailed.Store(outcome == "failure")
	r.metrics.computationsTotal.WithLabelValues(outcome).Inc()
	r.metrics.computationDuration.Observe(time.Since(started).Seconds())
}

type sprintPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// handleListSprints returns every sprint of the configured board.
func (r *Runtime) handleListSprints(w http.ResponseWriter, req *http.Request) {
	r.metrics.sprintListingsTotal.Inc()

	result, err := r.sprints.ListBoardSprints(req.Context(), r.cfg.Jira.BoardID)
	if err != nil {
		r.logger.Error("list board sprints failed",
			zap.Int64("board_id", r.cfg.Jira.BoardID),
			zap.Error(err),
		)
		writeJSONError(w, http.StatusBadGateway, "list board sprints failed")
		return
	}

	payload := make([]sprintPayload, 0, len(result.Sprints))
	for _, sprint := range result.Sprints {
		entry := sprintPayload{
			ID:    fmt.Sprintf("%d", sprint.ID),
			Name:  sprint.Name,
			State: sprint.State,
		}
		if !sprint.StartDate.IsZero() {
			entry.StartDate = sprint.StartDate.Format(time.RFC3339)
		}
		if !sprint.EndDate.IsZero() {
			entry.EndDate = sprint.EndDate.Format(time.RFC3339)
		}
		payload = append(payload, entry)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.logger.Error("write sprint listing failed", zap.Error(err))
	}
}

func writeStreamLine(w http.ResponseWriter, line any) {
	payload, err := json.Marshal(line)
	if err != nil {
		return
	}
	payload = append(payload, '\n')
	if _, err := w.Write(payload); err != nil {
		return
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload, err := json.Marshal(errorLine{Error: message})
	if err != nil {
		return
	}
	_, _ = w.Write(payload)
}
