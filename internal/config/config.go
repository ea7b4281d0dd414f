package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Default Jira custom field identifiers. These match a common Jira Data
// Center field layout and can be overridden per deployment.
const (
	DefaultStoryPointsField = "customfield_12310243"
	DefaultPRLinkField      = "customfield_12310220"
	DefaultQAContactField   = "customfield_12315948"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig
	Jira      JiraConfig
	GitHub    GitHubConfig
	RateLimit RateLimitConfig
	Retry     RetryConfig
	Telemetry TelemetryConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
}

// JiraConfig configures the issue tracker source.
type JiraConfig struct {
	Host             string
	AccessToken      string
	BoardID          int64
	PageSize         int
	StoryPointsField string
	PRLinkField      string
	QAContactField   string
	RequestTimeout   time.Duration
}

// GitHubConfig configures the pull request source.
type GitHubConfig struct {
	Owner            string
	Repo             string
	Token            string
	APIBaseURL       string
	AppID            int64
	InstallationID   int64
	PrivateKeyPath   string
	RequestTimeout   time.Duration
	FetchConcurrency int
}

// RateLimitConfig configures rate-limit controls for upstream calls.
type RateLimitConfig struct {
	MinRemainingThreshold int
	MinResetBuffer        time.Duration
	SecondaryLimitBackoff time.Duration
}

// RetryConfig configures retries for upstream calls.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// TelemetryConfig configures OpenTelemetry behavior.
type TelemetryConfig struct {
	OTELEnabled          bool
	OTELTraceMode        string
	OTELTraceSampleRatio float64
}

// Load reads configuration from YAML, applies environment credential
// overrides, and validates the result.
func Load(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("config reader is nil")
	}

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var raw rawConfig
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg := raw.toConfig()
	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates configuration values.
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains(validLogLevels, c.Server.LogLevel) {
		errs = append(errs, "server.log_level must be one of debug|info|warn|error")
	}

	if strings.TrimSpace(c.Jira.Host) == "" {
		errs = append(errs, "jira.host is required")
	}
	if c.Jira.BoardID <= 0 {
		errs = append(errs, "jira.board_id must be > 0")
	}
	if c.Jira.PageSize <= 0 || c.Jira.PageSize > 100 {
		errs = append(errs, "jira.page_size must be between 1 and 100")
	}

	if strings.TrimSpace(c.GitHub.Owner) == "" {
		errs = append(errs, "github.owner is required")
	}
	if strings.TrimSpace(c.GitHub.Repo) == "" {
		errs = append(errs, "github.repo is required")
	}
	if c.GitHub.FetchConcurrency <= 0 {
		errs = append(errs, "github.fetch_concurrency must be > 0")
	}

	hasToken := strings.TrimSpace(c.GitHub.Token) != ""
	hasApp := c.GitHub.AppID > 0 || c.GitHub.InstallationID > 0 || c.GitHub.PrivateKeyPath != ""
	if hasApp {
		if c.GitHub.AppID <= 0 {
			errs = append(errs, "github.app_id must be > 0 when app credentials are set")
		}
		if c.GitHub.InstallationID <= 0 {
			errs = append(errs, "github.installation_id must be > 0 when app credentials are set")
		}
		if strings.TrimSpace(c.GitHub.PrivateKeyPath) == "" {
			errs = append(errs, "github.private_key_path is required when app credentials are set")
		}
	}
	if !hasToken && !hasApp {
		errs = append(errs, "github requires either a token or app credentials")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Jira.PageSize == 0 {
		cfg.Jira.PageSize = 100
	}
	if cfg.Jira.StoryPointsField == "" {
		cfg.Jira.StoryPointsField = DefaultStoryPointsField
	}
	if cfg.Jira.PRLinkField == "" {
		cfg.Jira.PRLinkField = DefaultPRLinkField
	}
	if cfg.Jira.QAContactField == "" {
		cfg.Jira.QAContactField = DefaultQAContactField
	}
	if cfg.Jira.RequestTimeout <= 0 {
		cfg.Jira.RequestTimeout = 30 * time.Second
	}
	if cfg.GitHub.RequestTimeout <= 0 {
		cfg.GitHub.RequestTimeout = 30 * time.Second
	}
	if cfg.GitHub.FetchConcurrency == 0 {
		cfg.GitHub.FetchConcurrency = 8
	}
	if cfg.RateLimit.MinResetBuffer <= 0 {
		cfg.RateLimit.MinResetBuffer = 2 * time.Second
	}
	if cfg.RateLimit.SecondaryLimitBackoff <= 0 {
		cfg.RateLimit.SecondaryLimitBackoff = time.Minute
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoff <= 0 {
		cfg.Retry.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.Retry.MaxBackoff <= 0 {
		cfg.Retry.MaxBackoff = 10 * time.Second
	}
}

func applyEnvOverrides(cfg *Config) {
	if token := strings.TrimSpace(os.Getenv("JIRA_ACCESS_TOKEN")); token != "" {
		cfg.Jira.AccessToken = token
	}
	if token := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); token != "" {
		cfg.GitHub.Token = token
	}
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 || strings.TrimSpace(value.Value) == "" {
		d.Duration = 0
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}

	parsed, err := parseFlexibleDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseFlexibleDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}

	if standard, err := time.ParseDuration(trimmed); err == nil {
		return standard, nil
	}

	if strings.HasSuffix(trimmed, "d") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "d"), 24)
	}
	if strings.HasSuffix(trimmed, "w") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "w"), 24*7)
	}

	return 0, fmt.Errorf("parse duration %q: invalid unit", raw)
}

func parseDurationWithMultiplier(numeric string, multiplierHours float64) (time.Duration, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration value %q: %w", numeric, err)
	}

	nanos := value * multiplierHours * float64(time.Hour)
	if nanos > math.MaxInt64 || nanos < math.MinInt64 {
		return 0, fmt.Errorf("parse duration value %q: out of range", numeric)
	}
	return time.Duration(nanos), nil
}

type rawConfig struct {
	Server    ServerConfig `yaml:"server"`
	Jira      rawJira      `yaml:"jira"`
	GitHub    rawGitHub    `yaml:"github"`
	RateLimit rawRateLimit `yaml:"rate_limit"`
	Retry     rawRetry     `yaml:"retry"`
	Telemetry rawTelemetry `yaml:"telemetry"`
}

type rawJira struct {
	Host             string   `yaml:"host"`
	AccessToken      string   `yaml:"access_token"`
	BoardID          int64    `yaml:"board_id"`
	PageSize         int      `yaml:"page_size"`
	StoryPointsField string   `yaml:"story_points_field"`
	PRLinkField      string   `yaml:"pr_link_field"`
	QAContactField   string   `yaml:"qa_contact_field"`
	RequestTimeout   duration `yaml:"request_timeout"`
}

type rawGitHub struct {
	Owner            string   `yaml:"owner"`
	Repo             string   `yaml:"repo"`
	Token            string   `yaml:"token"`
	APIBaseURL       string   `yaml:"api_base_url"`
	AppID            int64    `yaml:"app_id"`
	InstallationID   int64    `yaml:"installation_id"`
	PrivateKeyPath   string   `yaml:"private_key_path"`
	RequestTimeout   duration `yaml:"request_timeout"`
	FetchConcurrency int      `yaml:"fetch_concurrency"`
}

type rawRateLimit struct {
	MinRemainingThreshold int      `yaml:"min_remaining_threshold"`
	MinResetBuffer        duration `yaml:"min_reset_buffer"`
	SecondaryLimitBackoff duration `yaml:"secondary_limit_backoff"`
}

type rawRetry struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff duration `yaml:"initial_backoff"`
	MaxBackoff     duration `yaml:"max_backoff"`
}

type rawTelemetry struct {
	OTELEnabled          bool    `yaml:"otel_enabled"`
	OTELTraceMode        string  `yaml:"otel_trace_mode"`
	OTELTraceSampleRatio float64 `yaml:"otel_trace_sample_ratio"`
}

func (r rawConfig) toConfig() *Config {
	return &Config{
		Server: r.Server,
		Jira: JiraConfig{
			Host:             r.Jira.Host,
			AccessToken:      r.Jira.AccessToken,
			BoardID:          r.Jira.BoardID,
			PageSize:         r.Jira.PageSize,
			StoryPointsField: r.Jira.StoryPointsField,
			PRLinkField:      r.Jira.PRLinkField,
			QAContactField:   r.Jira.QAContactField,
			RequestTimeout:   r.Jira.RequestTimeout.Duration,
		},
		GitHub: GitHubConfig{
			Owner:            r.GitHub.Owner,
			Repo:             r.GitHub.Repo,
			Token:            r.GitHub.Token,
			APIBaseURL:       r.GitHub.APIBaseURL,
			AppID:            r.GitHub.AppID,
			InstallationID:   r.GitHub.InstallationID,
			PrivateKeyPath:   r.GitHub.PrivateKeyPath,
			RequestTimeout:   r.GitHub.RequestTimeout.Duration,
			FetchConcurrency: r.GitHub.FetchConcurrency,
		},
		RateLimit: RateLimitConfig{
			MinRemainingThreshold: r.RateLimit.MinRemainingThreshold,
			MinResetBuffer:        r.RateLimit.MinResetBuffer.Duration,
			SecondaryLimitBackoff: r.RateLimit.SecondaryLimitBackoff.Duration,
		},
		Retry: RetryConfig{
			MaxAttempts:    r.Retry.MaxAttempts,
			InitialBackoff: r.Retry.InitialBackoff.Duration,
			MaxBackoff:     r.Retry.MaxBackoff.Duration,
		},
		Telemetry: TelemetryConfig{
			OTELEnabled:          r.Telemetry.OTELEnabled,
			OTELTraceMode:        r.Telemetry.OTELTraceMode,
			OTELTraceSampleRatio: r.Telemetry.OTELTraceSampleRatio,
		},
	}
}
