package jiraapi

import (
	"net/http"
	"strconv"
	"time"
)

// RateLimitHeaders contains parsed Jira rate-limit response headers.
type RateLimitHeaders struct {
	Remaining  int
	ResetUnix  int64
	RetryAfter time.Duration
	Limited    bool
}

// Decision represents a rate-limit action decision.
type Decision struct {
	Allow   bool
	WaitFor time.Duration
	Reason  string
}

// RateLimitPolicy evaluates rate-limit actions from parsed headers.
type RateLimitPolicy struct {
	MinRemainingThreshold int
	MinResetBuffer        time.Duration
	LimitedBackoff        time.Duration
	Now                   func() time.Time
}

// ParseRateLimitHeaders parses Jira rate-limit and retry headers.
// Jira Data Center signals throttling through 429 plus Retry-After;
// Jira Cloud additionally sends X-RateLimit-* headers.
func ParseRateLimitHeaders(header http.Header, statusCode int) RateLimitHeaders {
	parsed := RateLimitHeaders{}
	parsed.Remaining = parseHeaderInt(header.Get("X-RateLimit-Remaining"), -1)
	parsed.ResetUnix = parseHeaderInt64(header.Get("X-RateLimit-Reset"))

	retryAfterSeconds := parseHeaderInt(header.Get("Retry-After"), 0)
	if retryAfterSeconds > 0 {
		parsed.RetryAfter = time.Duration(retryAfterSeconds) * time.Second
	}

	if statusCode == http.StatusTooManyRequests {
		parsed.Limited = true
	}

	return parsed
}

// Evaluate decides whether calls may continue or should pause.
func (p RateLimitPolicy) Evaluate(headers RateLimitHeaders) Decision {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	if headers.Limited {
		waitFor := p.LimitedBackoff
		if headers.RetryAfter > waitFor {
			waitFor = headers.RetryAfter
		}
		return Decision{
			Allow:   false,
			WaitFor: waitFor,
			Reason:  "rate_limited",
		}
	}

	// A missing remaining header means the deployment does not expose budgets.
	if headers.Remaining < 0 || headers.Remaining >= p.MinRemainingThreshold {
		return Decision{
			Allow:   true,
			WaitFor: 0,
			Reason:  "within_budget",
		}
	}

	resetAt := time.Unix(headers.ResetUnix, 0)
	if !resetAt.After(now) {
		return Decision{
			Allow:   true,
			WaitFor: 0,
			Reason:  "reset_elapsed",
		}
	}

	return Decision{
		Allow:   false,
		WaitFor: resetAt.Sub(now) + p.MinResetBuffer,
		Reason:  "remaining_below_threshold",
	}
}

func parseHeaderInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseHeaderInt64(raw string) int64 {
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
