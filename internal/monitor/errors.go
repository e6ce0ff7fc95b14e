package monitor

import (
	"errors"

	"github.com/marcin-skalski/workflow-monitor/internal/github"
	"github.com/marcin-skalski/workflow-monitor/internal/snapshot"
)

var ErrInvalidRequest = errors.New("invalid request")

// ErrorCode is the stable identifier callers match on. Messages may change,
// codes may not.
type ErrorCode string

const (
	CodeMissingToken    ErrorCode = "MISSING_GITHUB_TOKEN"
	CodeInvalidToken    ErrorCode = "INVALID_GITHUB_TOKEN"
	CodeRepoNotFound    ErrorCode = "REPOSITORY_NOT_FOUND"
	CodeRateLimited     ErrorCode = "RATE_LIMITED"
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeUpstreamFailure ErrorCode = "UPSTREAM_FAILURE"
)

func CodeOf(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, snapshot.ErrInvalidRepo):
		return CodeInvalidArgument
	case errors.Is(err, github.ErrMissingToken):
		return CodeMissingToken
	case errors.Is(err, github.ErrInvalidToken):
		return CodeInvalidToken
	case errors.Is(err, github.ErrRepositoryNotFound):
		return CodeRepoNotFound
	case errors.Is(err, github.ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeUpstreamFailure
	}
}

// PublicMessage is safe to hand to a caller. Upstream failures never expose
// their underlying detail.
func PublicMessage(err error) string {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return err.Error()
	case CodeMissingToken:
		return "GitHub token is not configured"
	case CodeInvalidToken:
		return "GitHub rejected the configured token"
	case CodeRepoNotFound:
		return "repository not found or not accessible with the configured token"
	case CodeRateLimited:
		var rl *github.RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			return "GitHub rate limit exceeded, retry after " + rl.RetryAfter.String()
		}
		return "GitHub rate limit exceeded, retry later"
	default:
		return "failed to fetch workflow state from GitHub"
	}
}
