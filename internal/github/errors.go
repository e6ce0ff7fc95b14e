package github

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	ErrMissingToken       = errors.New("github token not configured")
	ErrInvalidToken       = errors.New("github rejected the token")
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrRateLimited        = errors.New("github rate limit exceeded")
)

// RateLimitError is returned for 403/429 responses and RATE_LIMITED GraphQL
// errors. RetryAfter is zero when GitHub gave no hint.
type RateLimitError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (status %d, retry after %s): %s", ErrRateLimited, e.Status, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("%s (status %d): %s", ErrRateLimited, e.Status, e.Message)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// APIError covers every other non-successful upstream answer.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api error (status %d): %s", e.Status, e.Message)
}

func retryAfter(h http.Header, now time.Time) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if h.Get("X-RateLimit-Remaining") == "0" {
		if reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
			if d := time.Unix(reset, 0).Sub(now); d > 0 {
				return d
			}
		}
	}
	return 0
}
