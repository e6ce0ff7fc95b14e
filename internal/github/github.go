package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultEndpoint = "https://api.github.com/graphql"
	DefaultTimeout  = 30 * time.Second

	// Page sizes are fixed; the snapshot never paginates.
	PullRequestPageSize = 50
	CommitPageSize      = 50
	CheckContextPage    = 20

	maxResponseBytes = 16 << 20
	userAgent        = "workflow-monitor"
)

type Options struct {
	Endpoint string
	Timeout  time.Duration
	// HTTPClient is used as the base transport under the bearer token.
	HTTPClient *http.Client
}

type Client struct {
	endpoint string
	hasToken bool
	http     *http.Client
	logger   *slog.Logger
}

// NewClient never fails on an empty token: the missing credential is
// reported by every QuerySnapshot call before any network I/O happens.
func NewClient(token string, opts Options, logger *slog.Logger) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	token = strings.TrimSpace(token)
	c := &Client{
		endpoint: opts.Endpoint,
		hasToken: token != "",
		logger:   logger,
	}
	if !c.hasToken {
		return c
	}

	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	c.http = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	c.http.Timeout = opts.Timeout
	return c
}

const snapshotQuery = `query($owner: String!, $name: String!, $prNumber: Int!, $hasPr: Boolean!) {
  repository(owner: $owner, name: $name) {
    pullRequests(states: OPEN, first: 50, orderBy: {field: UPDATED_AT, direction: DESC}) {
      nodes {
        number
        title
        url
        author { login }
        headRefName
        baseRefName
        updatedAt
        mergeable
        reviewDecision
        commits(last: 1) {
          nodes {
            commit {
              statusCheckRollup { state }
            }
          }
        }
      }
    }
    pullRequest(number: $prNumber) @include(if: $hasPr) {
      number
      url
      commits(last: 50) {
        totalCount
        nodes {
          commit {
            oid
            messageHeadline
            committedDate
            author {
              name
              user { login }
            }
            statusCheckRollup {
              state
              contexts(first: 20) {
                nodes {
                  __typename
                  ... on CheckRun {
                    name
                    status
                    conclusion
                    detailsUrl
                  }
                  ... on StatusContext {
                    context
                    state
                    targetUrl
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   *queryData     `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type queryData struct {
	Repository *Repository `json:"repository"`
}

type graphQLError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Path    []any  `json:"path"`
}

// QuerySnapshot runs the combined open-PR and focused-PR query in a single
// round trip. pr <= 0 skips the focused part. It never retries.
func (c *Client) QuerySnapshot(ctx context.Context, owner, name string, pr int) (*Repository, error) {
	if !c.hasToken {
		return nil, ErrMissingToken
	}

	body, err := json.Marshal(graphQLRequest{
		Query: snapshotQuery,
		Variables: map[string]any{
			"owner":    owner,
			"name":     name,
			"prNumber": max(pr, 0),
			"hasPr":    pr > 0,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	c.logger.Debug("graphql", "owner", owner, "name", name, "pr", pr)
	out, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}

	var resp graphQLResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("parse graphql response: %w", err)
	}

	repo, err := c.interpret(&resp, owner, name)
	if err != nil {
		return nil, err
	}
	if repo.PullRequest != nil {
		slices.Reverse(repo.PullRequest.Commits.Nodes)
	}
	return repo, nil
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request: %w", err)
	}
	defer res.Body.Close()

	out, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read graphql response: %w", err)
	}

	if res.StatusCode == http.StatusOK {
		return out, nil
	}
	return nil, statusError(res, out)
}

func statusError(res *http.Response, body []byte) error {
	msg := errorMessage(body)
	switch {
	case res.StatusCode == http.StatusUnauthorized || isBadCredentials(msg):
		return fmt.Errorf("%w: %s", ErrInvalidToken, msg)
	case res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Status:     res.StatusCode,
			Message:    msg,
			RetryAfter: retryAfter(res.Header, time.Now()),
		}
	default:
		return &APIError{Status: res.StatusCode, Message: msg}
	}
}

func (c *Client) interpret(resp *graphQLResponse, owner, name string) (*Repository, error) {
	for _, e := range resp.Errors {
		switch {
		case strings.EqualFold(e.Type, "RATE_LIMITED"):
			return nil, &RateLimitError{Status: http.StatusOK, Message: e.Message}
		case isBadCredentials(e.Message):
			return nil, fmt.Errorf("%w: %s", ErrInvalidToken, e.Message)
		case strings.EqualFold(e.Type, "NOT_FOUND") && pathIs(e.Path, "repository"):
			return nil, fmt.Errorf("%w: %s/%s", ErrRepositoryNotFound, owner, name)
		case strings.EqualFold(e.Type, "NOT_FOUND") && pathIs(e.Path, "repository", "pullRequest"):
			// Focused PR does not exist; the board is still valid.
			c.logger.Warn("focused pull request not found", "repo", owner+"/"+name, "err", e.Message)
		default:
			if resp.Data == nil || resp.Data.Repository == nil {
				return nil, &APIError{Status: http.StatusOK, Message: e.Message}
			}
			c.logger.Warn("graphql partial error", "repo", owner+"/"+name, "type", e.Type, "err", e.Message)
		}
	}

	if resp.Data == nil || resp.Data.Repository == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrRepositoryNotFound, owner, name)
	}
	return resp.Data.Repository, nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func isBadCredentials(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "bad credentials")
}

func pathIs(path []any, want ...string) bool {
	if len(path) != len(want) {
		return false
	}
	for i, p := range path {
		s, ok := p.(string)
		if !ok || s != want[i] {
			return false
		}
	}
	return true
}
