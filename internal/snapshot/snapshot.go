// Package snapshot builds the denormalized dashboard document for one
// repository: the PR board, the focused PR's commits and its checks rollup.
package snapshot

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

type CIState string

const (
	CISuccess CIState = "success"
	CIFailure CIState = "failure"
	CIRunning CIState = "running"
	CIUnknown CIState = "unknown"
)

type Snapshot struct {
	Repo         string       `json:"repo"`
	FocusedPR    *int         `json:"focused_pr"`
	BoardGroups  BoardGroups  `json:"board_groups"`
	Commits      Commits      `json:"commits"`
	ChecksRollup ChecksRollup `json:"checks_rollup"`
	LastUpdated  time.Time    `json:"last_updated_iso"`
	Cached       bool         `json:"cached"`
	CachedAt     *time.Time   `json:"cached_at,omitempty"`
}

type BoardGroups struct {
	Open             []PRCard `json:"open"`
	InReview         []PRCard `json:"in_review"`
	ChangesRequested []PRCard `json:"changes_req"`
	CIFailing        []PRCard `json:"ci_failing"`
	Mergeable        []PRCard `json:"mergeable"`
}

type PRCard struct {
	Number         int       `json:"pr"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Author         string    `json:"author"`
	Head           string    `json:"head"`
	Base           string    `json:"base"`
	UpdatedAt      time.Time `json:"updated_at"`
	UpdatedRel     string    `json:"updated_rel"`
	CIState        CIState   `json:"ci_state"`
	Mergeable      bool      `json:"mergeable"`
	ReviewDecision string    `json:"review_decision"`
}

type Commits struct {
	Count int         `json:"count"`
	Items []CommitRow `json:"items"`
}

type CommitRow struct {
	SHA       string  `json:"sha"`
	ShortSHA  string  `json:"short_sha"`
	Title     string  `json:"title"`
	Author    string  `json:"author"`
	TimeRel   string  `json:"time_rel"`
	CIState   CIState `json:"ci_state"`
	CommitURL string  `json:"commit_url"`
}

type ChecksRollup struct {
	Passed     int            `json:"passed"`
	Failed     int            `json:"failed"`
	Running    int            `json:"running"`
	TopFailing []FailingCheck `json:"top_failing"`
	PRURL      string         `json:"pr_url"`
}

type FailingCheck struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func newBoardGroups() BoardGroups {
	return BoardGroups{
		Open:             []PRCard{},
		InReview:         []PRCard{},
		ChangesRequested: []PRCard{},
		CIFailing:        []PRCard{},
		Mergeable:        []PRCard{},
	}
}

func (g *BoardGroups) add(b Bucket, card PRCard) {
	switch b {
	case BucketCIFailing:
		g.CIFailing = append(g.CIFailing, card)
	case BucketChangesRequested:
		g.ChangesRequested = append(g.ChangesRequested, card)
	case BucketMergeable:
		g.Mergeable = append(g.Mergeable, card)
	case BucketInReview:
		g.InReview = append(g.InReview, card)
	default:
		g.Open = append(g.Open, card)
	}
}

// Bucket returns the cards classified into b.
func (g BoardGroups) Bucket(b Bucket) []PRCard {
	switch b {
	case BucketCIFailing:
		return g.CIFailing
	case BucketChangesRequested:
		return g.ChangesRequested
	case BucketMergeable:
		return g.Mergeable
	case BucketInReview:
		return g.InReview
	default:
		return g.Open
	}
}

func (g BoardGroups) Total() int {
	return len(g.Open) + len(g.InReview) + len(g.ChangesRequested) + len(g.CIFailing) + len(g.Mergeable)
}

// Clone returns a deep copy; the copy shares no slices with s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	if s.FocusedPR != nil {
		pr := *s.FocusedPR
		c.FocusedPR = &pr
	}
	if s.CachedAt != nil {
		at := *s.CachedAt
		c.CachedAt = &at
	}
	c.BoardGroups = BoardGroups{
		Open:             slices.Clone(s.BoardGroups.Open),
		InReview:         slices.Clone(s.BoardGroups.InReview),
		ChangesRequested: slices.Clone(s.BoardGroups.ChangesRequested),
		CIFailing:        slices.Clone(s.BoardGroups.CIFailing),
		Mergeable:        slices.Clone(s.BoardGroups.Mergeable),
	}
	c.Commits.Items = slices.Clone(s.Commits.Items)
	c.ChecksRollup.TopFailing = slices.Clone(s.ChecksRollup.TopFailing)
	return &c
}

var ErrInvalidRepo = errors.New("repository must be in owner/name form")

// SplitRepo splits "owner/name".
func SplitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(repo), "/")
	if !ok || owner == "" || name == "" || strings.ContainsAny(name, "/ ") || strings.Contains(owner, " ") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepo, repo)
	}
	return owner, name, nil
}
