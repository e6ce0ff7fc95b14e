package github

import (
	"encoding/json"
	"fmt"
	"time"
)

type Repository struct {
	PullRequests struct {
		Nodes []PullRequest `json:"nodes"`
	} `json:"pullRequests"`
	// PullRequest is nil when no focused PR was requested or it does not exist.
	PullRequest *FocusedPullRequest `json:"pullRequest"`
}

type PullRequest struct {
	Number         int       `json:"number"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Author         *Actor    `json:"author"`
	HeadRefName    string    `json:"headRefName"`
	BaseRefName    string    `json:"baseRefName"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Mergeable      string    `json:"mergeable"`
	ReviewDecision string    `json:"reviewDecision"`
	Commits        struct {
		Nodes []CommitNode `json:"nodes"`
	} `json:"commits"`
}

// HeadRollupState is the statusCheckRollup state of the PR's last commit.
func (p PullRequest) HeadRollupState() string {
	if len(p.Commits.Nodes) == 0 {
		return ""
	}
	if r := p.Commits.Nodes[0].Commit.StatusCheckRollup; r != nil {
		return r.State
	}
	return ""
}

type Actor struct {
	Login string `json:"login"`
}

// FocusedPullRequest commits are newest-first: QuerySnapshot reverses the
// chronological page that commits(last: N) returns.
type FocusedPullRequest struct {
	Number  int    `json:"number"`
	URL     string `json:"url"`
	Commits struct {
		TotalCount int          `json:"totalCount"`
		Nodes      []CommitNode `json:"nodes"`
	} `json:"commits"`
}

type CommitNode struct {
	Commit Commit `json:"commit"`
}

type Commit struct {
	OID               string             `json:"oid"`
	MessageHeadline   string             `json:"messageHeadline"`
	CommittedDate     time.Time          `json:"committedDate"`
	Author            *CommitAuthor      `json:"author"`
	StatusCheckRollup *StatusCheckRollup `json:"statusCheckRollup"`
}

type CommitAuthor struct {
	Name string `json:"name"`
	User *Actor `json:"user"`
}

type StatusCheckRollup struct {
	State    string `json:"state"`
	Contexts struct {
		Nodes CheckContexts `json:"nodes"`
	} `json:"contexts"`
}

// CheckContext is one of CheckRun, StatusContext or UnknownContext.
type CheckContext interface {
	checkContext()
}

type CheckRun struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	DetailsURL string `json:"detailsUrl"`
}

type StatusContext struct {
	Context   string `json:"context"`
	State     string `json:"state"`
	TargetURL string `json:"targetUrl"`
}

// UnknownContext keeps every field a context node may carry for typenames
// this client does not know about.
type UnknownContext struct {
	Typename   string `json:"__typename"`
	Name       string `json:"name"`
	Context    string `json:"context"`
	Conclusion string `json:"conclusion"`
	Status     string `json:"status"`
	State      string `json:"state"`
	DetailsURL string `json:"detailsUrl"`
	TargetURL  string `json:"targetUrl"`
}

func (CheckRun) checkContext()       {}
func (StatusContext) checkContext()  {}
func (UnknownContext) checkContext() {}

type CheckContexts []CheckContext

func (cs *CheckContexts) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(CheckContexts, 0, len(raw))
	for i, r := range raw {
		var tag struct {
			Typename string `json:"__typename"`
		}
		if err := json.Unmarshal(r, &tag); err != nil {
			return fmt.Errorf("context %d: %w", i, err)
		}

		var (
			ctx CheckContext
			err error
		)
		switch tag.Typename {
		case "CheckRun":
			var v CheckRun
			err = json.Unmarshal(r, &v)
			ctx = v
		case "StatusContext":
			var v StatusContext
			err = json.Unmarshal(r, &v)
			ctx = v
		default:
			var v UnknownContext
			err = json.Unmarshal(r, &v)
			ctx = v
		}
		if err != nil {
			return fmt.Errorf("context %d (%s): %w", i, tag.Typename, err)
		}
		out = append(out, ctx)
	}

	*cs = out
	return nil
}
