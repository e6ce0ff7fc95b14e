package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/marcin-skalski/workflow-monitor/internal/github"
)

const (
	shortSHALen = 7
	ghostAuthor = "ghost"
)

type Querier interface {
	QuerySnapshot(ctx context.Context, owner, name string, pr int) (*github.Repository, error)
}

// Fetcher turns one GitHub query into a Snapshot. It performs exactly one
// upstream call per Fetch and never retries.
type Fetcher struct {
	gh     Querier
	logger *slog.Logger
	now    func() time.Time
}

func NewFetcher(gh Querier, logger *slog.Logger) *Fetcher {
	return &Fetcher{gh: gh, logger: logger, now: time.Now}
}

// Fetch builds the snapshot for repo ("owner/name"). pr <= 0 means
// board-only.
func (f *Fetcher) Fetch(ctx context.Context, repo string, pr int) (*Snapshot, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}

	data, err := f.gh.QuerySnapshot(ctx, owner, name, pr)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", repo, err)
	}

	if pr > 0 && data.PullRequest == nil {
		f.logger.Warn("focused PR missing from response", "repo", repo, "pr", pr)
	}

	return Assemble(data, owner, name, pr, f.now()), nil
}

// Assemble maps a raw repository response into a Snapshot generated at now.
func Assemble(data *github.Repository, owner, name string, pr int, now time.Time) *Snapshot {
	snap := &Snapshot{
		Repo:         owner + "/" + name,
		BoardGroups:  newBoardGroups(),
		Commits:      Commits{Items: []CommitRow{}},
		ChecksRollup: ChecksRollup{TopFailing: []FailingCheck{}},
		LastUpdated:  now.UTC(),
	}
	if pr > 0 {
		snap.FocusedPR = &pr
	}

	for _, p := range data.PullRequests.Nodes {
		card := prCard(p, now)
		snap.BoardGroups.add(Classify(card.CIState, card.Mergeable, card.ReviewDecision), card)
	}

	focused := data.PullRequest
	if focused == nil {
		return snap
	}

	nodes := focused.Commits.Nodes
	rows := make([]CommitRow, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, commitRow(n.Commit, owner, name, now))
	}
	// Nodes are newest-first; the board lists oldest at the top.
	slices.Reverse(rows)
	snap.Commits = Commits{Count: focused.Commits.TotalCount, Items: rows}

	if len(nodes) > 0 {
		// The rollup belongs to the newest commit, shown last.
		latest := nodes[0].Commit
		var contexts []github.CheckContext
		if latest.StatusCheckRollup != nil {
			contexts = latest.StatusCheckRollup.Contexts.Nodes
		}
		snap.ChecksRollup = CalculateRollup(Canonicalize(contexts), focused.URL)
	}

	return snap
}

func prCard(p github.PullRequest, now time.Time) PRCard {
	author := ghostAuthor
	if p.Author != nil && p.Author.Login != "" {
		author = p.Author.Login
	}
	review := p.ReviewDecision
	if review == "" {
		review = ReviewNone
	}
	return PRCard{
		Number:         p.Number,
		Title:          p.Title,
		URL:            p.URL,
		Author:         author,
		Head:           p.HeadRefName,
		Base:           p.BaseRefName,
		UpdatedAt:      p.UpdatedAt,
		UpdatedRel:     RelativeTime(p.UpdatedAt, now),
		CIState:        MapCIState(p.HeadRollupState()),
		Mergeable:      p.Mergeable == "MERGEABLE",
		ReviewDecision: review,
	}
}

func commitRow(c github.Commit, owner, name string, now time.Time) CommitRow {
	short := c.OID
	if len(short) > shortSHALen {
		short = short[:shortSHALen]
	}
	state := ""
	if c.StatusCheckRollup != nil {
		state = c.StatusCheckRollup.State
	}
	return CommitRow{
		SHA:       c.OID,
		ShortSHA:  short,
		Title:     c.MessageHeadline,
		Author:    commitAuthor(c.Author),
		TimeRel:   RelativeTime(c.CommittedDate, now),
		CIState:   MapCIState(state),
		CommitURL: fmt.Sprintf("https://github.com/%s/%s/commit/%s", owner, name, c.OID),
	}
}

// commitAuthor prefers the linked account login over the raw git name.
func commitAuthor(a *github.CommitAuthor) string {
	if a == nil {
		return ghostAuthor
	}
	if a.User != nil && a.User.Login != "" {
		return a.User.Login
	}
	return a.Name
}
