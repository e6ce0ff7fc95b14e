package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/marcin-skalski/workflow-monitor/internal/monitor"
	"github.com/marcin-skalski/workflow-monitor/internal/snapshot"
)

var (
	snapshotRepo string
	snapshotPR   int
	snapshotJSON bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch one snapshot and print it",
	Long: `Fetch the board for a repository (and the commits and checks of one PR
when --pr is given) and print it once.

Examples:
  workflow-monitor snapshot --repo octocat/Hello-World
  workflow-monitor snapshot --repo octocat/Hello-World --pr 1347 --json`,
	RunE: runSnapshot,
}

func init() {
	f := snapshotCmd.Flags()
	f.StringVar(&snapshotRepo, "repo", "", "Repository as owner/name (default: default_repo from config)")
	f.IntVar(&snapshotPR, "pr", 0, "Pull request to focus on")
	f.BoolVar(&snapshotJSON, "json", false, "Print the snapshot as JSON")
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snap, err := a.svc.Snapshot(ctx, monitor.Request{Repo: snapshotRepo, PR: snapshotPR})
	if err != nil {
		return fmt.Errorf("%s: %s", monitor.CodeOf(err), monitor.PublicMessage(err))
	}

	out := cmd.OutOrStdout()
	if snapshotJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	printSnapshot(out, snap)
	return nil
}

var bucketTitles = map[snapshot.Bucket]string{
	snapshot.BucketOpen:             "Open",
	snapshot.BucketInReview:         "In review",
	snapshot.BucketChangesRequested: "Changes requested",
	snapshot.BucketCIFailing:        "CI failing",
	snapshot.BucketMergeable:        "Mergeable",
}

func bucketColor(b snapshot.Bucket) *color.Color {
	switch b {
	case snapshot.BucketCIFailing:
		return color.New(color.FgRed, color.Bold)
	case snapshot.BucketChangesRequested:
		return color.New(color.FgMagenta, color.Bold)
	case snapshot.BucketMergeable:
		return color.New(color.FgGreen, color.Bold)
	case snapshot.BucketInReview:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgBlue, color.Bold)
	}
}

func ciMark(s snapshot.CIState) string {
	switch s {
	case snapshot.CISuccess:
		return color.GreenString("✓")
	case snapshot.CIFailure:
		return color.RedString("✗")
	case snapshot.CIRunning:
		return color.YellowString("●")
	default:
		return color.New(color.Faint).Sprint("?")
	}
}

func printSnapshot(w io.Writer, s *snapshot.Snapshot) {
	faint := color.New(color.Faint)
	bold := color.New(color.Bold)

	bold.Fprintf(w, "%s", s.Repo)
	fmt.Fprintf(w, "  %d open PRs", s.BoardGroups.Total())
	if s.Cached {
		faint.Fprintf(w, "  (cached)")
	}
	fmt.Fprintln(w)

	for _, b := range snapshot.Buckets {
		cards := s.BoardGroups.Bucket(b)
		fmt.Fprintln(w)
		bucketColor(b).Fprintf(w, "%s (%d)\n", bucketTitles[b], len(cards))
		for _, c := range cards {
			fmt.Fprintf(w, "  %s #%d %s ", ciMark(c.CIState), c.Number, c.Title)
			faint.Fprintf(w, "@%s, %s\n", c.Author, c.UpdatedRel)
		}
	}

	if s.FocusedPR == nil {
		return
	}

	fmt.Fprintln(w)
	bold.Fprintf(w, "Commits on #%d (%d)\n", *s.FocusedPR, s.Commits.Count)
	for _, c := range s.Commits.Items {
		fmt.Fprintf(w, "  %s %s %s ", ciMark(c.CIState), c.ShortSHA, c.Title)
		faint.Fprintf(w, "%s, %s\n", c.Author, c.TimeRel)
	}

	r := s.ChecksRollup
	fmt.Fprintln(w)
	bold.Fprintln(w, "Checks")
	fmt.Fprintf(w, "  %s passed, %s failed, %s running\n",
		color.GreenString("%d", r.Passed),
		color.RedString("%d", r.Failed),
		color.YellowString("%d", r.Running))
	for _, f := range r.TopFailing {
		fmt.Fprintf(w, "  %s %s", color.RedString("✗"), f.Name)
		if f.URL != "" {
			faint.Fprintf(w, "  %s", f.URL)
		}
		fmt.Fprintln(w)
	}
	if r.PRURL != "" {
		faint.Fprintf(w, "  %s\n", r.PRURL)
	}
}
