package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/marcin-skalski/workflow-monitor/internal/snapshot"
)

const (
	defaultTitleWidth = 60
	minTitleWidth     = 20
	// Room taken by the PR number, author and age columns.
	rowChrome = 40
)

func renderView(snap Snapshot, selected, width int) string {
	var b strings.Builder

	// Header
	prCount := 0
	for _, t := range snap.Targets {
		if t.Snapshot != nil {
			prCount += t.Snapshot.BoardGroups.Total()
		}
	}
	header := fmt.Sprintf("workflow-monitor │ %d targets │ %d PRs", len(snap.Targets), prCount)
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	if len(snap.Targets) == 0 {
		b.WriteString(emptyStyle.Render("  (no repos configured under watch)"))
		b.WriteString("\n")
	} else {
		selected = min(max(selected, 0), len(snap.Targets)-1)
		b.WriteString(renderTabs(snap.Targets, selected))
		b.WriteString("\n")
		b.WriteString(renderTarget(snap.Targets[selected], snap.Timestamp, titleWidth(width)))
	}

	// Footer
	footer := fmt.Sprintf("Last updated: %s │ q:quit r:refresh tab:next",
		snap.Timestamp.Format("15:04:05"))
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}

func titleWidth(width int) int {
	if width <= 0 {
		return defaultTitleWidth
	}
	return max(minTitleWidth, width-rowChrome)
}

func renderTabs(targets []TargetState, selected int) string {
	tabs := make([]string, 0, len(targets))
	for i, t := range targets {
		label := t.Label()
		if t.LastError != "" {
			label += " ⚠"
		}
		if i == selected {
			tabs = append(tabs, selectedTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func renderTarget(t TargetState, now time.Time, width int) string {
	var b strings.Builder

	if t.LastError != "" {
		line := fmt.Sprintf("  ⚠ %s: %s", t.ErrorCode, t.LastError)
		if !t.NextPoll.IsZero() && t.NextPoll.After(now) {
			line += fmt.Sprintf(" (retry in %s)", formatDuration(t.NextPoll.Sub(now)))
		}
		b.WriteString(errorStyle.Render(line))
		b.WriteString("\n")
	}

	if t.Snapshot == nil {
		b.WriteString(emptyStyle.Render("  (waiting for first poll)"))
		b.WriteString("\n")
		return b.String()
	}

	s := t.Snapshot
	b.WriteString(sectionStyle.Render(fmt.Sprintf("📦 Board (%d open PRs)", s.BoardGroups.Total())))
	b.WriteString("\n")
	b.WriteString(renderBoard(s.BoardGroups, width))

	if s.FocusedPR != nil {
		b.WriteString(sectionStyle.Render(fmt.Sprintf("🧾 Commits on #%d (%d)", *s.FocusedPR, s.Commits.Count)))
		b.WriteString("\n")
		b.WriteString(renderCommits(s.Commits, width))

		b.WriteString(sectionStyle.Render("🔍 Checks"))
		b.WriteString("\n")
		b.WriteString(renderChecks(s.ChecksRollup))
	}

	if !t.LastPolled.IsZero() {
		status := "fresh"
		if s.Cached {
			status = "cached"
		}
		b.WriteString(emptyStyle.Render(fmt.Sprintf("  polled %s ago (%s)", formatDuration(now.Sub(t.LastPolled)), status)))
		b.WriteString("\n")
	}

	return b.String()
}

func renderBoard(g snapshot.BoardGroups, width int) string {
	var b strings.Builder
	for _, bucket := range snapshot.Buckets {
		cards := g.Bucket(bucket)
		title := fmt.Sprintf("%s (%d)", bucketTitle(bucket), len(cards))
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(bucketColor(bucket)).Render(title))
		b.WriteString("\n")

		if len(cards) == 0 {
			b.WriteString(emptyStyle.Render("   (none)"))
			b.WriteString("\n")
			continue
		}

		for i, card := range cards {
			prefix := "├─"
			if i == len(cards)-1 {
				prefix = "└─"
			}
			icon := lipgloss.NewStyle().Foreground(ciColor(card.CIState)).Render(ciIcon(card.CIState))
			line := fmt.Sprintf(" %s #%d %s  @%s  %s",
				prefix, card.Number, truncate(card.Title, width), card.Author, card.UpdatedRel)
			b.WriteString(rowStyle.Render(line))
			b.WriteString(" ")
			b.WriteString(icon)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderCommits(c snapshot.Commits, width int) string {
	if len(c.Items) == 0 {
		return emptyStyle.Render("   (no commits)") + "\n"
	}

	var b strings.Builder
	for _, row := range c.Items {
		icon := lipgloss.NewStyle().Foreground(ciColor(row.CIState)).Render(ciIcon(row.CIState))
		line := fmt.Sprintf(" %s %s  %s, %s", row.ShortSHA, truncate(row.Title, width), row.Author, row.TimeRel)
		b.WriteString(" ")
		b.WriteString(icon)
		b.WriteString(rowStyle.Render(line))
		b.WriteString("\n")
	}
	if hidden := c.Count - len(c.Items); hidden > 0 {
		b.WriteString(emptyStyle.Render(fmt.Sprintf("   … %d older commits not shown", hidden)))
		b.WriteString("\n")
	}
	return b.String()
}

func renderChecks(r snapshot.ChecksRollup) string {
	var b strings.Builder
	summary := fmt.Sprintf("   %s passed │ %s failed │ %s running",
		lipgloss.NewStyle().Foreground(colorMergeable).Render(fmt.Sprint(r.Passed)),
		lipgloss.NewStyle().Foreground(colorCIFailing).Render(fmt.Sprint(r.Failed)),
		lipgloss.NewStyle().Foreground(colorOpen).Render(fmt.Sprint(r.Running)))
	b.WriteString(summary)
	b.WriteString("\n")

	for _, f := range r.TopFailing {
		b.WriteString(errorStyle.Render("   ✗ " + f.Name))
		if f.URL != "" {
			b.WriteString(emptyStyle.Render("  " + f.URL))
		}
		b.WriteString("\n")
	}
	if more := r.Failed - len(r.TopFailing); more > 0 {
		b.WriteString(emptyStyle.Render(fmt.Sprintf("   … and %d more failing", more)))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		return runewidth.Truncate(s, width, "...")
	}
	return s
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
