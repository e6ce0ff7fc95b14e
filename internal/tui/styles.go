package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marcin-skalski/workflow-monitor/internal/snapshot"
)

var (
	// Bucket colors
	colorCIFailing = lipgloss.Color("196") // red
	colorChanges   = lipgloss.Color("208") // orange-red
	colorMergeable = lipgloss.Color("46")  // green
	colorInReview  = lipgloss.Color("214") // orange
	colorOpen      = lipgloss.Color("33")  // blue
	colorMuted     = lipgloss.Color("240") // gray

	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingLeft(1).
			PaddingRight(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginTop(1).
			MarginBottom(0)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			PaddingLeft(1).
			PaddingRight(1)

	selectedTabStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Background(lipgloss.Color("237")).
				PaddingLeft(1).
				PaddingRight(1)

	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCIFailing)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)
)

func bucketTitle(b snapshot.Bucket) string {
	switch b {
	case snapshot.BucketCIFailing:
		return "🔨 CI failing"
	case snapshot.BucketChangesRequested:
		return "🔧 Changes requested"
	case snapshot.BucketMergeable:
		return "✅ Mergeable"
	case snapshot.BucketInReview:
		return "📋 In review"
	default:
		return "📝 Open"
	}
}

func bucketColor(b snapshot.Bucket) lipgloss.Color {
	switch b {
	case snapshot.BucketCIFailing:
		return colorCIFailing
	case snapshot.BucketChangesRequested:
		return colorChanges
	case snapshot.BucketMergeable:
		return colorMergeable
	case snapshot.BucketInReview:
		return colorInReview
	default:
		return colorOpen
	}
}

func ciIcon(state snapshot.CIState) string {
	switch state {
	case snapshot.CISuccess:
		return "✓"
	case snapshot.CIFailure:
		return "✗"
	case snapshot.CIRunning:
		return "●"
	default:
		return "?"
	}
}

func ciColor(state snapshot.CIState) lipgloss.Color {
	switch state {
	case snapshot.CISuccess:
		return colorMergeable
	case snapshot.CIFailure:
		return colorCIFailing
	case snapshot.CIRunning:
		return colorOpen
	default:
		return colorMuted
	}
}
