package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type SnapshotProvider interface {
	GetSnapshot() Snapshot
	// RequestRefresh asks for an immediate out-of-schedule poll.
	RequestRefresh()
}

type Model struct {
	provider        SnapshotProvider
	snapshot        Snapshot
	refreshInterval time.Duration
	selected        int
	width           int
}

type tickMsg time.Time

func NewModel(provider SnapshotProvider, refreshInterval time.Duration) Model {
	return Model{
		provider:        provider,
		snapshot:        provider.GetSnapshot(),
		refreshInterval: refreshInterval,
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd(m.refreshInterval)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.provider.RequestRefresh()
			m.snapshot = m.provider.GetSnapshot()
		case "tab", "right", "l", "down", "j":
			if n := len(m.snapshot.Targets); n > 0 {
				m.selected = (m.selected + 1) % n
			}
		case "shift+tab", "left", "h", "up", "k":
			if n := len(m.snapshot.Targets); n > 0 {
				m.selected = (m.selected - 1 + n) % n
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.snapshot = m.provider.GetSnapshot()
		// Targets come from config and do not change, but clamp anyway.
		if m.selected >= len(m.snapshot.Targets) {
			m.selected = max(0, len(m.snapshot.Targets)-1)
		}
		return m, tickCmd(m.refreshInterval)
	}

	return m, nil
}

func (m Model) View() string {
	return renderView(m.snapshot, m.selected, m.width)
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
