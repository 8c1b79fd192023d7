package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sendwren/wren/internal/model"
)

type historyLoadedMsg struct {
	campaigns []model.CampaignSummary
	err       error
}

// HistoryModel is the campaign history page: every completed campaign with
// its final counters, newest first. Entered from the dashboard with "c",
// left with esc.
type HistoryModel struct {
	api  model.ReadAPI
	keys KeyMap

	rows      []model.CampaignSummary
	selected  int
	loaded    bool
	lastError string
}

func NewHistoryModel(api model.ReadAPI) *HistoryModel {
	return &HistoryModel{api: api, keys: DefaultKeyMap()}
}

func (m *HistoryModel) ID() string { return pageHistory }

// Init refetches on every entry, so the page always shows the latest
// completed campaigns.
func (m *HistoryModel) Init() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		rows, err := api.CampaignHistory()
		return historyLoadedMsg{campaigns: rows, err: err}
	}
}

func (m *HistoryModel) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		m.loaded = true
		if msg.err != nil {
			m.lastError = msg.err.Error()
			return nil, nil
		}
		m.lastError = ""
		m.rows = msg.campaigns
		if m.selected >= len(m.rows) {
			m.selected = len(m.rows) - 1
		}
		if m.selected < 0 {
			m.selected = 0
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.ForceQuit), key.Matches(msg, m.keys.Quit):
			return tea.Quit, nil
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.History):
			return nil, navTo(pageDashboard)
		case key.Matches(msg, m.keys.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, m.keys.Down):
			if m.selected < len(m.rows)-1 {
				m.selected++
			}
		}
	}
	return nil, nil
}

func (m *HistoryModel) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return "Loading campaign history..."
	}

	header := renderBranding() + mutedStyle.Render("  campaign history")

	var lines []string
	switch {
	case !m.loaded:
		lines = append(lines, mutedStyle.Render("loading..."))
	case m.lastError != "":
		lines = append(lines, lipgloss.NewStyle().Foreground(ColorError).Render("✗ "+m.lastError))
	case len(m.rows) == 0:
		lines = append(lines, mutedStyle.Render("no completed campaigns"))
	default:
		lines = append(lines, titleStyle.Render("Completed campaigns"))
		for i, c := range m.rows {
			row := fmt.Sprintf("%-24s %-16s sent %-6d failed %-6d of %d",
				truncate(c.Name, 24),
				truncate(c.AccountID, 16),
				c.Final.Sent, c.Final.Failed, c.Final.Total)
			if !c.CompletedAt.IsZero() {
				row += mutedStyle.Render("  " + c.CompletedAt.Format("Jan 02 15:04"))
			}
			if i == m.selected {
				row = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Render("> ") + row
			} else {
				row = "  " + row
			}
			lines = append(lines, row)
		}
	}

	body := sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	footer := statusBarStyle.Width(width).Render(
		mutedStyle.Render("esc back · ↑/k ↓/j select · q quit"))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}
