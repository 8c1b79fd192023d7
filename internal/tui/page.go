package tui

import tea "github.com/charmbracelet/bubbletea"

// Page ids the App can navigate between.
const (
	pageDashboard = "dashboard"
	pageHistory   = "history"
)

// Page is one full-screen view of the dashboard client. The App owns the
// terminal dimensions and hands them to View, so pages never track window
// size for rendering themselves.
type Page interface {
	ID() string
	Init() tea.Cmd
	Update(msg tea.Msg) (tea.Cmd, *PageNav)
	View(width, height int) string
}

// PageNav is returned from Update to request a switch to another page.
type PageNav struct {
	PageID string
}

func navTo(id string) *PageNav { return &PageNav{PageID: id} }
