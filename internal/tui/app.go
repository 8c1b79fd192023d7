package tui

import tea "github.com/charmbracelet/bubbletea"

// App is the top-level Bubble Tea model: it routes messages to the active
// page and switches pages when one asks for it. The first page given to
// NewApp is shown on startup.
type App struct {
	pages  []Page
	active int
	width  int
	height int
}

func NewApp(pages ...Page) *App {
	return &App{pages: pages}
}

func (a *App) Init() tea.Cmd {
	if len(a.pages) == 0 {
		return nil
	}
	return a.pages[a.active].Init()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if len(a.pages) == 0 {
		return a, nil
	}

	// Window sizes go to every page so an inactive one is laid out
	// correctly the moment it becomes active.
	if wsm, ok := msg.(tea.WindowSizeMsg); ok {
		a.width = wsm.Width
		a.height = wsm.Height
		cmds := make([]tea.Cmd, 0, len(a.pages))
		for _, p := range a.pages {
			cmd, _ := p.Update(msg)
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)
	}

	cmd, nav := a.pages[a.active].Update(msg)
	if nav == nil {
		return a, cmd
	}

	for i, p := range a.pages {
		if p.ID() != nav.PageID || i == a.active {
			continue
		}
		a.active = i
		// Entering a page re-runs its Init so it starts from fresh data.
		return a, tea.Batch(cmd, p.Init())
	}
	return a, cmd
}

func (a *App) View() string {
	if len(a.pages) == 0 {
		return ""
	}
	return a.pages[a.active].View(a.width, a.height)
}
