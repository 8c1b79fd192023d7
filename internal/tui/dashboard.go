package tui

import (
	"context"
	"strings"
	"time"

	"github.com/sendwren/wren/internal/model"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Section identifies the focusable dashboard areas.
type Section int

const (
	SectionAccounts Section = iota
	SectionNotifications
	SectionActivity
	sectionCount
)

// TickMsg drives the periodic data refresh.
type TickMsg time.Time

type tickDataLoadedMsg struct {
	accounts  []model.AccountStatus
	notes     []model.Notification
	active    *model.CampaignSnapshot
	history   []model.CampaignSummary
	activity  []model.Transition
	lastError string // first fetch error encountered during this tick
}

// commandDoneMsg reports the outcome of an issued command.
type commandDoneMsg struct {
	op  string
	err error
}

const (
	activityLimit    = 20
	throughputWindow = 40
	commandTimeout   = 30 * time.Second
)

// DashboardModel is the main dashboard page: the merged account list, live
// pairing codes, campaign progress and the notification feed, refreshed from
// the service on a fixed interval.
type DashboardModel struct {
	api            model.ReadAPI
	updateInterval time.Duration
	keys           KeyMap

	width  int
	height int

	accounts []model.AccountStatus
	notes    []model.Notification
	active   *model.CampaignSnapshot
	history  []model.CampaignSummary
	activity []model.Transition

	// Send throughput samples, one per refresh tick, derived from the delta
	// of finished sends between consecutive snapshots of the same campaign.
	throughput   []float64
	lastCampaign string
	lastDone     int64

	activeSection Section
	selected      int
	noteSelected  int

	spin      spinner.Model
	sendBar   progress.Model
	nameInput textinput.Model

	prompting    bool
	helpVisible  bool
	lastError    string
	tickInFlight bool
}

// NewDashboardModel creates the dashboard page backed by the given API.
func NewDashboardModel(api model.ReadAPI, updateInterval time.Duration) *DashboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorWarning)

	in := textinput.New()
	in.Placeholder = "account name"
	in.CharLimit = 64
	in.Width = 32

	return &DashboardModel{
		api:            api,
		updateInterval: updateInterval,
		keys:           DefaultKeyMap(),
		spin:           sp,
		sendBar:        progress.New(progress.WithDefaultGradient()),
		nameInput:      in,
	}
}

func (m *DashboardModel) ID() string { return pageDashboard }

func (m *DashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchCmd(),
		m.spin.Tick,
		m.scheduleTick(),
	)
}

func (m *DashboardModel) scheduleTick() tea.Cmd {
	return tea.Tick(m.updateInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchCmd loads all dashboard data in one async command. Partial results
// are still applied; the first error is surfaced on the status line.
func (m *DashboardModel) fetchCmd() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		var loaded tickDataLoadedMsg
		record := func(err error) {
			if err != nil && loaded.lastError == "" {
				loaded.lastError = err.Error()
			}
		}

		accounts, err := api.Accounts()
		record(err)
		loaded.accounts = accounts

		notes, err := api.Notifications()
		record(err)
		loaded.notes = notes

		active, err := api.ActiveCampaign()
		record(err)
		loaded.active = active

		history, err := api.CampaignHistory()
		record(err)
		loaded.history = history

		activity, err := api.RecentActivity(activityLimit)
		record(err)
		loaded.activity = activity

		return loaded
	}
}

func (m *DashboardModel) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.sendBar.Width = m.width/2 - 8
		return nil, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return cmd, nil

	case TickMsg:
		if m.tickInFlight {
			return m.scheduleTick(), nil
		}
		m.tickInFlight = true
		return tea.Batch(m.fetchCmd(), m.scheduleTick()), nil

	case tickDataLoadedMsg:
		m.tickInFlight = false
		m.applyTickData(msg)
		return nil, nil

	case commandDoneMsg:
		if msg.err != nil {
			m.lastError = msg.op + ": " + msg.err.Error()
			return nil, nil
		}
		m.lastError = ""
		// Pull fresh data right away so the optimistic overlay shows up.
		return m.fetchCmd(), nil
	}

	return nil, nil
}

func (m *DashboardModel) applyTickData(msg tickDataLoadedMsg) {
	m.accounts = msg.accounts
	m.notes = msg.notes
	m.active = msg.active
	m.history = msg.history
	m.activity = msg.activity
	m.lastError = msg.lastError

	m.recordThroughput(msg.active)

	if m.selected >= len(m.accounts) {
		m.selected = len(m.accounts) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	if m.noteSelected >= len(m.notes) {
		m.noteSelected = len(m.notes) - 1
	}
	if m.noteSelected < 0 {
		m.noteSelected = 0
	}
}

// recordThroughput appends one sends-per-tick sample. Samples only pair up
// within the same campaign; a new campaign resets the window.
func (m *DashboardModel) recordThroughput(active *model.CampaignSnapshot) {
	if active == nil {
		m.throughput = nil
		m.lastCampaign = ""
		m.lastDone = 0
		return
	}
	done := active.Progress.Done()
	if active.CampaignID == m.lastCampaign {
		delta := done - m.lastDone
		if delta < 0 {
			delta = 0
		}
		m.throughput = append(m.throughput, float64(delta))
		if len(m.throughput) > throughputWindow {
			m.throughput = m.throughput[len(m.throughput)-throughputWindow:]
		}
	} else {
		m.throughput = nil
	}
	m.lastCampaign = active.CampaignID
	m.lastDone = done
}

func (m *DashboardModel) handleKeyPress(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	if m.prompting {
		switch {
		case key.Matches(msg, m.keys.Enter):
			name := strings.TrimSpace(m.nameInput.Value())
			m.prompting = false
			if name == "" {
				return nil, nil
			}
			return m.commandCmd("connect", func(ctx context.Context) error {
				_, err := m.api.Connect(ctx, name)
				return err
			}), nil
		case key.Matches(msg, m.keys.Escape):
			m.prompting = false
			return nil, nil
		default:
			var cmd tea.Cmd
			m.nameInput, cmd = m.nameInput.Update(msg)
			return cmd, nil
		}
	}

	switch {
	case key.Matches(msg, m.keys.ForceQuit), key.Matches(msg, m.keys.Quit):
		return tea.Quit, nil

	case key.Matches(msg, m.keys.Help):
		m.helpVisible = !m.helpVisible

	case key.Matches(msg, m.keys.History):
		return nil, navTo(pageHistory)

	case key.Matches(msg, m.keys.Escape):
		if m.helpVisible {
			m.helpVisible = false
			return nil, nil
		}
		m.lastError = ""
		if st, ok := m.selectedAccount(); ok && st.PairingCode != "" {
			id := st.Account.ID
			return m.commandCmd("dismiss pairing", func(context.Context) error {
				return m.api.DismissPairing(id)
			}), nil
		}

	case key.Matches(msg, m.keys.Up):
		m.move(-1)

	case key.Matches(msg, m.keys.Down):
		m.move(1)

	case key.Matches(msg, m.keys.NextSection):
		m.activeSection = (m.activeSection + 1) % sectionCount

	case key.Matches(msg, m.keys.PrevSection):
		m.activeSection = (m.activeSection + sectionCount - 1) % sectionCount

	case key.Matches(msg, m.keys.NewAccount):
		m.prompting = true
		m.nameInput.Reset()
		return m.nameInput.Focus(), nil

	case key.Matches(msg, m.keys.Reconnect):
		if st, ok := m.selectedAccount(); ok {
			id := st.Account.ID
			return m.commandCmd("reconnect", func(ctx context.Context) error {
				return m.api.Reconnect(ctx, id)
			}), nil
		}

	case key.Matches(msg, m.keys.Disconnect):
		if st, ok := m.selectedAccount(); ok {
			id := st.Account.ID
			return m.commandCmd("disconnect", func(ctx context.Context) error {
				return m.api.Disconnect(ctx, id)
			}), nil
		}

	case key.Matches(msg, m.keys.Delete):
		if st, ok := m.selectedAccount(); ok {
			id := st.Account.ID
			return m.commandCmd("delete", func(ctx context.Context) error {
				return m.api.Delete(ctx, id)
			}), nil
		}

	case key.Matches(msg, m.keys.DismissNote):
		if m.activeSection == SectionNotifications && m.noteSelected < len(m.notes) {
			id := m.notes[m.noteSelected].ID
			return m.commandCmd("dismiss", func(context.Context) error {
				m.api.DismissNotification(id)
				return nil
			}), nil
		}
	}

	return nil, nil
}

func (m *DashboardModel) move(delta int) {
	switch m.activeSection {
	case SectionAccounts:
		m.selected = clamp(m.selected+delta, 0, len(m.accounts)-1)
	case SectionNotifications:
		m.noteSelected = clamp(m.noteSelected+delta, 0, len(m.notes)-1)
	}
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (m *DashboardModel) selectedAccount() (model.AccountStatus, bool) {
	if m.selected < 0 || m.selected >= len(m.accounts) {
		return model.AccountStatus{}, false
	}
	return m.accounts[m.selected], true
}

func (m *DashboardModel) commandCmd(op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return commandDoneMsg{op: op, err: fn(ctx)}
	}
}
