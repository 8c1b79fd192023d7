package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/sendwren/wren/internal/model"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
)

// renderBranding renders "wren" with an accent gradient.
func renderBranding() string {
	colors := []string{
		"#49E209", // w
		"#21D955", // r
		"#00D0A1", // e
		"#00CAC7", // n
	}
	chars := []string{"w", "r", "e", "n"}

	var result string
	for i, char := range chars {
		style := lipgloss.NewStyle().
			Foreground(lipgloss.Color(colors[i])).Bold(true)
		result += style.Render(char)
	}
	return result
}

// View renders the dashboard page.
func (m *DashboardModel) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return "Initializing dashboard..."
	}
	if width < 60 || height < 20 {
		return "Terminal too small. Resize to at least 60x20."
	}

	m.width = width
	m.height = height

	if m.helpVisible {
		return m.renderHelp(width, height)
	}

	header := m.renderHeader(width)
	accounts := m.renderAccounts(width - 4)
	campaign := m.renderCampaign(width - 4)
	notes := m.renderNotifications(width - 4)
	activity := m.renderActivity(width - 4)
	status := m.renderStatusLine(width)

	sections := []string{header, accounts}
	if prompt := m.renderPrompt(); prompt != "" {
		sections = append(sections, prompt)
	}
	if pairing := m.renderPairing(); pairing != "" {
		sections = append(sections, pairing)
	}
	sections = append(sections, campaign, notes, activity, status)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *DashboardModel) renderHeader(width int) string {
	left := renderBranding() + mutedStyle.Render("  session dashboard")
	right := mutedStyle.Render(fmt.Sprintf("%d accounts", len(m.accounts)))
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// stateBadge renders the colored status indicator for one account row.
func (m *DashboardModel) stateBadge(state model.ConnectionState) string {
	switch state {
	case model.StateConnecting:
		return m.spin.View()
	case model.StateReady:
		return lipgloss.NewStyle().Foreground(ColorSuccess).Render("●")
	case model.StateAuthenticated:
		return lipgloss.NewStyle().Foreground(ColorWarning).Render("●")
	case model.StateFailed:
		return lipgloss.NewStyle().Foreground(ColorError).Render("●")
	default:
		return mutedStyle.Render("○")
	}
}

func (m *DashboardModel) renderAccounts(width int) string {
	style := sectionStyle
	if m.activeSection == SectionAccounts {
		style = activeSectionStyle
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Accounts"))
	b.WriteString("\n")

	if len(m.accounts) == 0 {
		b.WriteString(mutedStyle.Render("no accounts — press n to pair one"))
		return style.Width(width).Render(b.String())
	}

	for i, st := range m.accounts {
		badge := m.stateBadge(st.Effective)
		phone := st.Account.PhoneNumber
		if phone == "" {
			phone = "—"
		}
		line := fmt.Sprintf("%s %-20s %-14s %-13s", badge, truncate(st.Account.Name, 20), st.Effective, phone)
		if st.PairingCode != "" {
			line += lipgloss.NewStyle().Foreground(ColorWarning).Render("  code ready")
		}
		if i == m.selected && m.activeSection == SectionAccounts {
			line = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		if i < len(m.accounts)-1 {
			b.WriteString("\n")
		}
	}

	return style.Width(width).Render(b.String())
}

func (m *DashboardModel) renderPrompt() string {
	if !m.prompting {
		return ""
	}
	return sectionStyle.Render("New account name: " + m.nameInput.View())
}

func (m *DashboardModel) renderPairing() string {
	st, ok := m.selectedAccount()
	if !ok || st.PairingCode == "" {
		return ""
	}
	code := pairingCodeStyle.Render(st.PairingCode)
	hint := mutedStyle.Render(fmt.Sprintf("enter this code on the phone paired to %s (esc to cancel)", st.Account.Name))
	return lipgloss.JoinVertical(lipgloss.Left, code, hint)
}

func (m *DashboardModel) renderCampaign(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Campaign"))
	b.WriteString("\n")

	if m.active == nil {
		b.WriteString(mutedStyle.Render("no active campaign"))
		for i, h := range m.history {
			if i >= 3 {
				break
			}
			b.WriteString(fmt.Sprintf("\n  %-20s sent %d/%d, failed %d",
				truncate(h.Name, 20), h.Final.Sent, h.Final.Total, h.Final.Failed))
		}
		return sectionStyle.Width(width).Render(b.String())
	}

	p := m.active.Progress
	frac := 0.0
	if p.Total > 0 {
		frac = float64(p.Done()) / float64(p.Total)
	}
	b.WriteString(fmt.Sprintf("%s  %d sent, %d failed, %d pending of %d\n",
		m.active.CampaignID, p.Sent, p.Failed, p.Pending, p.Total))
	b.WriteString(m.sendBar.ViewAs(frac))

	if chart := m.renderThroughput(width - 4); chart != "" {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("sends per refresh"))
		b.WriteString("\n")
		b.WriteString(chart)
	}

	return sectionStyle.Width(width).Render(b.String())
}

// renderThroughput draws the per-tick send deltas as a compact bar chart.
func (m *DashboardModel) renderThroughput(width int) string {
	if len(m.throughput) < 2 || width < 20 {
		return ""
	}

	chartWidth := width
	if chartWidth > 2*throughputWindow {
		chartWidth = 2 * throughputWindow
	}
	bc := barchart.New(chartWidth, 4,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)

	barStyle := lipgloss.NewStyle().Foreground(ColorAccent).Background(ColorAccent)
	maxBars := chartWidth / 2
	samples := m.throughput
	if len(samples) > maxBars {
		samples = samples[len(samples)-maxBars:]
	}
	for _, v := range samples {
		bc.Push(barchart.BarData{
			Label:  "",
			Values: []barchart.BarValue{{Name: "sent", Value: v, Style: barStyle}},
		})
	}
	bc.Draw()
	return bc.View()
}

func (m *DashboardModel) renderNotifications(width int) string {
	style := sectionStyle
	if m.activeSection == SectionNotifications {
		style = activeSectionStyle
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Notifications"))
	b.WriteString("\n")

	if len(m.notes) == 0 {
		b.WriteString(mutedStyle.Render("nothing to report"))
		return style.Width(width).Render(b.String())
	}

	for i, n := range m.notes {
		var dot string
		switch n.Severity {
		case model.SeverityError:
			dot = lipgloss.NewStyle().Foreground(ColorError).Render("●")
		case model.SeveritySuccess:
			dot = lipgloss.NewStyle().Foreground(ColorSuccess).Render("●")
		default:
			dot = lipgloss.NewStyle().Foreground(ColorAccent).Render("●")
		}
		age := time.Since(n.CreatedAt).Round(time.Second)
		line := fmt.Sprintf("%s %s %s", dot, n.Message, mutedStyle.Render(age.String()))
		if i == m.noteSelected && m.activeSection == SectionNotifications {
			line = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		if i < len(m.notes)-1 {
			b.WriteString("\n")
		}
	}

	return style.Width(width).Render(b.String())
}

func (m *DashboardModel) renderActivity(width int) string {
	style := sectionStyle
	if m.activeSection == SectionActivity {
		style = activeSectionStyle
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Recent activity"))
	b.WriteString("\n")

	if len(m.activity) == 0 {
		b.WriteString(mutedStyle.Render("no transitions yet"))
		return style.Width(width).Render(b.String())
	}

	shown := m.activity
	if len(shown) > 6 {
		shown = shown[:6]
	}
	for i, tr := range shown {
		from := string(tr.From)
		if from == "" {
			from = "?"
		}
		line := fmt.Sprintf("%s  %-14s %s → %s", tr.At.Format("15:04:05"), truncate(tr.AccountID, 14), from, tr.To)
		if tr.Reason != "" {
			line += mutedStyle.Render("  (" + tr.Reason + ")")
		}
		b.WriteString(line)
		if i < len(shown)-1 {
			b.WriteString("\n")
		}
	}

	return style.Width(width).Render(b.String())
}

func (m *DashboardModel) renderStatusLine(width int) string {
	if m.lastError != "" {
		return lipgloss.NewStyle().Foreground(ColorError).Width(width).Render("✗ " + m.lastError)
	}
	help := "n new · r reconnect · d disconnect · x delete · c history · tab section · ? help · q quit"
	return statusBarStyle.Width(width).Render(mutedStyle.Render(help))
}

func (m *DashboardModel) renderHelp(width, height int) string {
	lines := []string{
		titleStyle.Render("wren dashboard keys"),
		"",
		"  n          pair a new account",
		"  r          reconnect the selected account",
		"  d          disconnect the selected account",
		"  x          delete the selected account",
		"  esc        cancel pairing / dismiss error",
		"  backspace  dismiss selected notification",
		"  c          campaign history",
		"  tab        cycle sections",
		"  ↑/k ↓/j    move selection",
		"  ?          toggle this help",
		"  q          quit",
	}
	content := strings.Join(lines, "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		sectionStyle.Render(content))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
