package tui

import (
	"context"
	"fmt"
	"strings"

	"kingk/internal/navigation"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Dashboard message types.
type statsMsg int
type statsErrMsg struct{ err error }

// openMsg asks the controller for explicit navigation.
type openMsg navigation.Screen

// startChatMsg asks the controller to open the assistant with a message.
type startChatMsg string

type menuItem struct {
	label  string
	hint   string
	screen navigation.Screen
}

var dashboardMenu = []menuItem{
	{label: "New Deep Scan", hint: "analyse one or two chart screenshots", screen: navigation.ScreenAnalysis},
	{label: "Guru Assistant", hint: "chat with King K", screen: navigation.ScreenAssistant},
	{label: "King's Vault", hint: "profile, Telegram link, sign out", screen: navigation.ScreenProfile},
}

// DashboardModel is the home screen.
type DashboardModel struct {
	services Services
	userID   string
	email    string
	scans    int
	hasStats bool
	cursor   int
	prompt   textinput.Model
	width    int
	height   int
}

func NewDashboardModel(svc Services) DashboardModel {
	ti := textinput.New()
	ti.Placeholder = "Consult the Master Analyst..."
	ti.CharLimit = 500
	ti.Width = 60
	ti.Focus()

	return DashboardModel{
		services: svc,
		prompt:   ti,
	}
}

// Enter refreshes the scan count for the signed-in user.
func (m *DashboardModel) Enter(userID, email string) tea.Cmd {
	m.userID = userID
	m.email = email
	return m.fetchStatsCmd()
}

func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case statsMsg:
		m.scans = int(msg)
		m.hasStats = true
		return m, nil

	case statsErrMsg:
		// Non-critical; the count just stays hidden.
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case key.Matches(msg, DefaultKeyMap.Down):
			if m.cursor < len(dashboardMenu)-1 {
				m.cursor++
			}
			return m, nil
		case msg.Type == tea.KeyEnter:
			text := strings.TrimSpace(m.prompt.Value())
			if text != "" {
				m.prompt.SetValue("")
				return m, func() tea.Msg { return startChatMsg(text) }
			}
			target := dashboardMenu[m.cursor].screen
			return m, func() tea.Msg { return openMsg(target) }
		}
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m DashboardModel) View() string {
	greeting := "Guru"
	if m.email != "" {
		greeting = strings.SplitN(m.email, "@", 2)[0]
	}

	var sections []string
	sections = append(sections, "  "+SubtextStyle.Render("DEEP TERMINAL V3.5"))
	sections = append(sections, "  "+TitleStyle.Render("Welcome back, "+greeting))
	if m.hasStats {
		sections = append(sections, "  "+SubtextStyle.Render(fmt.Sprintf("%d deep scans on record", m.scans)))
	}
	sections = append(sections, "")

	var menu []string
	for i, item := range dashboardMenu {
		line := fmt.Sprintf("  %s  %s", item.label, SubtextStyle.Render(item.hint))
		if i == m.cursor {
			line = SelectedStyle.Render("> "+item.label) + "  " + SubtextStyle.Render(item.hint)
		}
		menu = append(menu, line)
	}
	sections = append(sections, BorderStyle.Width(clampWidth(m.width-4, 40, 100)).Render(strings.Join(menu, "\n")))

	sections = append(sections, "", "  "+SubtextStyle.Render("TERMINAL LINK"), "  "+m.prompt.View())
	sections = append(sections, "", "  "+SubtextStyle.Render("up/down choose · enter open · type and enter to ask"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *DashboardModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.prompt.Width = clampWidth(w-6, 20, 80)
}

// Scans returns the loaded scan count (for testing).
func (m DashboardModel) Scans() int { return m.scans }

func (m DashboardModel) fetchStatsCmd() tea.Cmd {
	userID := m.userID
	return func() tea.Msg {
		if m.services.Analyses == nil || userID == "" {
			return statsErrMsg{err: fmt.Errorf("analysis service not available")}
		}
		n, err := m.services.Analyses.Stats(context.Background(), userID)
		if err != nil {
			return statsErrMsg{err: err}
		}
		return statsMsg(n)
	}
}
