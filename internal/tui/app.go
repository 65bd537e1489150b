package tui

import (
	"context"
	"log"

	"kingk/internal/domain"
	"kingk/internal/navigation"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type bootstrapMsg struct {
	session *domain.Session
	err     error
}

type navItem struct {
	label  string
	screen navigation.Screen
}

var navItems = []navItem{
	{label: "F1 Home", screen: navigation.ScreenDashboard},
	{label: "F2 Scan", screen: navigation.ScreenAnalysis},
	{label: "F3 Vault", screen: navigation.ScreenProfile},
}

// AppModel is the top-level controller. It owns the navigator and routes
// messages to the active screen; every navigator mutation happens in Update.
type AppModel struct {
	services Services
	nav      *navigation.Navigator
	session  *domain.Session

	onboarding OnboardingModel
	auth       AuthModel
	dashboard  DashboardModel
	analysis   AnalysisModel
	assistant  AssistantModel
	profile    ProfileModel

	width    int
	height   int
	quitting bool
}

func NewAppModel(svc Services) AppModel {
	return AppModel{
		services:   svc,
		nav:        navigation.New(),
		onboarding: NewOnboardingModel(),
		auth:       NewAuthModel(svc),
		dashboard:  NewDashboardModel(svc),
		analysis:   NewAnalysisModel(svc),
		assistant:  NewAssistantModel(svc),
		profile:    NewProfileModel(svc),
	}
}

// Init starts the asynchronous session check.
func (m AppModel) Init() tea.Cmd {
	return m.bootstrapCmd()
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case bootstrapMsg:
		if msg.err != nil {
			log.Printf("session bootstrap failed: %v", msg.err)
		}
		prev := m.nav.Current()
		m.session = msg.session
		m.nav.Bootstrap(msg.session != nil)
		return m, m.enter(prev)

	case authEventMsg:
		return m.handleAuthEvent(domain.AuthEvent(msg))

	case onboardingDoneMsg:
		prev := m.nav.Current()
		var err error
		if msg.skipped {
			err = m.nav.SkipOnboarding()
		} else {
			err = m.nav.CompleteOnboarding()
		}
		if err != nil {
			return m, nil
		}
		return m, m.enter(prev)

	case openMsg:
		prev := m.nav.Current()
		if err := m.nav.Open(navigation.Screen(msg)); err != nil {
			return m, nil
		}
		return m, m.enter(prev)

	case startChatMsg:
		prev := m.nav.Current()
		if err := m.nav.StartChat(string(msg)); err != nil {
			return m, nil
		}
		return m, m.enter(prev)

	case tea.KeyMsg:
		if key.Matches(msg, DefaultKeyMap.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if !m.nav.Bootstrapped() {
			return m, nil
		}
		prev := m.nav.Current()
		if key.Matches(msg, DefaultKeyMap.Back) {
			if err := m.nav.Back(); err == nil {
				return m, m.enter(prev)
			}
			return m, nil
		}
		if m.nav.ShowNav() {
			for _, b := range []struct {
				binding key.Binding
				screen  navigation.Screen
			}{
				{DefaultKeyMap.NavDashboard, navigation.ScreenDashboard},
				{DefaultKeyMap.NavAnalysis, navigation.ScreenAnalysis},
				{DefaultKeyMap.NavProfile, navigation.ScreenProfile},
			} {
				if key.Matches(msg, b.binding) {
					if err := m.nav.Open(b.screen); err == nil {
						return m, m.enter(prev)
					}
					return m, nil
				}
			}
		}
	}

	var cmd tea.Cmd
	switch msg.(type) {
	case authResultMsg:
		m.auth, cmd = m.auth.Update(msg)
	case statsMsg, statsErrMsg:
		m.dashboard, cmd = m.dashboard.Update(msg)
	case analysisDoneMsg, briefingMsg, shareDoneMsg:
		m.analysis, cmd = m.analysis.Update(msg)
	case conversationMsg, replyMsg:
		m.assistant, cmd = m.assistant.Update(msg)
	case profileMsg, linkCodeMsg, signOutDoneMsg:
		m.profile, cmd = m.profile.Update(msg)
	case spinner.TickMsg:
		var c1, c2, c3 tea.Cmd
		m.auth, c1 = m.auth.Update(msg)
		m.analysis, c2 = m.analysis.Update(msg)
		m.assistant, c3 = m.assistant.Update(msg)
		cmd = tea.Batch(c1, c2, c3)
	default:
		cmd = m.updateActive(msg)
	}
	return m, cmd
}

func (m AppModel) View() string {
	if m.quitting {
		return "Neural link closed.\n"
	}
	if !m.nav.Bootstrapped() {
		return "\n  " + SubtextStyle.Render("Establishing neural link...")
	}

	var content string
	switch m.nav.Current() {
	case navigation.ScreenOnboarding:
		content = m.onboarding.View()
	case navigation.ScreenAuth:
		content = m.auth.View()
	case navigation.ScreenDashboard:
		content = m.dashboard.View()
	case navigation.ScreenAnalysis:
		content = m.analysis.View()
	case navigation.ScreenAssistant:
		content = m.assistant.View()
	case navigation.ScreenProfile:
		content = m.profile.View()
	}

	if !m.nav.ShowNav() {
		return content
	}
	return lipgloss.JoinVertical(lipgloss.Left, content, "", m.renderNav())
}

// SetSize updates dimensions on the root model and propagates to children.
func (m *AppModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	contentHeight := h - 2 // bottom nav
	m.onboarding.SetSize(w, h)
	m.auth.SetSize(w, h)
	m.dashboard.SetSize(w, contentHeight)
	m.analysis.SetSize(w, contentHeight)
	m.assistant.SetSize(w, h)
	m.profile.SetSize(w, contentHeight)
}

// Screen returns the active screen (for testing).
func (m AppModel) Screen() navigation.Screen { return m.nav.Current() }

// ShowNav reports whether the bottom navigation is rendered.
func (m AppModel) ShowNav() bool { return m.nav.ShowNav() }

func (m AppModel) handleAuthEvent(ev domain.AuthEvent) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case domain.AuthSignedOut:
		m.session = nil
		m.analysis.Reset()
		m.assistant = NewAssistantModel(m.services)
		m.assistant.SetSize(m.width, m.height)
	default:
		if ev.Session != nil {
			m.session = ev.Session
		}
	}

	prev := m.nav.Current()
	if !m.nav.HandleAuthEvent(ev) {
		return m, nil
	}
	return m, m.enter(prev)
}

// enter runs the entry hook of the screen the navigator just moved to.
func (m *AppModel) enter(prev navigation.Screen) tea.Cmd {
	current := m.nav.Current()
	if current == prev {
		return nil
	}
	if prev == navigation.ScreenAssistant {
		m.assistant.Blur()
	}

	userID, email := "", ""
	if m.session != nil {
		userID, email = m.session.UserID, m.session.Email
	}

	switch current {
	case navigation.ScreenDashboard:
		return m.dashboard.Enter(userID, email)
	case navigation.ScreenAnalysis:
		return m.analysis.Enter(userID)
	case navigation.ScreenAssistant:
		pending, _ := m.nav.TakePendingMessage()
		return m.assistant.Enter(userID, pending)
	case navigation.ScreenProfile:
		return m.profile.Enter(userID)
	}
	return nil
}

func (m *AppModel) updateActive(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.nav.Current() {
	case navigation.ScreenOnboarding:
		m.onboarding, cmd = m.onboarding.Update(msg)
	case navigation.ScreenAuth:
		m.auth, cmd = m.auth.Update(msg)
	case navigation.ScreenDashboard:
		m.dashboard, cmd = m.dashboard.Update(msg)
	case navigation.ScreenAnalysis:
		m.analysis, cmd = m.analysis.Update(msg)
	case navigation.ScreenAssistant:
		m.assistant, cmd = m.assistant.Update(msg)
	case navigation.ScreenProfile:
		m.profile, cmd = m.profile.Update(msg)
	}
	return cmd
}

func (m AppModel) renderNav() string {
	var items []string
	for _, item := range navItems {
		if item.screen == m.nav.Current() {
			items = append(items, ActiveNavItemStyle.Render(item.label))
		} else {
			items = append(items, InactiveNavItemStyle.Render(item.label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, items...)
}

func (m AppModel) bootstrapCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Auth == nil {
			return bootstrapMsg{}
		}
		session, err := m.services.Auth.Bootstrap(context.Background())
		return bootstrapMsg{session: session, err: err}
	}
}
