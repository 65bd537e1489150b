package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// authResultMsg carries only the outcome; navigation follows the auth event.
type authResultMsg struct{ err error }

// AuthModel is the sign-in / sign-up form.
type AuthModel struct {
	services Services
	email    textinput.Model
	password textinput.Model
	spinner  spinner.Model
	signUp   bool
	focus    int
	waiting  bool
	err      error
	width    int
}

func NewAuthModel(svc Services) AuthModel {
	email := textinput.New()
	email.Placeholder = "email"
	email.CharLimit = 254
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(SpinnerColor)

	return AuthModel{
		services: svc,
		email:    email,
		password: password,
		spinner:  sp,
	}
}

func (m AuthModel) Update(msg tea.Msg) (AuthModel, tea.Cmd) {
	switch msg := msg.(type) {
	case authResultMsg:
		m.waiting = false
		m.err = msg.err
		if msg.err == nil {
			m.password.SetValue("")
		}
		return m, nil

	case spinner.TickMsg:
		if m.waiting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.waiting {
			return m, nil
		}
		switch {
		case key.Matches(msg, DefaultKeyMap.NextField):
			m.setFocus(1 - m.focus)
			return m, nil
		case key.Matches(msg, DefaultKeyMap.ToggleMode):
			m.signUp = !m.signUp
			m.err = nil
			return m, nil
		case msg.Type == tea.KeyEnter:
			if m.focus == 0 {
				m.setFocus(1)
				return m, nil
			}
			email := strings.TrimSpace(m.email.Value())
			password := m.password.Value()
			if email == "" || password == "" {
				m.err = fmt.Errorf("email and password are required")
				return m, nil
			}
			m.waiting = true
			m.err = nil
			return m, tea.Batch(m.submitCmd(email, password), m.spinner.Tick)
		}
	}

	var cmd tea.Cmd
	if m.focus == 0 {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m AuthModel) View() string {
	title := "Sign in to the terminal"
	toggle := "ctrl+t create an account"
	if m.signUp {
		title = "Create your King K account"
		toggle = "ctrl+t sign in instead"
	}

	lines := []string{
		"",
		"  " + TitleStyle.Render("KING K AI"),
		"  " + HeaderStyle.Render(title),
		"",
		"  " + m.email.View(),
		"  " + m.password.View(),
		"",
	}
	switch {
	case m.waiting:
		lines = append(lines, fmt.Sprintf("  %s Authenticating...", m.spinner.View()))
	case m.err != nil:
		lines = append(lines, ErrorStyle.Render(fmt.Sprintf("  %v", m.err)))
	}
	lines = append(lines, "", "  "+SubtextStyle.Render("tab switch field · enter submit · "+toggle))
	return strings.Join(lines, "\n")
}

func (m *AuthModel) SetSize(w, h int) {
	m.width = w
	m.email.Width = clampWidth(w-8, 20, 48)
	m.password.Width = m.email.Width
}

// SignUpMode reports whether the form creates an account (for testing).
func (m AuthModel) SignUpMode() bool { return m.signUp }

// IsWaiting returns whether a submission is outstanding (for testing).
func (m AuthModel) IsWaiting() bool { return m.waiting }

func (m *AuthModel) setFocus(i int) {
	m.focus = i
	if i == 0 {
		m.email.Focus()
		m.password.Blur()
	} else {
		m.email.Blur()
		m.password.Focus()
	}
}

func (m AuthModel) submitCmd(email, password string) tea.Cmd {
	signUp := m.signUp
	return func() tea.Msg {
		if m.services.Auth == nil {
			return authResultMsg{err: fmt.Errorf("authentication not available")}
		}
		var err error
		if signUp {
			_, err = m.services.Auth.SignUp(context.Background(), email, password)
		} else {
			_, err = m.services.Auth.SignIn(context.Background(), email, password)
		}
		return authResultMsg{err: err}
	}
}
