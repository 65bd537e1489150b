package tui

import (
	"context"
	"fmt"
	"strings"

	"kingk/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Profile message types.
type profileMsg struct {
	user  *domain.User
	scans int
	err   error
}
type linkCodeMsg struct {
	code string
	err  error
}
type signOutDoneMsg struct{ err error }

// ProfileModel is King's Vault: account details, Telegram linking and sign out.
type ProfileModel struct {
	services Services
	userID   string
	user     *domain.User
	scans    int
	code     string
	notice   string
	loading  bool
	err      error
	width    int
}

func NewProfileModel(svc Services) ProfileModel {
	return ProfileModel{services: svc}
}

func (m *ProfileModel) Enter(userID string) tea.Cmd {
	m.userID = userID
	m.loading = true
	m.code = ""
	m.notice = ""
	return m.loadCmd()
}

func (m ProfileModel) Update(msg tea.Msg) (ProfileModel, tea.Cmd) {
	switch msg := msg.(type) {
	case profileMsg:
		m.loading = false
		m.err = msg.err
		if msg.user != nil {
			m.user = msg.user
		}
		m.scans = msg.scans
		return m, nil

	case linkCodeMsg:
		if msg.err != nil {
			m.notice = "Could not issue a link code: " + msg.err.Error()
			return m, nil
		}
		m.code = msg.code
		return m, nil

	case signOutDoneMsg:
		if msg.err != nil {
			m.notice = "Signed out locally; remote revoke failed."
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.LinkCode):
			return m, m.linkCodeCmd()
		case key.Matches(msg, DefaultKeyMap.SignOut):
			return m, m.signOutCmd()
		}
	}
	return m, nil
}

func (m ProfileModel) View() string {
	var lines []string
	lines = append(lines, "  "+TitleStyle.Render("KING'S VAULT"), "")

	switch {
	case m.loading && m.user == nil:
		lines = append(lines, SubtextStyle.Render("  Loading profile..."))
	case m.err != nil && m.user == nil:
		lines = append(lines, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
	case m.user != nil:
		telegram := SubtextStyle.Render("not linked")
		if m.user.TelegramChatID != nil {
			telegram = VerifiedStyle.Render("linked")
		}
		card := strings.Join([]string{
			HeaderStyle.Render(m.user.Email),
			SubtextStyle.Render("Member since " + m.user.CreatedAt.Format("Jan 2006")),
			"",
			fmt.Sprintf("King K Status    %s", NoticeStyle.Render("Deep Institutional")),
			fmt.Sprintf("Total Deep Scans %d", m.scans),
			fmt.Sprintf("Telegram         %s", telegram),
		}, "\n")
		lines = append(lines, BorderStyle.Width(clampWidth(m.width-4, 36, 80)).Render(card))
	}

	if m.code != "" {
		lines = append(lines, "", fmt.Sprintf("  Send %s to the King K bot within 10 minutes.", SelectedStyle.Render("/link "+m.code)))
	}
	if m.notice != "" {
		lines = append(lines, "", NoticeStyle.Render("  "+m.notice))
	}
	lines = append(lines, "", "  "+SubtextStyle.Render("t telegram link code · o disconnect session · esc back"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *ProfileModel) SetSize(w, h int) {
	m.width = w
}

// LinkCode returns the last issued code (for testing).
func (m ProfileModel) LinkCode() string { return m.code }

func (m ProfileModel) loadCmd() tea.Cmd {
	userID := m.userID
	return func() tea.Msg {
		if m.services.Profiles == nil {
			return profileMsg{err: fmt.Errorf("profile not available")}
		}
		user, err := m.services.Profiles.User(context.Background(), userID)
		if err != nil {
			return profileMsg{err: err}
		}
		out := profileMsg{user: user}
		if m.services.Analyses != nil {
			if n, err := m.services.Analyses.Stats(context.Background(), userID); err == nil {
				out.scans = n
			}
		}
		return out
	}
}

func (m ProfileModel) linkCodeCmd() tea.Cmd {
	userID := m.userID
	return func() tea.Msg {
		if m.services.Profiles == nil {
			return linkCodeMsg{err: fmt.Errorf("profile not available")}
		}
		code, err := m.services.Profiles.IssueLinkCode(context.Background(), userID)
		return linkCodeMsg{code: code, err: err}
	}
}

func (m ProfileModel) signOutCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Auth == nil {
			return signOutDoneMsg{err: fmt.Errorf("authentication not available")}
		}
		return signOutDoneMsg{err: m.services.Auth.SignOut(context.Background())}
	}
}
