package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kingk/internal/assistant"
	"kingk/internal/domain"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Assistant message types.
type conversationMsg struct {
	conv     *assistant.Conversation
	messages []domain.ChatMessage
	pending  string
}
type replyMsg struct{ err error }

// AssistantModel is the chat screen. Input is disabled while a reply is
// outstanding.
type AssistantModel struct {
	services Services
	conv     *assistant.Conversation
	messages []domain.ChatMessage
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	waiting  bool
	err      error
	width    int
	height   int
}

func NewAssistantModel(svc Services) AssistantModel {
	ti := textinput.New()
	ti.Placeholder = "Speak your query..."
	ti.CharLimit = 1000
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(SpinnerColor)

	return AssistantModel{
		services: svc,
		input:    ti,
		viewport: viewport.New(60, 10),
		spinner:  sp,
	}
}

// Enter loads the user's conversation and then sends pending, if any.
func (m *AssistantModel) Enter(userID, pending string) tea.Cmd {
	m.input.Focus()
	m.err = nil
	return tea.Batch(textinput.Blink, m.loadCmd(userID, pending))
}

func (m AssistantModel) Update(msg tea.Msg) (AssistantModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case conversationMsg:
		m.conv = msg.conv
		m.messages = msg.messages
		m.refresh()
		if msg.pending != "" && !m.waiting {
			return m.send(msg.pending)
		}
		return m, nil

	case replyMsg:
		m.waiting = false
		if m.conv != nil {
			m.messages = m.conv.Messages()
		}
		m.err = msg.err
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter && !m.waiting {
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				m.input.SetValue("")
				return m.send(text)
			}
		}

	case spinner.TickMsg:
		if m.waiting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if !m.waiting {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m AssistantModel) View() string {
	if m.services.Chats == nil {
		return lipgloss.JoinVertical(lipgloss.Left,
			"",
			TitleStyle.Render("  King K Guru"),
			"",
			SubtextStyle.Render("  Assistant not available. Set OPENAI_API_KEY to enable."),
		)
	}

	var sections []string
	sections = append(sections, TitleStyle.Render("  King K Guru")+"  "+SubtextStyle.Render("esc back"))
	sections = append(sections, rule(m.width))
	sections = append(sections, m.viewport.View())
	sections = append(sections, rule(m.width))

	if m.waiting {
		sections = append(sections, fmt.Sprintf("  %s The Guru is reading the tape...", m.spinner.View()))
	} else {
		if m.err != nil {
			sections = append(sections, ErrorStyle.Render("  "+chatErrorText(m.err)))
		}
		sections = append(sections, "  "+m.input.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *AssistantModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.input.Width = clampWidth(w-6, 20, 200)
	m.viewport.Width = clampWidth(w-2, 10, 400)
	m.viewport.Height = clampWidth(h-6, 3, 400)
	m.refresh()
}

// Blur removes focus from the text input.
func (m *AssistantModel) Blur() {
	m.input.Blur()
}

// IsWaiting returns whether the model is waiting for a response (for testing).
func (m AssistantModel) IsWaiting() bool { return m.waiting }

// MessageCount returns the number of visible messages (for testing).
func (m AssistantModel) MessageCount() int { return len(m.messages) }

func (m AssistantModel) send(text string) (AssistantModel, tea.Cmd) {
	if m.conv == nil {
		m.err = assistant.ErrLinkSevered
		return m, nil
	}
	m.messages = append(m.messages, domain.ChatMessage{Role: domain.RoleUser, Text: text, Timestamp: time.Now()})
	m.waiting = true
	m.err = nil
	m.refresh()
	return m, tea.Batch(m.sendCmd(m.conv, text), m.spinner.Tick)
}

func (m *AssistantModel) refresh() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m AssistantModel) renderMessages() string {
	var lines []string
	wrap := lipgloss.NewStyle().Width(clampWidth(m.width-12, 20, 200)).PaddingLeft(9)
	for _, msg := range m.messages {
		timestamp := SubtextStyle.Render(msg.Timestamp.Format("15:04"))
		switch msg.Role {
		case domain.RoleUser:
			lines = append(lines, fmt.Sprintf("  %s  %s %s", timestamp, UserMsgStyle.Render("You:"), msg.Text))
		default:
			lines = append(lines, fmt.Sprintf("  %s  %s", timestamp, GuruMsgStyle.Render("King K:")))
			lines = append(lines, wrap.Render(msg.Text))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m AssistantModel) loadCmd(userID, pending string) tea.Cmd {
	return func() tea.Msg {
		if m.services.Chats == nil {
			return replyMsg{err: assistant.ErrLinkSevered}
		}
		conv := m.services.Chats.For(context.Background(), userID)
		return conversationMsg{conv: conv, messages: conv.Messages(), pending: pending}
	}
}

func (m AssistantModel) sendCmd(conv *assistant.Conversation, text string) tea.Cmd {
	return func() tea.Msg {
		_, err := conv.Send(context.Background(), text)
		return replyMsg{err: err}
	}
}

func chatErrorText(err error) string {
	switch {
	case errors.Is(err, assistant.ErrSendInFlight):
		return "The Guru is still answering."
	case errors.Is(err, assistant.ErrEmptyMessage):
		return err.Error()
	}
	return severedNotice
}
