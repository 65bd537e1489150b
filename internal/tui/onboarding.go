package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type slide struct {
	Title    string
	Subtitle string
	Body     string
}

var slides = []slide{
	{
		Title:    "King K Neural Net",
		Subtitle: "V3 SMARTEST ENGINE",
		Body:     "Welcome to King K AI. The engine reads global liquidity across forex, metals, indices and crypto.",
	},
	{
		Title:    "Guru Analysis Core",
		Subtitle: "SMC + ICT",
		Body:     "Multi-timeframe deconstruction of your chart screenshots. Break of structure, liquidity sweeps and order blocks.",
	},
	{
		Title:    "Elite Execution",
		Subtitle: "ENTRY / SL / TP",
		Body:     "Every scan returns an entry, a stop, two targets and a confluence breakdown you can export or send to Telegram.",
	},
}

// onboardingDoneMsg is emitted when the user leaves the slides.
type onboardingDoneMsg struct{ skipped bool }

// OnboardingModel walks through the intro slides.
type OnboardingModel struct {
	step   int
	width  int
	height int
}

func NewOnboardingModel() OnboardingModel {
	return OnboardingModel{}
}

func (m OnboardingModel) Update(msg tea.Msg) (OnboardingModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, DefaultKeyMap.Skip):
		return m, func() tea.Msg { return onboardingDoneMsg{skipped: true} }
	case key.Matches(keyMsg, DefaultKeyMap.Next):
		if m.step == len(slides)-1 {
			return m, func() tea.Msg { return onboardingDoneMsg{} }
		}
		m.step++
	case key.Matches(keyMsg, DefaultKeyMap.Prev):
		if m.step > 0 {
			m.step--
		}
	}
	return m, nil
}

func (m OnboardingModel) View() string {
	s := slides[m.step]

	var dots []string
	for i := range slides {
		if i <= m.step {
			dots = append(dots, TitleStyle.Render("━━"))
		} else {
			dots = append(dots, SubtextStyle.Render("─"))
		}
	}

	body := lipgloss.NewStyle().Width(clampWidth(m.width-8, 30, 60)).Render(s.Body)
	hint := "enter next · s skip"
	if m.step == len(slides)-1 {
		hint = "enter get started · s skip"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		"",
		"  "+strings.Join(dots, " "),
		"",
		"  "+SubtextStyle.Render(s.Subtitle),
		"  "+TitleStyle.Render(s.Title),
		"",
		lipgloss.NewStyle().PaddingLeft(2).Render(body),
		"",
		"  "+SubtextStyle.Render(hint),
	)
}

func (m *OnboardingModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Step returns the visible slide index (for testing).
func (m OnboardingModel) Step() int { return m.step }

func clampWidth(w, lo, hi int) int {
	if w < lo {
		return lo
	}
	if w > hi {
		return hi
	}
	return w
}
