package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kingk/internal/analysis"
	"kingk/internal/chart"
	"kingk/internal/domain"
	"kingk/internal/share"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Analysis message types.
type analysisDoneMsg struct {
	result *domain.TradeAnalysisResult
	err    error
}
type briefingMsg struct {
	text string
	err  error
}
type shareDoneMsg struct {
	result *share.Result
	err    error
}

const (
	focusFilter = iota
	focusChartA
	focusChartB
	focusCount
)

const pickerRows = 6

// AnalysisModel is the Deep Scan screen: instrument picker, up to two chart
// paths, the result and its follow-up actions.
type AnalysisModel struct {
	services Services
	userID   string

	filter  textinput.Model
	charts  [analysis.MaxImages]textinput.Model
	focus   int
	cursor  int
	matches []domain.Instrument
	style   analysis.Style

	spinner  spinner.Model
	running  bool
	result   *domain.TradeAnalysisResult
	briefing string
	busy     bool
	notice   string
	err      error

	width  int
	height int
}

func NewAnalysisModel(svc Services) AnalysisModel {
	filter := textinput.New()
	filter.Placeholder = "filter instruments (e.g. xau, crypto)"
	filter.CharLimit = 40

	var charts [analysis.MaxImages]textinput.Model
	for i := range charts {
		charts[i] = textinput.New()
		charts[i].Placeholder = fmt.Sprintf("chart %d path (png, jpg)", i+1)
		charts[i].CharLimit = 512
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(SpinnerColor)

	m := AnalysisModel{
		services: svc,
		filter:   filter,
		charts:   charts,
		matches:  analysis.Instruments(),
		style:    analysis.StyleScalp,
		spinner:  sp,
	}
	m.setFocus(focusFilter)
	return m
}

// Enter binds the screen to the signed-in user.
func (m *AnalysisModel) Enter(userID string) tea.Cmd {
	m.userID = userID
	return textinput.Blink
}

// Reset clears the form and the last result.
func (m *AnalysisModel) Reset() {
	fresh := NewAnalysisModel(m.services)
	fresh.userID = m.userID
	fresh.SetSize(m.width, m.height)
	*m = fresh
}

func (m AnalysisModel) Update(msg tea.Msg) (AnalysisModel, tea.Cmd) {
	switch msg := msg.(type) {
	case analysisDoneMsg:
		m.running = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.result = msg.result
		return m, nil

	case briefingMsg:
		m.busy = false
		if msg.err != nil {
			m.notice = severedNotice
			return m, nil
		}
		m.briefing = msg.text
		return m, nil

	case shareDoneMsg:
		m.busy = false
		m.notice = shareNotice(msg.result, msg.err)
		return m, nil

	case spinner.TickMsg:
		if m.running || m.busy {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.running {
			return m, nil
		}
		if m.result != nil {
			return m.updateResult(msg)
		}
		return m.updateForm(msg)
	}
	return m, nil
}

func (m AnalysisModel) updateForm(msg tea.KeyMsg) (AnalysisModel, tea.Cmd) {
	switch {
	case key.Matches(msg, DefaultKeyMap.NextField):
		step := 1
		if msg.String() == "shift+tab" {
			step = focusCount - 1
		}
		m.setFocus((m.focus + step) % focusCount)
		return m, nil
	case key.Matches(msg, DefaultKeyMap.ToggleStyle):
		if m.style == analysis.StyleScalp {
			m.style = analysis.StyleSwing
		} else {
			m.style = analysis.StyleScalp
		}
		return m, nil
	case key.Matches(msg, DefaultKeyMap.Up) && m.focus == focusFilter:
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, DefaultKeyMap.Down) && m.focus == focusFilter:
		if m.cursor < len(m.matches)-1 {
			m.cursor++
		}
		return m, nil
	case msg.Type == tea.KeyEnter:
		instrument, ok := m.Selected()
		if !ok {
			m.err = analysis.ErrNoInstrument
			return m, nil
		}
		paths := m.chartPaths()
		if len(paths) == 0 {
			m.err = analysis.ErrNoImages
			return m, nil
		}
		m.running = true
		m.err = nil
		m.notice = ""
		return m, tea.Batch(m.runCmd(instrument.Name, paths), m.spinner.Tick)
	}

	var cmd tea.Cmd
	if m.focus == focusFilter {
		before := m.filter.Value()
		m.filter, cmd = m.filter.Update(msg)
		if m.filter.Value() != before {
			m.matches = analysis.FilterInstruments(m.filter.Value())
			m.cursor = 0
		}
		return m, cmd
	}
	i := m.focus - focusChartA
	m.charts[i], cmd = m.charts[i].Update(msg)
	return m, cmd
}

func (m AnalysisModel) updateResult(msg tea.KeyMsg) (AnalysisModel, tea.Cmd) {
	switch {
	case key.Matches(msg, DefaultKeyMap.NewScan):
		m.Reset()
		return m, nil
	case m.busy:
		return m, nil
	case key.Matches(msg, DefaultKeyMap.Briefing):
		m.busy = true
		m.notice = ""
		return m, tea.Batch(m.briefingCmd(), m.spinner.Tick)
	case key.Matches(msg, DefaultKeyMap.Share):
		m.busy = true
		m.notice = ""
		return m, tea.Batch(m.shareCmd(), m.spinner.Tick)
	}
	return m, nil
}

func (m AnalysisModel) View() string {
	header := lipgloss.JoinVertical(lipgloss.Left,
		"  "+SubtextStyle.Render("GURU ANALYSIS CORE"),
		"  "+TitleStyle.Render("Deep Scan"),
		"",
	)

	if m.running {
		return header + "\n" + fmt.Sprintf("  %s Deconstructing liquidity...", m.spinner.View())
	}
	if m.result != nil {
		return header + "\n" + m.viewResult()
	}
	return header + "\n" + m.viewForm()
}

func (m AnalysisModel) viewForm() string {
	var lines []string
	lines = append(lines, "  "+m.filter.View())

	start := 0
	if m.cursor >= pickerRows {
		start = m.cursor - pickerRows + 1
	}
	for i := start; i < len(m.matches) && i < start+pickerRows; i++ {
		inst := m.matches[i]
		label := fmt.Sprintf("%-10s %s", inst.Name, SubtextStyle.Render(inst.Category+" · "+inst.Description))
		if i == m.cursor {
			lines = append(lines, SelectedStyle.Render("  > ")+label)
		} else {
			lines = append(lines, "    "+label)
		}
	}
	if len(m.matches) == 0 {
		lines = append(lines, SubtextStyle.Render("    no instrument matches the filter"))
	}

	lines = append(lines, "")
	for i := range m.charts {
		lines = append(lines, "  "+m.charts[i].View())
	}
	lines = append(lines, "", fmt.Sprintf("  Style %s", SelectedStyle.Render(string(m.style))))

	if m.err != nil {
		lines = append(lines, "", ErrorStyle.Render("  "+analysisErrorText(m.err)))
	}
	lines = append(lines, "", "  "+SubtextStyle.Render("tab next field · up/down pick · ctrl+s scalp/swing · enter scan · esc back"))
	return strings.Join(lines, "\n")
}

func (m AnalysisModel) viewResult() string {
	var sections []string
	sections = append(sections, BorderStyle.Width(clampWidth(m.width-4, 40, 100)).Render(FormatAnalysis(m.result, clampWidth(m.width-8, 36, 96))))

	if m.briefing != "" {
		sections = append(sections, "", HeaderStyle.Render("  Briefing"),
			lipgloss.NewStyle().Width(clampWidth(m.width-6, 30, 96)).PaddingLeft(2).Render(m.briefing))
	}
	if m.busy {
		sections = append(sections, "", fmt.Sprintf("  %s Working...", m.spinner.View()))
	} else if m.notice != "" {
		sections = append(sections, "", NoticeStyle.Render("  "+m.notice))
	}
	sections = append(sections, "", "  "+SubtextStyle.Render("b briefing · x export / share · n new scan · esc back"))
	return strings.Join(sections, "\n")
}

func (m *AnalysisModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	inputWidth := clampWidth(w-8, 20, 80)
	m.filter.Width = inputWidth
	for i := range m.charts {
		m.charts[i].Width = inputWidth
	}
}

// Selected returns the highlighted instrument.
func (m AnalysisModel) Selected() (domain.Instrument, bool) {
	if m.cursor < 0 || m.cursor >= len(m.matches) {
		return domain.Instrument{}, false
	}
	return m.matches[m.cursor], true
}

// Result returns the last analysis result (for testing).
func (m AnalysisModel) Result() *domain.TradeAnalysisResult { return m.result }

// IsRunning returns whether an analysis is outstanding (for testing).
func (m AnalysisModel) IsRunning() bool { return m.running }

func (m *AnalysisModel) setFocus(i int) {
	m.focus = i
	m.filter.Blur()
	for j := range m.charts {
		m.charts[j].Blur()
	}
	if i == focusFilter {
		m.filter.Focus()
		return
	}
	m.charts[i-focusChartA].Focus()
}

func (m AnalysisModel) chartPaths() []string {
	var paths []string
	for _, c := range m.charts {
		if p := strings.TrimSpace(c.Value()); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func (m AnalysisModel) runCmd(instrument string, paths []string) tea.Cmd {
	userID := m.userID
	style := m.style
	return func() tea.Msg {
		if m.services.Analyses == nil {
			return analysisDoneMsg{err: analysis.ErrAnalysisUnavailable}
		}
		images := make([][]byte, 0, len(paths))
		for _, p := range paths {
			img, err := m.services.readFile(p)
			if err != nil {
				return analysisDoneMsg{err: fmt.Errorf("read %s: %w", p, err)}
			}
			images = append(images, img)
		}
		result, err := m.services.Analyses.Analyze(context.Background(), userID, analysis.Request{
			Images:     images,
			Instrument: instrument,
			Style:      style,
		})
		return analysisDoneMsg{result: result, err: err}
	}
}

func (m AnalysisModel) briefingCmd() tea.Cmd {
	result := m.result
	return func() tea.Msg {
		if m.services.Analyses == nil {
			return briefingMsg{err: analysis.ErrAnalysisUnavailable}
		}
		text, err := m.services.Analyses.Briefing(context.Background(), result)
		return briefingMsg{text: text, err: err}
	}
}

func (m AnalysisModel) shareCmd() tea.Cmd {
	result := m.result
	userID := m.userID
	return func() tea.Msg {
		if m.services.Cards == nil || m.services.Share == nil {
			return shareDoneMsg{err: fmt.Errorf("export not available")}
		}
		card, err := m.services.Cards.RenderSignalCard(result)
		if err != nil {
			return shareDoneMsg{err: err}
		}
		out, err := m.services.Share.Share(context.Background(), userID, share.Artifact{
			FileName: chart.FileName(result.Pair),
			Caption:  share.Caption(*result),
			Image:    card,
		})
		return shareDoneMsg{result: out, err: err}
	}
}

func analysisErrorText(err error) string {
	if errors.Is(err, analysis.ErrAnalysisUnavailable) {
		return severedNotice
	}
	return err.Error()
}

func shareNotice(res *share.Result, err error) string {
	if err != nil {
		return "Export failed: " + err.Error()
	}
	if res == nil {
		return ""
	}
	switch res.Outcome {
	case share.OutcomeShared:
		return "Signal card sent to your Telegram."
	case share.OutcomeCancelled:
		return "Share cancelled."
	default:
		return fmt.Sprintf("%s (%s)", res.Notice, res.Path)
	}
}
