package tui

import "github.com/charmbracelet/lipgloss"

var (
	Gold    = lipgloss.Color("#EAB308")
	Slate   = lipgloss.Color("#64748B")
	Bull    = lipgloss.Color("#10B981")
	Bear    = lipgloss.Color("#EF4444")
	Neutral = lipgloss.Color("#94A3B8")

	// Bottom nav styles
	NavItemStyle       = lipgloss.NewStyle().Padding(0, 2)
	ActiveNavItemStyle = NavItemStyle.Bold(true).
				Foreground(lipgloss.Color("#0A0C12")).
				Background(Gold)
	InactiveNavItemStyle = NavItemStyle.
				Foreground(Slate)

	// Trade idea colors
	BuyStyle  = lipgloss.NewStyle().Foreground(Bull).Bold(true)
	SellStyle = lipgloss.NewStyle().Foreground(Bear).Bold(true)
	WaitStyle = lipgloss.NewStyle().Foreground(Neutral).Bold(true)

	// Confluence status colors
	VerifiedStyle = lipgloss.NewStyle().Foreground(Bull)
	PendingStyle  = lipgloss.NewStyle().Foreground(Gold)

	// General styles
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(Gold)
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA"))
	SubtextStyle = lipgloss.NewStyle().Foreground(Slate)
	BorderStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#334155"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(Bear)
	NoticeStyle  = lipgloss.NewStyle().Foreground(Gold)
	SpinnerColor = Gold

	// Chat styles
	UserMsgStyle  = lipgloss.NewStyle().Foreground(Gold).Bold(true)
	GuruMsgStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	SelectedStyle = lipgloss.NewStyle().Foreground(Gold).Bold(true)
)
