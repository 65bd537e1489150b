package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines key bindings used across the TUI.
type KeyMap struct {
	Quit key.Binding
	Back key.Binding

	// Bottom navigation
	NavDashboard key.Binding
	NavAnalysis  key.Binding
	NavProfile   key.Binding

	// Onboarding
	Next key.Binding
	Prev key.Binding
	Skip key.Binding

	NextField  key.Binding
	ToggleMode key.Binding
	Up         key.Binding
	Down       key.Binding

	// Analysis result actions
	ToggleStyle key.Binding
	Briefing    key.Binding
	Share       key.Binding
	NewScan     key.Binding

	// Profile
	LinkCode key.Binding
	SignOut  key.Binding
}

// DefaultKeyMap provides the default key bindings for the TUI.
var DefaultKeyMap = KeyMap{
	Quit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	Back: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),

	NavDashboard: key.NewBinding(key.WithKeys("f1", "alt+1"), key.WithHelp("f1", "home")),
	NavAnalysis:  key.NewBinding(key.WithKeys("f2", "alt+2"), key.WithHelp("f2", "scan")),
	NavProfile:   key.NewBinding(key.WithKeys("f3", "alt+3"), key.WithHelp("f3", "vault")),

	Next: key.NewBinding(key.WithKeys("enter", "right", "l"), key.WithHelp("enter", "next")),
	Prev: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("left", "previous")),
	Skip: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip")),

	NextField:  key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
	ToggleMode: key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "sign in / sign up")),
	Up:         key.NewBinding(key.WithKeys("up"), key.WithHelp("up", "up")),
	Down:       key.NewBinding(key.WithKeys("down"), key.WithHelp("down", "down")),

	ToggleStyle: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "scalp / swing")),
	Briefing:    key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "briefing")),
	Share:       key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "export")),
	NewScan:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new scan")),

	LinkCode: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "telegram code")),
	SignOut:  key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "disconnect")),
}
