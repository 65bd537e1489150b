package tui

import (
	"context"
	"time"

	"kingk/internal/auth"

	tea "github.com/charmbracelet/bubbletea"
)

// NewProgram builds one terminal session: its own auth client, the app model
// and the event bridge between them. The bridge and the refresh loop stop
// when ctx is done.
func NewProgram(ctx context.Context, svc Services, backend auth.Backend, tokens auth.TokenStore, refreshEvery time.Duration, opts ...tea.ProgramOption) (*tea.Program, *auth.Client) {
	client := auth.NewClient(backend, tokens)
	svc.Auth = client

	p := tea.NewProgram(NewAppModel(svc), opts...)
	sub := ForwardAuthEvents(client, p)
	client.StartAutoRefresh(ctx, refreshEvery)

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()
	return p, client
}
