package tui

import (
	"context"
	"os"

	"kingk/internal/analysis"
	"kingk/internal/assistant"
	"kingk/internal/auth"
	"kingk/internal/domain"
	"kingk/internal/share"

	tea "github.com/charmbracelet/bubbletea"
)

// Authenticator is the per-session auth collaborator.
type Authenticator interface {
	Bootstrap(ctx context.Context) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context) error
	Session() *domain.Session
}

// Analyst runs chart analyses for the Analysis screen.
type Analyst interface {
	Analyze(ctx context.Context, userID string, req analysis.Request) (*domain.TradeAnalysisResult, error)
	Briefing(ctx context.Context, result *domain.TradeAnalysisResult) (string, error)
	Stats(ctx context.Context, userID string) (int, error)
}

// Conversations hands out the signed-in user's assistant conversation.
type Conversations interface {
	For(ctx context.Context, userID string) *assistant.Conversation
}

// Profiles reads account details and issues Telegram link codes.
type Profiles interface {
	User(ctx context.Context, userID string) (*domain.User, error)
	IssueLinkCode(ctx context.Context, userID string) (string, error)
}

type CardRenderer interface {
	RenderSignalCard(result *domain.TradeAnalysisResult) (*domain.ImageData, error)
}

type Sharer interface {
	Share(ctx context.Context, userID string, a share.Artifact) (*share.Result, error)
}

// Services bundles all service dependencies injected into the TUI.
type Services struct {
	Auth     Authenticator
	Analyses Analyst
	Chats    Conversations
	Profiles Profiles
	Cards    CardRenderer
	Share    Sharer

	// ReadFile loads chart screenshots; defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

func (s Services) readFile(name string) ([]byte, error) {
	if s.ReadFile != nil {
		return s.ReadFile(name)
	}
	return os.ReadFile(name)
}

type authEventMsg domain.AuthEvent

type authEventSource interface {
	Subscribe(fn func(domain.AuthEvent)) *auth.Subscription
}

type msgSender interface {
	Send(msg tea.Msg)
}

// ForwardAuthEvents delivers auth events into the program's event loop so the
// navigator is only ever touched from Update.
func ForwardAuthEvents(src authEventSource, p msgSender) *auth.Subscription {
	return src.Subscribe(func(ev domain.AuthEvent) {
		p.Send(authEventMsg(ev))
	})
}
