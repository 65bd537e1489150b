package bot

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"kingk/internal/auth"
	"kingk/internal/domain"
	"kingk/internal/share"

	tele "gopkg.in/telebot.v3"
)

const (
	maxReplyLength  = 4000
	severedReply    = "Neural link severed. Please try again."
	notLinkedReply  = "This chat is not linked yet. Open your King K profile, copy the link code and send /link <code>."
	linkUsage       = "Usage: /link <code>"
	askUsage        = "Usage: /ask <question>\nExample: /ask Is gold still bullish on the 4H?"
	noAnalysesReply = "No analyses yet. Run a scan in King K first."
)

// ChatLinks maps Telegram chats to accounts.
type ChatLinks interface {
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
	FindUserByTelegramChat(ctx context.Context, chatID int64) (*domain.User, error)
	SetTelegramChat(ctx context.Context, userID string, chatID int64) error
}

type LinkRedeemer interface {
	RedeemLinkCode(ctx context.Context, code string) (string, error)
}

type Advisor interface {
	Ask(ctx context.Context, userID, question string) (string, error)
}

type AnalysisLister interface {
	Recent(ctx context.Context, userID string, limit int) ([]domain.TradeAnalysisResult, error)
}

type CardRenderer interface {
	RenderSignalCard(result *domain.TradeAnalysisResult) (*domain.ImageData, error)
}

type Deps struct {
	Links    ChatLinks
	Codes    LinkRedeemer
	Advisor  Advisor
	Analyses AnalysisLister
	Cards    CardRenderer
}

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type Bot struct {
	sender messageSender
	deps   Deps
}

func New(sender messageSender, deps Deps) *Bot {
	return &Bot{sender: sender, deps: deps}
}

// StartTelegramBot returns nil when no token is configured.
func StartTelegramBot(token string, deps Deps) *Bot {
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	tb, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}
	b := New(tb, deps)

	tb.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	tb.Handle("/start", func(c tele.Context) error {
		return c.Send("King K AI online. Link this chat with /link <code> from your profile.")
	})

	tb.Handle("/link", func(c tele.Context) error {
		if c.Chat() == nil {
			return c.Send("Unable to detect chat")
		}
		return c.Send(b.link(context.Background(), c.Chat().ID, c.Message().Payload))
	})

	tb.Handle("/ask", func(c tele.Context) error {
		if c.Chat() == nil {
			return c.Send("Unable to detect chat")
		}
		question := strings.TrimSpace(c.Message().Payload)
		if question == "" {
			return c.Send(askUsage)
		}
		_ = c.Notify(tele.Typing)
		return c.Send(b.ask(context.Background(), c.Chat().ID, question))
	})

	tb.Handle("/last", func(c tele.Context) error {
		if c.Chat() == nil {
			return c.Send("Unable to detect chat")
		}
		_ = c.Notify(tele.UploadingPhoto)
		return c.Send(b.last(context.Background(), c.Chat().ID))
	})

	tb.Handle(tele.OnText, func(c tele.Context) error {
		text := strings.TrimSpace(c.Text())
		if text == "" || c.Chat() == nil {
			return nil
		}
		_ = c.Notify(tele.Typing)
		return c.Send(b.ask(context.Background(), c.Chat().ID, text))
	})

	log.Println("Telegram bot started")
	go tb.Start()
	return b
}

func (b *Bot) link(ctx context.Context, chatID int64, payload string) string {
	code := strings.TrimSpace(payload)
	if code == "" {
		return linkUsage
	}
	if b.deps.Codes == nil || b.deps.Links == nil {
		return "Linking unavailable"
	}
	userID, err := b.deps.Codes.RedeemLinkCode(ctx, code)
	if errors.Is(err, auth.ErrInvalidLinkCode) {
		return "That code is invalid or expired. Generate a new one in your profile."
	}
	if err != nil {
		log.Printf("redeem link code for chat %d: %v", chatID, err)
		return severedReply
	}
	if err := b.deps.Links.SetTelegramChat(ctx, userID, chatID); err != nil {
		log.Printf("link chat %d to user %s: %v", chatID, userID, err)
		return severedReply
	}
	return "Chat linked. Signal cards you share will arrive here."
}

func (b *Bot) userFor(ctx context.Context, chatID int64) (*domain.User, error) {
	if b.deps.Links == nil {
		return nil, nil
	}
	return b.deps.Links.FindUserByTelegramChat(ctx, chatID)
}

func (b *Bot) ask(ctx context.Context, chatID int64, question string) string {
	if b.deps.Advisor == nil {
		return "Assistant not configured. Set OPENAI_API_KEY to enable."
	}
	user, err := b.userFor(ctx, chatID)
	if err != nil {
		log.Printf("lookup chat %d: %v", chatID, err)
		return severedReply
	}
	if user == nil {
		return notLinkedReply
	}

	reply, err := b.deps.Advisor.Ask(ctx, user.ID, question)
	if err != nil {
		log.Printf("assistant error for chat %d: %v", chatID, err)
		return severedReply
	}
	if len(reply) > maxReplyLength {
		reply = reply[:maxReplyLength] + "\n\n[truncated]"
	}
	return reply
}

// last returns the newest analysis as a photo, or a text reply.
func (b *Bot) last(ctx context.Context, chatID int64) interface{} {
	if b.deps.Analyses == nil {
		return "Analysis history unavailable"
	}
	user, err := b.userFor(ctx, chatID)
	if err != nil {
		log.Printf("lookup chat %d: %v", chatID, err)
		return severedReply
	}
	if user == nil {
		return notLinkedReply
	}
	results, err := b.deps.Analyses.Recent(ctx, user.ID, 1)
	if err != nil {
		log.Printf("recent analyses for chat %d: %v", chatID, err)
		return severedReply
	}
	if len(results) == 0 {
		return noAnalysesReply
	}

	result := results[0]
	caption := share.Caption(result)
	if b.deps.Cards == nil {
		return caption
	}
	card, err := b.deps.Cards.RenderSignalCard(&result)
	if err != nil || card == nil || len(card.Bytes) == 0 {
		return caption
	}
	return photo(card, caption)
}
