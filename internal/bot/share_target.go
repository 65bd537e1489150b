package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"kingk/internal/domain"
	"kingk/internal/share"

	tele "gopkg.in/telebot.v3"
)

// NewShareTarget connects to Telegram without polling for updates, for
// processes that only push cards. It returns nil when no token is configured.
func NewShareTarget(token string, links ChatLinks) (*Bot, error) {
	if token == "" {
		return nil, nil
	}
	tb, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("create telegram sender: %w", err)
	}
	return New(tb, Deps{Links: links}), nil
}

func photo(img *domain.ImageData, caption string) *tele.Photo {
	return &tele.Photo{File: tele.FromReader(bytes.NewReader(img.Bytes)), Caption: caption}
}

// ShareImage sends the card to the user's linked chat. A chat that blocked the
// bot counts as a cancelled share.
func (b *Bot) ShareImage(ctx context.Context, userID string, a share.Artifact) error {
	if b == nil || b.sender == nil || b.deps.Links == nil {
		return share.ErrNoTarget
	}
	if a.Image == nil || len(a.Image.Bytes) == 0 {
		return share.ErrNoImage
	}
	user, err := b.deps.Links.FindUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || user.TelegramChatID == nil {
		return share.ErrNoTarget
	}

	_, err = b.sender.Send(&tele.Chat{ID: *user.TelegramChatID}, photo(a.Image, a.Caption))
	if errors.Is(err, tele.ErrBlockedByUser) {
		return fmt.Errorf("%w: %v", share.ErrCancelled, err)
	}
	if err != nil {
		return fmt.Errorf("send card to chat %d: %w", *user.TelegramChatID, err)
	}
	return nil
}
