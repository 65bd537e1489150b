package bot

import (
	"context"
	"errors"
	"testing"

	"kingk/internal/domain"
	"kingk/internal/share"

	tele "gopkg.in/telebot.v3"
)

type fakeSender struct {
	to   []tele.Recipient
	what []interface{}
	err  error
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.to = append(f.to, to)
	f.what = append(f.what, what)
	if f.err != nil {
		return nil, f.err
	}
	return &tele.Message{}, nil
}

func cardArtifact() share.Artifact {
	return share.Artifact{
		FileName: "KingK_Signal_XAU_USD.png",
		Caption:  "XAU/USD BUY",
		Image:    &domain.ImageData{MimeType: "image/png", Bytes: []byte("png")},
	}
}

func TestShareImageSendsToLinkedChat(t *testing.T) {
	sender := &fakeSender{}
	b := New(sender, Deps{Links: newMemoryLinks(linkedUser("u1", 42))})

	if err := b.ShareImage(context.Background(), "u1", cardArtifact()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.to) != 1 || sender.to[0].Recipient() != "42" {
		t.Fatalf("unexpected recipients %v", sender.to)
	}
	if p, ok := sender.what[0].(*tele.Photo); !ok || p.Caption != "XAU/USD BUY" {
		t.Fatalf("unexpected payload %#v", sender.what[0])
	}
}

func TestShareImageWithoutLinkedChat(t *testing.T) {
	sender := &fakeSender{}
	b := New(sender, Deps{Links: newMemoryLinks(&domain.User{ID: "u1"})})
	if err := b.ShareImage(context.Background(), "u1", cardArtifact()); !errors.Is(err, share.ErrNoTarget) {
		t.Fatalf("expected ErrNoTarget, got %v", err)
	}
	if len(sender.to) != 0 {
		t.Fatal("nothing should be sent")
	}

	var nilBot *Bot
	if err := nilBot.ShareImage(context.Background(), "u1", cardArtifact()); !errors.Is(err, share.ErrNoTarget) {
		t.Fatalf("expected ErrNoTarget from nil bot, got %v", err)
	}
}

func TestShareImageBlockedChatIsCancellation(t *testing.T) {
	b := New(&fakeSender{err: tele.ErrBlockedByUser}, Deps{Links: newMemoryLinks(linkedUser("u1", 42))})
	if err := b.ShareImage(context.Background(), "u1", cardArtifact()); !errors.Is(err, share.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}

	b = New(&fakeSender{err: errors.New("timeout")}, Deps{Links: newMemoryLinks(linkedUser("u1", 42))})
	err := b.ShareImage(context.Background(), "u1", cardArtifact())
	if err == nil || errors.Is(err, share.ErrCancelled) {
		t.Fatalf("expected plain failure, got %v", err)
	}
}

func TestNewShareTargetWithoutToken(t *testing.T) {
	b, err := NewShareTarget("", nil)
	if err != nil || b != nil {
		t.Fatalf("expected nil target without a token, got %v %v", b, err)
	}
}
