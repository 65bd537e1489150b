// Package share delivers a rendered signal card to the user's linked chat and
// falls back to saving it in the downloads directory.
package share

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"kingk/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const FallbackNotice = "Unable to share. Image saved to downloads."

var (
	// ErrCancelled means the recipient declined the share. It is not a failure.
	ErrCancelled = errors.New("share cancelled")
	ErrNoTarget  = errors.New("no share target linked")
	ErrNoImage   = errors.New("nothing to share")
)

type Outcome string

const (
	OutcomeShared     Outcome = "shared"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeDownloaded Outcome = "downloaded"
)

type Artifact struct {
	FileName string
	Caption  string
	Image    *domain.ImageData
}

type Result struct {
	Outcome Outcome `json:"outcome"`
	Path    string  `json:"path,omitempty"`
	Notice  string  `json:"notice,omitempty"`
}

// Caption is the text sent alongside a signal card.
func Caption(r domain.TradeAnalysisResult) string {
	return fmt.Sprintf(
		"%s %s | %s trend | %s confidence\nEntry %s  SL %s\nTP1 %s  TP2 %s  R:R %s",
		r.Pair,
		strings.ToUpper(string(r.TradeIdea)),
		r.Trend,
		r.Confidence,
		r.Entry, r.StopLoss,
		r.TakeProfit1, r.TakeProfit2, r.RiskReward,
	)
}

// Target is a native share surface. It returns ErrNoTarget when the user has
// nothing linked and ErrCancelled when the recipient opted out.
type Target interface {
	ShareImage(ctx context.Context, userID string, a Artifact) error
}

type Service struct {
	tracer trace.Tracer
	target Target
	dir    string
}

func NewService(tracer trace.Tracer, target Target, dir string) *Service {
	if dir == "" {
		dir = "downloads"
	}
	return &Service{tracer: tracer, target: target, dir: dir}
}

// SetTarget swaps the native target, e.g. once the Telegram bot has started.
func (s *Service) SetTarget(target Target) {
	s.target = target
}

func (s *Service) Share(ctx context.Context, userID string, a Artifact) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "share-service.share")
	defer span.End()

	if a.Image == nil || len(a.Image.Bytes) == 0 {
		return nil, ErrNoImage
	}

	if s.target != nil {
		err := s.target.ShareImage(ctx, userID, a)
		switch {
		case err == nil:
			span.SetAttributes(attribute.String("share.outcome", string(OutcomeShared)))
			return &Result{Outcome: OutcomeShared}, nil
		case errors.Is(err, ErrCancelled):
			span.SetAttributes(attribute.String("share.outcome", string(OutcomeCancelled)))
			return &Result{Outcome: OutcomeCancelled}, nil
		case !errors.Is(err, ErrNoTarget):
			log.Printf("Share to native target failed for user %s: %v", userID, err)
		}
	}

	path, err := s.Download(a)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("share.outcome", string(OutcomeDownloaded)))
	return &Result{Outcome: OutcomeDownloaded, Path: path, Notice: FallbackNotice}, nil
}

// Download writes the artifact into the downloads directory.
func (s *Service) Download(a Artifact) (string, error) {
	if a.Image == nil || len(a.Image.Bytes) == 0 {
		return "", ErrNoImage
	}
	name := filepath.Base(a.FileName)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "KingK_Signal.png"
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create downloads dir: %w", err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, a.Image.Bytes, 0o644); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return path, nil
}
