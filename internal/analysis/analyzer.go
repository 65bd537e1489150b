// Package analysis maps chart screenshots and an instrument to a single
// multimodal model request and turns the structured reply into a trade signal.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"kingk/internal/domain"
	"kingk/internal/llm"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	MaxImages             = 2
	defaultPersistTimeout = 10 * time.Second
	defaultMIMEType       = "image/png"
)

var (
	ErrNoImages            = errors.New("at least one chart image is required")
	ErrTooManyImages       = fmt.Errorf("at most %d chart images are accepted", MaxImages)
	ErrNoInstrument        = errors.New("an instrument must be selected")
	ErrAnalysisUnavailable = errors.New("analysis unavailable")
)

type Style string

const (
	StyleScalp Style = "Scalp"
	StyleSwing Style = "Swing"
)

// ParseStyle accepts either style name case-insensitively; blank means Scalp.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "scalp":
		return StyleScalp, nil
	case "swing":
		return StyleSwing, nil
	}
	return "", fmt.Errorf("unknown trading style %q", s)
}

type Request struct {
	Images     [][]byte
	Instrument string
	Style      Style
}

// Store persists finished analyses and answers history queries.
type Store interface {
	InsertAnalysis(ctx context.Context, userID string, result domain.TradeAnalysisResult) error
	CountByUser(ctx context.Context, userID string) (int, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.TradeAnalysisResult, error)
	FindByID(ctx context.Context, userID, id string) (*domain.TradeAnalysisResult, error)
}

type Analyzer struct {
	tracer         trace.Tracer
	llm            llm.Client
	store          Store
	model          string
	persistTimeout time.Duration
	resolved       *jsonschema.Resolved
	now            func() time.Time
	newID          func() string

	persisting sync.WaitGroup
}

func NewAnalyzer(tracer trace.Tracer, client llm.Client, store Store, model string, persistTimeout time.Duration) (*Analyzer, error) {
	resolved, err := ResultSchema().Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve analysis schema: %w", err)
	}
	if persistTimeout <= 0 {
		persistTimeout = defaultPersistTimeout
	}
	return &Analyzer{
		tracer:         tracer,
		llm:            client,
		store:          store,
		model:          model,
		persistTimeout: persistTimeout,
		resolved:       resolved,
		now:            time.Now,
		newID:          uuid.NewString,
	}, nil
}

// Analyze issues exactly one provider request for a valid input and none for
// an invalid one. On success the result is persisted in the background.
func (a *Analyzer) Analyze(ctx context.Context, userID string, req Request) (*domain.TradeAnalysisResult, error) {
	ctx, span := a.tracer.Start(ctx, "analysis.analyze")
	defer span.End()

	instrument := strings.TrimSpace(req.Instrument)
	switch {
	case len(req.Images) == 0:
		return nil, ErrNoImages
	case len(req.Images) > MaxImages:
		return nil, ErrTooManyImages
	case instrument == "":
		return nil, ErrNoInstrument
	}
	style := req.Style
	if style == "" {
		style = StyleScalp
	}
	span.SetAttributes(
		attribute.String("analysis.instrument", instrument),
		attribute.String("analysis.style", string(style)),
		attribute.Int("analysis.images", len(req.Images)),
	)

	parts := make([]llm.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, llm.ImagePart(detectMIME(img), img))
	}
	parts = append(parts, llm.TextPart(buildPrompt(instrument, style)))

	text, err := a.llm.Generate(ctx, llm.Request{
		Model:      a.model,
		Contents:   []llm.Content{{Role: llm.RoleUser, Parts: parts}},
		Schema:     ResultSchema(),
		SchemaName: schemaName,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrAnalysisUnavailable, err)
	}

	result, err := a.decode(text)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrAnalysisUnavailable, err)
	}
	result.ID = a.newID()
	result.Timestamp = a.now()

	if a.store != nil && userID != "" {
		a.persist(ctx, userID, *result)
	}
	return result, nil
}

func (a *Analyzer) decode(text string) (*domain.TradeAnalysisResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, llm.ErrEmptyResponse
	}
	var instance any
	if err := json.Unmarshal([]byte(text), &instance); err != nil {
		return nil, fmt.Errorf("parse provider json: %w", err)
	}
	if err := a.resolved.Validate(instance); err != nil {
		return nil, fmt.Errorf("provider json does not match schema: %w", err)
	}
	var result domain.TradeAnalysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &result, nil
}

func (a *Analyzer) persist(ctx context.Context, userID string, result domain.TradeAnalysisResult) {
	ctx = context.WithoutCancel(ctx)
	a.persisting.Add(1)
	go func() {
		defer a.persisting.Done()
		ctx, cancel := context.WithTimeout(ctx, a.persistTimeout)
		defer cancel()
		if err := a.store.InsertAnalysis(ctx, userID, result); err != nil {
			log.Printf("Failed to save analysis %s for user %s: %v", result.ID, userID, err)
		}
	}()
}

// Wait blocks until background persistence has drained.
func (a *Analyzer) Wait() {
	a.persisting.Wait()
}

// Briefing asks the guru for a narrative deconstruction of a finished signal.
func (a *Analyzer) Briefing(ctx context.Context, result *domain.TradeAnalysisResult) (string, error) {
	ctx, span := a.tracer.Start(ctx, "analysis.briefing")
	defer span.End()

	if result == nil {
		return "", fmt.Errorf("briefing requires an analysis result")
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode analysis context: %w", err)
	}

	text, err := a.llm.Generate(ctx, llm.Request{
		Model:  a.model,
		System: GuruInstruction,
		Contents: []llm.Content{
			{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart("Analysis context: " + string(raw))}},
			{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart(buildBriefingPrompt(result))}},
		},
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %w", ErrAnalysisUnavailable, err)
	}
	return text, nil
}

// Stats returns how many analyses the user has stored.
func (a *Analyzer) Stats(ctx context.Context, userID string) (int, error) {
	ctx, span := a.tracer.Start(ctx, "analysis.stats")
	defer span.End()

	if a.store == nil {
		return 0, nil
	}
	n, err := a.store.CountByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count analyses: %w", err)
	}
	return n, nil
}

func (a *Analyzer) Recent(ctx context.Context, userID string, limit int) ([]domain.TradeAnalysisResult, error) {
	ctx, span := a.tracer.Start(ctx, "analysis.recent")
	defer span.End()

	if a.store == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	results, err := a.store.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return results, nil
}

func (a *Analyzer) Find(ctx context.Context, userID, id string) (*domain.TradeAnalysisResult, error) {
	ctx, span := a.tracer.Start(ctx, "analysis.find")
	defer span.End()

	if a.store == nil {
		return nil, fmt.Errorf("analysis store is not configured")
	}
	return a.store.FindByID(ctx, userID, id)
}

func detectMIME(img []byte) string {
	mt := mimetype.Detect(img)
	if mt == nil || !strings.HasPrefix(mt.String(), "image/") {
		return defaultMIMEType
	}
	return mt.String()
}
