package handler

import (
	"context"
	"sync"
	"time"

	"kingk/internal/analysis"
	"kingk/internal/assistant"
	"kingk/internal/auth"
	"kingk/internal/domain"
	"kingk/internal/llm"
	"kingk/internal/repository"
	"kingk/internal/share"
	"kingk/internal/voice"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

func testTracer() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer("handler-test")
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

type stubAuth struct {
	signUpErr error
	signedOut []string
}

func (s *stubAuth) session(token string) *domain.Session {
	return &domain.Session{AccessToken: token, UserID: "u1", Email: "t@example.com", ExpiresAt: time.Now().Add(time.Hour)}
}

func (s *stubAuth) SignUp(_ context.Context, _, _ string) (*domain.Session, error) {
	if s.signUpErr != nil {
		return nil, s.signUpErr
	}
	return s.session("good"), nil
}

func (s *stubAuth) SignIn(_ context.Context, _, password string) (*domain.Session, error) {
	if password != "secret1" {
		return nil, auth.ErrInvalidCredentials
	}
	return s.session("good"), nil
}

func (s *stubAuth) SignOut(_ context.Context, token string) error {
	s.signedOut = append(s.signedOut, token)
	return nil
}

func (s *stubAuth) Refresh(context.Context, string) (*domain.Session, error) {
	return s.session("fresh"), nil
}

func (s *stubAuth) Verify(_ context.Context, token string) (*domain.Session, error) {
	if token != "good" {
		return nil, auth.ErrInvalidToken
	}
	return s.session(token), nil
}

func (s *stubAuth) IssueLinkCode(context.Context, string) (string, error) { return "ABCD1234", nil }

func (s *stubAuth) User(_ context.Context, id string) (*domain.User, error) {
	return &domain.User{ID: id, Email: "t@example.com"}, nil
}

type stubAnalyses struct {
	mu       sync.Mutex
	requests []analysis.Request
	err      error
	stored   map[string]domain.TradeAnalysisResult
}

func sampleResult() domain.TradeAnalysisResult {
	return domain.TradeAnalysisResult{
		ID: "a1", Pair: "XAU/USD", Trend: domain.TrendBullish, TradeIdea: domain.TradeBuy,
		Entry: "2042.50", StopLoss: "2038.00", TakeProfit1: "2050.00", TakeProfit2: "2058.00",
		RiskReward: "1:3", Confidence: domain.ConfidenceHigh, Timestamp: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *stubAnalyses) Analyze(_ context.Context, _ string, req analysis.Request) (*domain.TradeAnalysisResult, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if len(req.Images) == 0 {
		return nil, analysis.ErrNoImages
	}
	if s.err != nil {
		return nil, s.err
	}
	r := sampleResult()
	r.Pair = req.Instrument
	return &r, nil
}

func (s *stubAnalyses) Briefing(context.Context, *domain.TradeAnalysisResult) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "Smart money swept sell-side liquidity.", nil
}

func (s *stubAnalyses) Stats(context.Context, string) (int, error) { return len(s.stored), nil }

func (s *stubAnalyses) Recent(context.Context, string, int) ([]domain.TradeAnalysisResult, error) {
	out := make([]domain.TradeAnalysisResult, 0, len(s.stored))
	for _, r := range s.stored {
		out = append(out, r)
	}
	return out, nil
}

func (s *stubAnalyses) Find(_ context.Context, _, id string) (*domain.TradeAnalysisResult, error) {
	r, ok := s.stored[id]
	if !ok {
		return nil, repository.ErrAnalysisNotFound
	}
	return &r, nil
}

type stubCards struct{}

func (stubCards) RenderSignalCard(*domain.TradeAnalysisResult) (*domain.ImageData, error) {
	return &domain.ImageData{MimeType: "image/png", Bytes: []byte("\x89PNG")}, nil
}

type stubSharer struct {
	artifacts []share.Artifact
}

func (s *stubSharer) Share(_ context.Context, _ string, a share.Artifact) (*share.Result, error) {
	s.artifacts = append(s.artifacts, a)
	return &share.Result{Outcome: share.OutcomeDownloaded, Path: "downloads/" + a.FileName, Notice: share.FallbackNotice}, nil
}

type stubLLM struct {
	reply   string
	err     error
	started chan struct{}
	release chan struct{}
}

func (s *stubLLM) Generate(context.Context, llm.Request) (string, error) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	return s.reply, s.err
}

type nopChatStore struct{}

func (nopChatStore) AppendMessage(context.Context, string, domain.ChatRole, string) error { return nil }
func (nopChatStore) ListMessages(context.Context, string) ([]domain.ChatMessage, error) {
	return nil, nil
}

func newChats(client llm.Client) *assistant.Registry {
	return assistant.NewRegistry(testTracer(), client, nopChatStore{}, "m")
}

type fakeChannel struct {
	msgs      chan voice.ServerMessage
	sent      chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		msgs:   make(chan voice.ServerMessage, 8),
		sent:   make(chan []byte, 8),
		closed: make(chan struct{}),
	}
}

func (f *fakeChannel) SendAudio(_ context.Context, pcm []byte) error {
	f.sent <- pcm
	return nil
}

func (f *fakeChannel) Messages() <-chan voice.ServerMessage { return f.msgs }

func (f *fakeChannel) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		close(f.msgs)
	})
	return nil
}

type fakeDialer struct {
	ch  *fakeChannel
	err error
	cfg voice.Config
}

func (d *fakeDialer) Dial(_ context.Context, cfg voice.Config) (voice.Channel, error) {
	d.cfg = cfg
	if d.err != nil {
		return nil, d.err
	}
	return d.ch, nil
}
