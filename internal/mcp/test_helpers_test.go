package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"kingk/internal/analysis"
	"kingk/internal/domain"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type stubAnalyst struct {
	mu       sync.Mutex
	history  []domain.TradeAnalysisResult
	briefErr error
	briefs   int

	lastUserID  string
	lastLimit   int
	lastRequest analysis.Request
}

func (s *stubAnalyst) Analyze(ctx context.Context, userID string, req analysis.Request) (*domain.TradeAnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUserID = userID
	s.lastRequest = req
	return &domain.TradeAnalysisResult{
		ID:         "a-new",
		Timestamp:  time.Unix(0, 0).UTC(),
		Pair:       req.Instrument,
		Trend:      domain.TrendBullish,
		TradeIdea:  domain.TradeBuy,
		Entry:      "2042.50",
		Confidence: domain.ConfidenceHigh,
	}, nil
}

func (s *stubAnalyst) Recent(ctx context.Context, userID string, limit int) ([]domain.TradeAnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUserID = userID
	s.lastLimit = limit
	return append([]domain.TradeAnalysisResult(nil), s.history...), nil
}

func (s *stubAnalyst) Briefing(ctx context.Context, result *domain.TradeAnalysisResult) (string, error) {
	s.mu.Lock()
	s.briefs++
	s.mu.Unlock()
	if s.briefErr != nil {
		return "", s.briefErr
	}
	return "Gold is bullish.", nil
}

func (s *stubAnalyst) briefingCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.briefs
}

var errBriefing = errors.New("briefing down")

func testServer() (*sdkmcp.Server, *stubAnalyst) {
	analyst := &stubAnalyst{
		history: []domain.TradeAnalysisResult{{
			ID: "a1", Pair: "XAU/USD", Trend: domain.TrendBearish, TradeIdea: domain.TradeSell,
			Confidence: domain.ConfidenceMedium, Timestamp: time.Unix(0, 0).UTC(),
		}},
	}
	srv := NewServer(nil, analyst, ServerConfig{RequestTimeout: time.Second})
	return srv, analyst
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

type authRoundTripper struct {
	token string
	base  http.RoundTripper
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.token != "" {
		clone.Header.Set("Authorization", "Bearer "+t.token)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}
