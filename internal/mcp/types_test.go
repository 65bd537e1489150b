package mcp

import (
	"errors"
	"testing"
	"time"

	"kingk/internal/analysis"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestNormalizeRecentLimit(t *testing.T) {
	if got := normalizeRecentLimit(0); got != defaultRecentLimit {
		t.Fatalf("expected default %d, got %d", defaultRecentLimit, got)
	}
	if got := normalizeRecentLimit(500); got != maxRecentLimit {
		t.Fatalf("expected cap %d, got %d", maxRecentLimit, got)
	}
	if got := normalizeRecentLimit(7); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestNormalizeRunInput(t *testing.T) {
	userID, req, err := normalizeRunInput(analysisRunInput{
		UserID:     " u1 ",
		Instrument: "eur/usd",
		Images:     []string{"aGk=", "aGk="},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userID != "u1" || req.Instrument != "EUR/USD" || req.Style != analysis.StyleScalp || len(req.Images) != 2 {
		t.Fatalf("unexpected normalized input %s %+v", userID, req)
	}

	_, _, err = normalizeRunInput(analysisRunInput{UserID: "u1", Instrument: "EUR/USD", Images: []string{"aGk=", "aGk=", "aGk="}})
	if !errors.Is(err, analysis.ErrTooManyImages) {
		t.Fatalf("expected ErrTooManyImages, got %v", err)
	}

	_, _, err = normalizeRunInput(analysisRunInput{UserID: "u1", Images: []string{"aGk="}})
	if !errors.Is(err, analysis.ErrNoInstrument) {
		t.Fatalf("expected ErrNoInstrument, got %v", err)
	}

	if _, _, err = normalizeRunInput(analysisRunInput{UserID: "u1", Instrument: "EUR/USD", Style: "daytrade", Images: []string{"aGk="}}); err == nil {
		t.Fatal("expected unknown style error")
	}
}

func TestTimeoutForGivesAnalysisTheLongBudget(t *testing.T) {
	cfg := ServerConfig{RequestTimeout: 90 * time.Second, ReadTimeout: 5 * time.Second}.withDefaults()

	run := &sdkmcp.CallToolRequest{Params: &sdkmcp.CallToolParamsRaw{Name: toolAnalysisRun}}
	if got := timeoutFor(cfg, "tools/call", run); got != 90*time.Second {
		t.Fatalf("analysis_run timeout = %s", got)
	}
	list := &sdkmcp.CallToolRequest{Params: &sdkmcp.CallToolParamsRaw{Name: toolInstrumentsList}}
	if got := timeoutFor(cfg, "tools/call", list); got != 5*time.Second {
		t.Fatalf("instruments_list timeout = %s", got)
	}
	if got := timeoutFor(cfg, "resources/read", &sdkmcp.ReadResourceRequest{}); got != 5*time.Second {
		t.Fatalf("resource read timeout = %s", got)
	}
}

func TestServerConfigDefaults(t *testing.T) {
	cfg := ServerConfig{RequestTimeout: 3 * time.Second}.withDefaults()
	if cfg.ReadTimeout != 3*time.Second {
		t.Fatalf("read timeout must not exceed request timeout, got %s", cfg.ReadTimeout)
	}
	cfg = ServerConfig{}.withDefaults()
	if cfg.RequestTimeout != defaultRequestTimeout || cfg.ReadTimeout != defaultReadTimeout {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestSpanName(t *testing.T) {
	run := &sdkmcp.CallToolRequest{Params: &sdkmcp.CallToolParamsRaw{Name: toolAnalysisRun}}
	if got := spanName("tools/call", run); got != "mcp.tool.analysis_run" {
		t.Fatalf("unexpected span name %q", got)
	}
	if got := spanName("resources/read", &sdkmcp.ReadResourceRequest{}); got != "mcp.resources.read" {
		t.Fatalf("unexpected span name %q", got)
	}
}
