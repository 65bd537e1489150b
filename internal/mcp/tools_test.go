package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestToolsListAndInvoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, analyst := testServer()
	session, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer session.Close()

	tools, err := session.ListTools(ctx, &sdkmcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools failed: %v", err)
	}
	if len(tools.Tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools.Tools))
	}

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "instruments_list", Arguments: map[string]any{"query": "crypto"}})
	if err != nil {
		t.Fatalf("call tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}

	res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "analyses_recent", Arguments: map[string]any{"user_id": "u1", "limit": 999}})
	if err != nil {
		t.Fatalf("recent tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected recent tool error: %+v", res.Content)
	}
	if analyst.lastUserID != "u1" || analyst.lastLimit != maxRecentLimit {
		t.Fatalf("unexpected recent call user=%s limit=%d", analyst.lastUserID, analyst.lastLimit)
	}

	img := base64.StdEncoding.EncodeToString([]byte("\x89PNG chart"))
	res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "analysis_run", Arguments: map[string]any{
		"user_id": "u1", "instrument": "xau/usd", "style": "swing", "images": []string{img},
	}})
	if err != nil {
		t.Fatalf("run tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected run tool error: %+v", res.Content)
	}
	if analyst.lastRequest.Instrument != "XAU/USD" || analyst.lastRequest.Style != "Swing" {
		t.Fatalf("unexpected request %+v", analyst.lastRequest)
	}
	if len(analyst.lastRequest.Images) != 1 || string(analyst.lastRequest.Images[0]) != "\x89PNG chart" {
		t.Fatal("expected decoded image bytes")
	}
}

func TestToolsValidationFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, _ := testServer()
	session, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer session.Close()

	cases := map[string]map[string]any{
		"unknown instrument": {"user_id": "u1", "instrument": "FAKE", "images": []string{"aGk="}},
		"no images":          {"user_id": "u1", "instrument": "XAU/USD", "images": []string{}},
		"bad base64":         {"user_id": "u1", "instrument": "XAU/USD", "images": []string{"%%%"}},
		"missing user":       {"instrument": "XAU/USD", "images": []string{"aGk="}},
	}
	for name, args := range cases {
		res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "analysis_run", Arguments: args})
		if err != nil {
			t.Fatalf("%s: unexpected protocol error: %v", name, err)
		}
		if !res.IsError {
			t.Fatalf("%s: expected tool-level validation error", name)
		}
	}
}

func TestAnalysisRunSurvivesBriefingFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, analyst := testServer()
	analyst.briefErr = errBriefing
	session, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer session.Close()

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "analysis_run", Arguments: map[string]any{
		"user_id": "u1", "instrument": "BTC/USD", "images": []string{"aGk="}, "briefing": true,
	}})
	if err != nil {
		t.Fatalf("run tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("briefing failure must not fail the run: %+v", res.Content)
	}
}

func TestAnalysisRunBriefingIsOptIn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, analyst := testServer()
	session, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer session.Close()

	args := map[string]any{"user_id": "u1", "instrument": "XAU/USD", "images": []string{"aGk="}}
	if _, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "analysis_run", Arguments: args}); err != nil {
		t.Fatalf("run tool failed: %v", err)
	}
	if n := analyst.briefingCalls(); n != 0 {
		t.Fatalf("briefing must not run unless asked, got %d calls", n)
	}

	args["briefing"] = true
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "analysis_run", Arguments: args})
	if err != nil {
		t.Fatalf("run tool failed: %v", err)
	}
	if n := analyst.briefingCalls(); n != 1 {
		t.Fatalf("expected one briefing call, got %d", n)
	}
	var out analysisRunOutput
	raw, _ := json.Marshal(res.StructuredContent)
	if err := json.Unmarshal(raw, &out); err != nil || out.Briefing != "Gold is bullish." {
		t.Fatalf("expected briefing in output, got %s (%v)", raw, err)
	}
}
