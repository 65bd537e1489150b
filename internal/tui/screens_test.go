package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"kingk/internal/analysis"
	"kingk/internal/assistant"
	"kingk/internal/domain"
	"kingk/internal/share"

	tea "github.com/charmbracelet/bubbletea"
	"go.opentelemetry.io/otel/trace"
)

func TestOnboardingSlidesAndSkip(t *testing.T) {
	m := NewOnboardingModel()
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.Step() != 2 {
		t.Fatalf("expected last slide, got %d", m.Step())
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	done, ok := find[onboardingDoneMsg](collect(cmd))
	if !ok || done.skipped {
		t.Fatalf("expected completion, got %+v", done)
	}

	m = NewOnboardingModel()
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	done, ok = find[onboardingDoneMsg](collect(cmd))
	if !ok || !done.skipped {
		t.Fatal("expected skip")
	}
}

func TestDashboardPromptStartsChat(t *testing.T) {
	m := NewDashboardModel(testServices())
	m.SetSize(120, 40)
	m.prompt.SetValue("Is gold a buy?")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	msg, ok := find[startChatMsg](collect(cmd))
	if !ok || string(msg) != "Is gold a buy?" {
		t.Fatalf("expected start chat message, got %v", msg)
	}
	if m.prompt.Value() != "" {
		t.Fatal("expected prompt to be cleared")
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	open, ok := find[openMsg](collect(cmd))
	if !ok || open != openMsg(dashboardMenu[1].screen) {
		t.Fatalf("expected open of %s, got %v", dashboardMenu[1].screen, open)
	}
}

func TestDashboardLoadsScanCount(t *testing.T) {
	m := NewDashboardModel(testServices())
	cmd := m.Enter("u1", "guru@example.com")
	stats, ok := find[statsMsg](collect(cmd))
	if !ok {
		t.Fatal("expected stats message")
	}
	m, _ = m.Update(stats)
	if m.Scans() != 3 {
		t.Fatalf("expected 3 scans, got %d", m.Scans())
	}
	if !strings.Contains(m.View(), "3 deep scans") {
		t.Fatal("expected scan count in view")
	}
}

func TestAnalysisFilterPickAndRun(t *testing.T) {
	svc := testServices()
	analyst := svc.Analyses.(*stubAnalyst)
	m := NewAnalysisModel(svc)
	m.SetSize(120, 40)
	m.Enter("u1")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("xau")})
	inst, ok := m.Selected()
	if !ok || inst.Name != "XAU/USD" {
		t.Fatalf("expected XAU/USD selected, got %+v", inst)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m.charts[0].SetValue("h1.png")
	m.charts[1].SetValue(" m15.png ")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.IsRunning() {
		t.Fatal("expected running after enter")
	}
	done, ok := find[analysisDoneMsg](collect(cmd))
	if !ok {
		t.Fatal("expected analysis result")
	}
	if analyst.lastReq.Instrument != "XAU/USD" || analyst.lastReq.Style != analysis.StyleSwing {
		t.Fatalf("unexpected request %+v", analyst.lastReq)
	}
	if len(analyst.lastReq.Images) != 2 || string(analyst.lastReq.Images[1]) != "png:m15.png" {
		t.Fatalf("unexpected images %q", analyst.lastReq.Images)
	}

	m, _ = m.Update(done)
	if m.IsRunning() || m.Result() == nil {
		t.Fatal("expected result view")
	}
	if !strings.Contains(m.View(), "BOS Detected") {
		t.Fatal("expected confluence factors in result view")
	}
}

func TestAnalysisRequiresAChart(t *testing.T) {
	m := NewAnalysisModel(testServices())
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || m.IsRunning() {
		t.Fatal("expected no run without charts")
	}
	if !errors.Is(m.err, analysis.ErrNoImages) {
		t.Fatalf("expected ErrNoImages, got %v", m.err)
	}
}

func TestAnalysisUnavailableShowsSeveredNotice(t *testing.T) {
	m := NewAnalysisModel(testServices())
	m, _ = m.Update(analysisDoneMsg{err: analysis.ErrAnalysisUnavailable})
	if !strings.Contains(m.View(), severedNotice) {
		t.Fatal("expected severed notice")
	}
}

func TestAnalysisBriefingAndShare(t *testing.T) {
	svc := testServices()
	sharer := svc.Share.(*stubSharer)
	m := NewAnalysisModel(svc)
	m.SetSize(120, 40)
	m.Enter("u1")
	m, _ = m.Update(analysisDoneMsg{result: sampleResult()})

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'b'}})
	brief, ok := find[briefingMsg](collect(cmd))
	if !ok || brief.err != nil {
		t.Fatal("expected briefing")
	}
	m, _ = m.Update(brief)
	if !strings.Contains(m.View(), "Gold holds above the sweep.") {
		t.Fatal("expected briefing text in view")
	}

	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	shared, ok := find[shareDoneMsg](collect(cmd))
	if !ok {
		t.Fatal("expected share result")
	}
	if sharer.last.FileName != "KingK_Signal_XAU_USD.png" || !strings.HasPrefix(sharer.last.Caption, "XAU/USD BUY") {
		t.Fatalf("unexpected artifact %+v", sharer.last)
	}
	m, _ = m.Update(shared)
	if !strings.Contains(m.View(), "sent to your Telegram") {
		t.Fatal("expected share notice")
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	if m.Result() != nil {
		t.Fatal("expected new scan to clear the result")
	}
}

func TestShareNoticeFallback(t *testing.T) {
	got := shareNotice(&share.Result{Outcome: share.OutcomeDownloaded, Path: "downloads/x.png", Notice: share.FallbackNotice}, nil)
	if !strings.Contains(got, share.FallbackNotice) || !strings.Contains(got, "downloads/x.png") {
		t.Fatalf("unexpected notice %q", got)
	}
	if shareNotice(&share.Result{Outcome: share.OutcomeCancelled}, nil) != "Share cancelled." {
		t.Fatal("unexpected cancel notice")
	}
}

func TestAssistantSendsPendingMessage(t *testing.T) {
	m := NewAssistantModel(testServices())
	m.SetSize(120, 40)

	conv, ok := find[conversationMsg](collect(m.Enter("u1", "What about gold?")))
	if !ok {
		t.Fatal("expected conversation to load")
	}
	m, cmd := m.Update(conv)
	if !m.IsWaiting() {
		t.Fatal("expected pending message to be sent")
	}
	if m.MessageCount() != 2 {
		t.Fatalf("expected greeting and question, got %d", m.MessageCount())
	}

	m.input.SetValue("another")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.MessageCount() != 2 {
		t.Fatal("input must be disabled while waiting")
	}

	reply, ok := find[replyMsg](collect(cmd))
	if !ok || reply.err != nil {
		t.Fatalf("expected reply, got %+v", reply)
	}
	m, _ = m.Update(reply)
	if m.IsWaiting() || m.MessageCount() != 3 {
		t.Fatalf("expected 3 messages after reply, got %d", m.MessageCount())
	}
}

func TestAssistantFailureShowsSeveredNotice(t *testing.T) {
	svc := testServices()
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	svc.Chats = assistant.NewRegistry(tracer, &stubLLM{err: errors.New("boom")}, nopChatStore{}, "m")
	m := NewAssistantModel(svc)
	m.SetSize(120, 40)

	conv, _ := find[conversationMsg](collect(m.Enter("u1", "")))
	m, _ = m.Update(conv)
	m.input.SetValue("hello")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	reply, _ := find[replyMsg](collect(cmd))
	m, _ = m.Update(reply)
	if !errors.Is(m.err, assistant.ErrLinkSevered) {
		t.Fatalf("expected ErrLinkSevered, got %v", m.err)
	}
	if !strings.Contains(m.View(), severedNotice) {
		t.Fatal("expected severed notice in view")
	}
}

func TestAssistantDisabledView(t *testing.T) {
	svc := testServices()
	svc.Chats = nil
	m := NewAssistantModel(svc)
	m.SetSize(120, 40)
	if !strings.Contains(m.View(), "not available") {
		t.Fatal("expected disabled notice")
	}
}

func TestProfileLoadsAndIssuesLinkCode(t *testing.T) {
	m := NewProfileModel(testServices())
	m.SetSize(120, 40)
	loaded, ok := find[profileMsg](collect(m.Enter("u1")))
	if !ok || loaded.err != nil {
		t.Fatalf("expected profile, got %+v", loaded)
	}
	m, _ = m.Update(loaded)
	view := m.View()
	if !strings.Contains(view, "guru@example.com") || !strings.Contains(view, "linked") {
		t.Fatal("expected email and telegram status")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	code, ok := find[linkCodeMsg](collect(cmd))
	if !ok {
		t.Fatal("expected link code")
	}
	m, _ = m.Update(code)
	if m.LinkCode() != "AB12CD34" || !strings.Contains(m.View(), "/link AB12CD34") {
		t.Fatal("expected link instructions")
	}
}

func TestProfileSignOutCallsAuth(t *testing.T) {
	svc := testServices()
	if _, err := svc.Auth.SignIn(context.Background(), "guru@example.com", "secret1"); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	m := NewProfileModel(svc)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'o'}})
	if _, ok := find[signOutDoneMsg](collect(cmd)); !ok {
		t.Fatal("expected sign-out result")
	}
	if svc.Auth.Session() != nil {
		t.Fatal("expected session to be cleared")
	}
}

func TestRenderStrengthBarClamps(t *testing.T) {
	over := RenderStrengthBar(domain.ConfluenceFactor{Factor: "FVG", Strength: 140}, 10)
	if !strings.Contains(over, "100%") {
		t.Fatalf("expected clamp to 100, got %q", over)
	}
	under := RenderStrengthBar(domain.ConfluenceFactor{Factor: "FVG", Strength: -5}, 10)
	if !strings.Contains(under, "  0%") {
		t.Fatalf("expected clamp to 0, got %q", under)
	}
}
