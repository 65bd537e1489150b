package handler

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"kingk/internal/assistant"
)

func TestGetChatShowsGreeting(t *testing.T) {
	r := newTestRouter(New(testTracer(), Deps{Auth: &stubAuth{}, Chats: newChats(&stubLLM{})}))
	w := do(r, http.MethodGet, "/api/chat", "good", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Voice Link initialized") {
		t.Fatalf("unexpected chat %d %s", w.Code, w.Body.String())
	}
}

func TestPostChatReply(t *testing.T) {
	r := newTestRouter(New(testTracer(), Deps{Auth: &stubAuth{}, Chats: newChats(&stubLLM{reply: "Wait for the sweep."})}))

	w := do(r, http.MethodPost, "/api/chat", "good", []byte(`{"message":"Gold?"}`), "application/json")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Wait for the sweep.") {
		t.Fatalf("unexpected reply %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, "/api/chat", "good", []byte(`{"message":"  "}`), "application/json"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank message, got %d", w.Code)
	}
}

func TestPostChatProviderFailure(t *testing.T) {
	r := newTestRouter(New(testTracer(), Deps{Auth: &stubAuth{}, Chats: newChats(&stubLLM{err: errors.New("down")})}))
	w := do(r, http.MethodPost, "/api/chat", "good", []byte(`{"message":"hi"}`), "application/json")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), SeveredMessage) {
		t.Fatalf("expected severed 503, got %d %s", w.Code, w.Body.String())
	}
}

func TestPostChatConcurrentSendConflicts(t *testing.T) {
	client := &stubLLM{reply: "first", started: make(chan struct{}, 1), release: make(chan struct{})}
	chats := newChats(client)
	r := newTestRouter(New(testTracer(), Deps{Auth: &stubAuth{}, Chats: chats}))

	first := make(chan int, 1)
	go func() {
		w := do(r, http.MethodPost, "/api/chat", "good", []byte(`{"message":"one"}`), "application/json")
		first <- w.Code
	}()
	<-client.started

	w := do(r, http.MethodPost, "/api/chat", "good", []byte(`{"message":"two"}`), "application/json")
	if w.Code != http.StatusConflict || !strings.Contains(w.Body.String(), assistant.ErrSendInFlight.Error()) {
		t.Fatalf("expected 409, got %d %s", w.Code, w.Body.String())
	}

	close(client.release)
	if code := <-first; code != http.StatusOK {
		t.Fatalf("first send should succeed, got %d", code)
	}
	if n := len(chats.For(t.Context(), "u1").Messages()); n != 3 {
		t.Fatalf("expected greeting plus one exchange, got %d", n)
	}
}
