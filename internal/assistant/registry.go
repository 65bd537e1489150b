package assistant

import (
	"context"
	"sync"

	"kingk/internal/llm"

	"go.opentelemetry.io/otel/trace"
)

// Registry hands out one Conversation per user, loading history on first use.
type Registry struct {
	tracer trace.Tracer
	llm    llm.Client
	store  Store
	model  string

	mu    sync.Mutex
	convs map[string]*Conversation
}

func NewRegistry(tracer trace.Tracer, client llm.Client, store Store, model string) *Registry {
	return &Registry{
		tracer: tracer,
		llm:    client,
		store:  store,
		model:  model,
		convs:  make(map[string]*Conversation),
	}
}

func (r *Registry) For(ctx context.Context, userID string) *Conversation {
	r.mu.Lock()
	conv, ok := r.convs[userID]
	if !ok {
		conv = NewConversation(r.tracer, r.llm, r.store, r.model, userID)
		r.convs[userID] = conv
	}
	r.mu.Unlock()

	conv.EnsureLoaded(ctx)
	return conv
}

// Forget drops a user's cached conversation, e.g. after sign-out.
func (r *Registry) Forget(userID string) {
	r.mu.Lock()
	delete(r.convs, userID)
	r.mu.Unlock()
}

// Ask sends text on the user's conversation and returns the reply text.
func (r *Registry) Ask(ctx context.Context, userID, text string) (string, error) {
	reply, err := r.For(ctx, userID).Send(ctx, text)
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}
