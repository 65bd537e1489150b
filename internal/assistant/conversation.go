// Package assistant holds the text chat with the King K guru. A Conversation
// owns one user's ordered history and allows a single outstanding send.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"kingk/internal/analysis"
	"kingk/internal/domain"
	"kingk/internal/llm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const Greeting = "Voice Link initialized. I am King K, the Guru. Speak your query for real-money execution."

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrSendInFlight = errors.New("a message is already being answered")
	ErrLinkSevered  = errors.New("neural link severed")
)

// Store is the hosted chat history.
type Store interface {
	AppendMessage(ctx context.Context, userID string, role domain.ChatRole, text string) error
	ListMessages(ctx context.Context, userID string) ([]domain.ChatMessage, error)
}

type Conversation struct {
	tracer trace.Tracer
	llm    llm.Client
	store  Store
	model  string
	userID string
	now    func() time.Time

	loadOnce sync.Once

	mu       sync.Mutex
	messages []domain.ChatMessage
	inFlight bool
	loaded   bool
}

func NewConversation(tracer trace.Tracer, client llm.Client, store Store, model, userID string) *Conversation {
	return &Conversation{
		tracer: tracer,
		llm:    client,
		store:  store,
		model:  model,
		userID: userID,
		now:    time.Now,
	}
}

// Load replaces the in-memory history with the persisted one. An empty or
// unreadable history starts with the greeting, which is never persisted.
func (c *Conversation) Load(ctx context.Context) []domain.ChatMessage {
	ctx, span := c.tracer.Start(ctx, "assistant.load")
	defer span.End()

	var history []domain.ChatMessage
	if c.store != nil && c.userID != "" {
		msgs, err := c.store.ListMessages(ctx, c.userID)
		if err != nil {
			log.Printf("Failed to load chat history for user %s: %v", c.userID, err)
		} else {
			history = msgs
		}
	}
	if len(history) == 0 {
		history = []domain.ChatMessage{{Role: domain.RoleModel, Text: Greeting, Timestamp: c.now()}}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = history
	c.loaded = true
	return copyMessages(c.messages)
}

// EnsureLoaded loads history once per Conversation.
func (c *Conversation) EnsureLoaded(ctx context.Context) {
	c.loadOnce.Do(func() { c.Load(ctx) })
}

func (c *Conversation) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Send appends the user message, asks the model with the prior history and
// appends the reply. A second Send while one is outstanding is rejected.
func (c *Conversation) Send(ctx context.Context, text string) (domain.ChatMessage, error) {
	ctx, span := c.tracer.Start(ctx, "assistant.send")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return domain.ChatMessage{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return domain.ChatMessage{}, ErrSendInFlight
	}
	c.inFlight = true
	prior := copyMessages(c.messages)
	userMsg := domain.ChatMessage{Role: domain.RoleUser, Text: text, Timestamp: c.now()}
	c.messages = append(c.messages, userMsg)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	span.SetAttributes(attribute.Int("assistant.history", len(prior)))
	c.persist(ctx, userMsg)

	contents := make([]llm.Content, 0, len(prior)+1)
	for _, m := range prior {
		role := llm.RoleUser
		if m.Role == domain.RoleModel {
			role = llm.RoleModel
		}
		contents = append(contents, llm.Content{Role: role, Parts: []llm.Part{llm.TextPart(m.Text)}})
	}
	contents = append(contents, llm.Content{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart(text)}})

	reply, err := c.llm.Generate(ctx, llm.Request{
		Model:    c.model,
		System:   analysis.GuruInstruction,
		Contents: contents,
	})
	if err != nil {
		span.RecordError(err)
		return domain.ChatMessage{}, fmt.Errorf("%w: %w", ErrLinkSevered, err)
	}

	modelMsg := domain.ChatMessage{Role: domain.RoleModel, Text: reply, Timestamp: c.now()}
	c.persist(ctx, modelMsg)

	c.mu.Lock()
	c.messages = append(c.messages, modelMsg)
	c.mu.Unlock()
	return modelMsg, nil
}

func (c *Conversation) persist(ctx context.Context, msg domain.ChatMessage) {
	if c.store == nil || c.userID == "" {
		return
	}
	if err := c.store.AppendMessage(ctx, c.userID, msg.Role, msg.Text); err != nil {
		log.Printf("Failed to save %s chat message for user %s: %v", msg.Role, c.userID, err)
	}
}

// Messages returns a snapshot of the visible history.
func (c *Conversation) Messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMessages(c.messages)
}

func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func copyMessages(in []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(in))
	copy(out, in)
	return out
}
