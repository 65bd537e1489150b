package repository

import (
	"context"
	"time"

	"kingk/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type ChatMessageRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewChatMessageRepository(pool PgxPool, tracer trace.Tracer) *ChatMessageRepository {
	return &ChatMessageRepository{pool: pool, tracer: tracer}
}

func (r *ChatMessageRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "chat-message-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chat_messages (
			id         BIGSERIAL PRIMARY KEY,
			user_id    TEXT NOT NULL,
			role       TEXT NOT NULL CHECK (role IN ('user', 'model')),
			message    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_user_created
			ON chat_messages (user_id, created_at);`)
	return err
}

func (r *ChatMessageRepository) AppendMessage(ctx context.Context, userID string, role domain.ChatRole, text string) error {
	_, span := r.tracer.Start(ctx, "chat-message-repo.append-message")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_messages (user_id, role, message) VALUES ($1, $2, $3)`,
		userID, string(role), text,
	)
	return err
}

// ListMessages returns the user's whole history, oldest first.
func (r *ChatMessageRepository) ListMessages(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	_, span := r.tracer.Start(ctx, "chat-message-repo.list-messages")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT role, message, created_at
		 FROM chat_messages
		 WHERE user_id = $1
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var role, text string
		var createdAt time.Time
		if err := rows.Scan(&role, &text, &createdAt); err != nil {
			return nil, err
		}
		messages = append(messages, domain.ChatMessage{
			Role:      domain.ChatRole(role),
			Text:      text,
			Timestamp: createdAt,
		})
	}
	return messages, rows.Err()
}
