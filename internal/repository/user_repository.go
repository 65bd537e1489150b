package repository

import (
	"context"
	"errors"
	"fmt"

	"kingk/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

var ErrDuplicate = errors.New("duplicate record")

const uniqueViolation = "23505"

type UserRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewUserRepository(pool PgxPool, tracer trace.Tracer) *UserRepository {
	return &UserRepository{pool: pool, tracer: tracer}
}

func (r *UserRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "user-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
		CREATE EXTENSION IF NOT EXISTS pgcrypto;
		CREATE TABLE IF NOT EXISTS users (
			id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email            TEXT NOT NULL UNIQUE,
			password_hash    TEXT NOT NULL,
			telegram_chat_id BIGINT UNIQUE,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`)
	return err
}

func (r *UserRepository) CreateUser(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	_, span := r.tracer.Start(ctx, "user-repo.create-user")
	defer span.End()

	u := domain.User{Email: email, PasswordHash: passwordHash}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash)
		 VALUES ($1, $2)
		 RETURNING id::text, created_at`,
		email, passwordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("user %s: %w", email, ErrDuplicate)
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	_, span := r.tracer.Start(ctx, "user-repo.find-by-email")
	defer span.End()

	return r.findOne(ctx,
		`SELECT id::text, email, password_hash, telegram_chat_id, created_at
		 FROM users WHERE email = $1`,
		email,
	)
}

func (r *UserRepository) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	_, span := r.tracer.Start(ctx, "user-repo.find-by-id")
	defer span.End()

	return r.findOne(ctx,
		`SELECT id::text, email, password_hash, telegram_chat_id, created_at
		 FROM users WHERE id::text = $1`,
		id,
	)
}

func (r *UserRepository) FindUserByTelegramChat(ctx context.Context, chatID int64) (*domain.User, error) {
	_, span := r.tracer.Start(ctx, "user-repo.find-by-telegram-chat")
	defer span.End()

	return r.findOne(ctx,
		`SELECT id::text, email, password_hash, telegram_chat_id, created_at
		 FROM users WHERE telegram_chat_id = $1`,
		chatID,
	)
}

// SetTelegramChat links a chat to one user, unlinking it from any other.
func (r *UserRepository) SetTelegramChat(ctx context.Context, userID string, chatID int64) error {
	_, span := r.tracer.Start(ctx, "user-repo.set-telegram-chat")
	defer span.End()

	batch := &pgx.Batch{}
	batch.Queue(`UPDATE users SET telegram_chat_id = NULL WHERE telegram_chat_id = $1 AND id::text <> $2`, chatID, userID)
	batch.Queue(`UPDATE users SET telegram_chat_id = $1 WHERE id::text = $2`, chatID, userID)

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	if _, err := br.Exec(); err != nil {
		return err
	}
	tag, err := br.Exec()
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", userID)
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, sql string, arg any) (*domain.User, error) {
	var u domain.User
	var chatID *int64
	err := r.pool.QueryRow(ctx, sql, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &chatID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.TelegramChatID = chatID
	return &u, nil
}
