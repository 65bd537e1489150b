package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kingk/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

var ErrAnalysisNotFound = errors.New("analysis not found")

// AnalysisRepository stores one row per finished analysis. Identical requests
// produce separate rows.
type AnalysisRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewAnalysisRepository(pool PgxPool, tracer trace.Tracer) *AnalysisRepository {
	return &AnalysisRepository{pool: pool, tracer: tracer}
}

func (r *AnalysisRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "analysis-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS analyses (
			id                 UUID PRIMARY KEY,
			user_id            TEXT NOT NULL,
			pair               TEXT NOT NULL,
			trend              TEXT NOT NULL,
			trade_idea         TEXT NOT NULL,
			entry_price        TEXT NOT NULL,
			stop_loss          TEXT NOT NULL,
			take_profit_1      TEXT NOT NULL,
			take_profit_2      TEXT NOT NULL,
			rr_ratio           TEXT NOT NULL,
			reasoning          TEXT NOT NULL,
			confidence         TEXT NOT NULL,
			confluence_factors JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at         TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_analyses_user_created
			ON analyses (user_id, created_at DESC);`)
	return err
}

func (r *AnalysisRepository) InsertAnalysis(ctx context.Context, userID string, a domain.TradeAnalysisResult) error {
	_, span := r.tracer.Start(ctx, "analysis-repo.insert-analysis")
	defer span.End()

	factors := a.ConfluenceFactors
	if factors == nil {
		factors = []domain.ConfluenceFactor{}
	}
	factorsJSON, err := json.Marshal(factors)
	if err != nil {
		return fmt.Errorf("encode confluence factors: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO analyses (
			id, user_id, pair, trend, trade_idea, entry_price, stop_loss,
			take_profit_1, take_profit_2, rr_ratio, reasoning, confidence,
			confluence_factors, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, userID, a.Pair, string(a.Trend), string(a.TradeIdea), a.Entry, a.StopLoss,
		a.TakeProfit1, a.TakeProfit2, a.RiskReward, a.Reasoning, string(a.Confidence),
		factorsJSON, a.Timestamp,
	)
	return err
}

func (r *AnalysisRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	_, span := r.tracer.Start(ctx, "analysis-repo.count-by-user")
	defer span.End()

	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM analyses WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

const analysisColumns = `id::text, pair, trend, trade_idea, entry_price, stop_loss,
	take_profit_1, take_profit_2, rr_ratio, reasoning, confidence,
	confluence_factors, created_at`

func (r *AnalysisRepository) ListRecent(ctx context.Context, userID string, limit int) ([]domain.TradeAnalysisResult, error) {
	_, span := r.tracer.Start(ctx, "analysis-repo.list-recent")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT `+analysisColumns+`
		 FROM analyses
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.TradeAnalysisResult
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *a)
	}
	return results, rows.Err()
}

func (r *AnalysisRepository) FindByID(ctx context.Context, userID, id string) (*domain.TradeAnalysisResult, error) {
	_, span := r.tracer.Start(ctx, "analysis-repo.find-by-id")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+`
		 FROM analyses
		 WHERE user_id = $1 AND id::text = $2`,
		userID, id,
	)
	a, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAnalysisNotFound
	}
	return a, err
}

func scanAnalysis(row pgx.Row) (*domain.TradeAnalysisResult, error) {
	var a domain.TradeAnalysisResult
	var trend, idea, confidence string
	var factorsJSON []byte
	var createdAt time.Time
	if err := row.Scan(
		&a.ID, &a.Pair, &trend, &idea, &a.Entry, &a.StopLoss,
		&a.TakeProfit1, &a.TakeProfit2, &a.RiskReward, &a.Reasoning, &confidence,
		&factorsJSON, &createdAt,
	); err != nil {
		return nil, err
	}
	a.Trend = domain.Trend(trend)
	a.TradeIdea = domain.TradeIdea(idea)
	a.Confidence = domain.Confidence(confidence)
	a.Timestamp = createdAt
	if len(factorsJSON) > 0 {
		if err := json.Unmarshal(factorsJSON, &a.ConfluenceFactors); err != nil {
			return nil, fmt.Errorf("decode confluence factors: %w", err)
		}
	}
	return &a, nil
}
