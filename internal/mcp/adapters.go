package mcp

import (
	"context"

	"kingk/internal/analysis"
	"kingk/internal/domain"
)

// Analyst runs chart analyses and reads a user's history.
type Analyst interface {
	Analyze(ctx context.Context, userID string, req analysis.Request) (*domain.TradeAnalysisResult, error)
	Recent(ctx context.Context, userID string, limit int) ([]domain.TradeAnalysisResult, error)
	Briefing(ctx context.Context, result *domain.TradeAnalysisResult) (string, error)
}
