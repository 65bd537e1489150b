package mcp

import (
	"fmt"
	"strings"

	"kingk/internal/analysis"
	"kingk/internal/codec"
	"kingk/internal/domain"
)

const (
	toolInstrumentsList = "instruments_list"
	toolAnalysesRecent  = "analyses_recent"
	toolAnalysisRun     = "analysis_run"

	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

type instrumentsListInput struct {
	Query string `json:"query,omitempty" jsonschema:"optional case-insensitive filter on name or category"`
}

type instrumentsListOutput struct {
	Instruments []domain.Instrument `json:"instruments"`
}

type analysesRecentInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"id of the user whose history is read"`
	Limit  int    `json:"limit,omitempty" jsonschema:"number of analyses to return, max 100"`
}

type analysesRecentOutput struct {
	Analyses []domain.TradeAnalysisResult `json:"analyses"`
}

type analysisRunInput struct {
	UserID     string   `json:"user_id,omitempty" jsonschema:"id of the user the analysis is saved for"`
	Instrument string   `json:"instrument" jsonschema:"instrument name from instruments_list (e.g. XAU/USD)"`
	Style      string   `json:"style,omitempty" jsonschema:"Scalp or Swing, default Scalp"`
	Images     []string `json:"images" jsonschema:"one or two base64-encoded chart screenshots"`
	Briefing   bool     `json:"briefing,omitempty" jsonschema:"also return the spoken deep-dive briefing, costs a second model call"`
}

type analysisRunOutput struct {
	Analysis *domain.TradeAnalysisResult `json:"analysis"`
	Briefing string                      `json:"briefing,omitempty"`
}

func normalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("user_id is required")
	}
	return userID, nil
}

func normalizeRecentLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}

func normalizeRunInput(in analysisRunInput) (string, analysis.Request, error) {
	userID, err := normalizeUserID(in.UserID)
	if err != nil {
		return "", analysis.Request{}, err
	}
	inst, ok := analysis.LookupInstrument(in.Instrument)
	if !ok {
		if strings.TrimSpace(in.Instrument) == "" {
			return "", analysis.Request{}, analysis.ErrNoInstrument
		}
		return "", analysis.Request{}, fmt.Errorf("unsupported instrument: %s", in.Instrument)
	}
	style, err := analysis.ParseStyle(in.Style)
	if err != nil {
		return "", analysis.Request{}, err
	}
	if len(in.Images) == 0 {
		return "", analysis.Request{}, analysis.ErrNoImages
	}
	if len(in.Images) > analysis.MaxImages {
		return "", analysis.Request{}, analysis.ErrTooManyImages
	}

	images := make([][]byte, 0, len(in.Images))
	for i, raw := range in.Images {
		img, err := codec.DecodeBase64(strings.TrimSpace(raw))
		if err != nil {
			return "", analysis.Request{}, fmt.Errorf("image %d: %w", i+1, err)
		}
		if len(img) == 0 {
			return "", analysis.Request{}, fmt.Errorf("image %d is empty", i+1)
		}
		images = append(images, img)
	}
	return userID, analysis.Request{Images: images, Instrument: inst.Name, Style: style}, nil
}
