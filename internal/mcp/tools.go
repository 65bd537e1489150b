package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"kingk/internal/analysis"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *mcp.Server, analyst Analyst) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        toolInstrumentsList,
		Description: "List the instruments a chart can be analysed as, optionally filtered",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in instrumentsListInput) (*mcp.CallToolResult, instrumentsListOutput, error) {
		return nil, instrumentsListOutput{Instruments: analysis.FilterInstruments(in.Query)}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        toolAnalysesRecent,
		Description: "Get a user's most recent saved analyses, newest first",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in analysesRecentInput) (*mcp.CallToolResult, analysesRecentOutput, error) {
		if analyst == nil {
			return nil, analysesRecentOutput{}, fmt.Errorf("analysis service unavailable")
		}
		userID, err := normalizeUserID(in.UserID)
		if err != nil {
			return nil, analysesRecentOutput{}, err
		}
		list, err := analyst.Recent(ctx, userID, normalizeRecentLimit(in.Limit))
		if err != nil {
			return nil, analysesRecentOutput{}, err
		}
		return nil, analysesRecentOutput{Analyses: list}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        toolAnalysisRun,
		Description: "Analyse one or two base64 chart screenshots for an instrument and trading style. Set briefing for the deep-dive explanation",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in analysisRunInput) (*mcp.CallToolResult, analysisRunOutput, error) {
		if analyst == nil {
			return nil, analysisRunOutput{}, fmt.Errorf("analysis service unavailable")
		}
		userID, req, err := normalizeRunInput(in)
		if err != nil {
			return nil, analysisRunOutput{}, err
		}
		result, err := analyst.Analyze(ctx, userID, req)
		if err != nil {
			return nil, analysisRunOutput{}, err
		}

		out := analysisRunOutput{Analysis: result}
		if !in.Briefing {
			return nil, out, nil
		}
		briefing, err := analyst.Briefing(ctx, result)
		if err != nil {
			slog.Warn("mcp briefing failed", "analysis", result.ID, "error", err)
		} else {
			out.Briefing = briefing
		}
		return nil, out, nil
	})
}
