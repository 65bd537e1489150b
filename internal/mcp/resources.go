package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"kingk/internal/analysis"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerResources(server *mcp.Server, analyst Analyst) {
	server.AddResource(&mcp.Resource{
		URI:         "instruments://catalog",
		Name:        "instruments-catalog",
		Description: "Every instrument a chart can be analysed as",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return jsonResource(req.Params.URI, instrumentsListOutput{Instruments: analysis.Instruments()})
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "analyses://recent/{user_id}{?limit}",
		Name:        "analyses-recent",
		Description: "A user's most recent analyses with an optional limit query param",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if analyst == nil {
			return nil, fmt.Errorf("analysis service unavailable")
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		userID := strings.Trim(parsed.Path, "/")
		if parsed.Scheme != "analyses" || parsed.Host != "recent" || userID == "" || strings.Contains(userID, "/") {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}

		limit := defaultRecentLimit
		if rawLimit := strings.TrimSpace(parsed.Query().Get("limit")); rawLimit != "" {
			n, err := strconv.Atoi(rawLimit)
			if err != nil {
				return nil, fmt.Errorf("invalid limit: %s", rawLimit)
			}
			limit = n
		}

		list, err := analyst.Recent(ctx, userID, normalizeRecentLimit(limit))
		if err != nil {
			return nil, err
		}
		return jsonResource(req.Params.URI, analysesRecentOutput{Analyses: list})
	})
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(body),
		}},
	}, nil
}
