package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// analysis_run waits on the model, so it gets the long budget.
	defaultRequestTimeout = 60 * time.Second
	defaultReadTimeout    = 10 * time.Second
)

type ServerConfig struct {
	// RequestTimeout bounds analysis_run.
	RequestTimeout time.Duration
	// ReadTimeout bounds every other request. It never exceeds RequestTimeout.
	ReadTimeout time.Duration
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.ReadTimeout > c.RequestTimeout {
		c.ReadTimeout = c.RequestTimeout
	}
	return c
}

func NewServer(tracer trace.Tracer, analyst Analyst, cfg ServerConfig) *sdkmcp.Server {
	cfg = cfg.withDefaults()

	srv := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "kingk-mcp",
		Version: "1.0.0",
	}, &sdkmcp.ServerOptions{
		Instructions: "Analyse trading chart screenshots with analysis_run and read a user's saved King K signals. " +
			"List instruments first; analysis_run accepts one or two base64 images.",
		Logger: slog.Default(),
	})

	srv.AddReceivingMiddleware(timeoutMiddleware(cfg))
	if tracer != nil {
		srv.AddReceivingMiddleware(tracingMiddleware(tracer))
	}

	registerTools(srv, analyst)
	registerResources(srv, analyst)
	return srv
}

func NewHTTPTransportHandler(server *sdkmcp.Server, cfg HTTPHandlerConfig) http.Handler {
	base := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, &sdkmcp.StreamableHTTPOptions{})
	return wrapHTTPHandler(base, cfg)
}

func toolName(req sdkmcp.Request) string {
	if call, ok := req.(*sdkmcp.CallToolRequest); ok && call.Params != nil {
		return strings.TrimSpace(call.Params.Name)
	}
	return ""
}

func timeoutFor(cfg ServerConfig, method string, req sdkmcp.Request) time.Duration {
	if method == "tools/call" && toolName(req) == toolAnalysisRun {
		return cfg.RequestTimeout
	}
	return cfg.ReadTimeout
}

func timeoutMiddleware(cfg ServerConfig) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx, cancel := context.WithTimeout(ctx, timeoutFor(cfg, method, req))
			defer cancel()
			return next(ctx, method, req)
		}
	}
}

func tracingMiddleware(tracer trace.Tracer) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx, span := tracer.Start(ctx, spanName(method, req),
				trace.WithAttributes(attribute.String("mcp.method", method)))
			defer span.End()

			if name := toolName(req); name != "" {
				span.SetAttributes(attribute.String("mcp.tool", name))
			}
			if read, ok := req.(*sdkmcp.ReadResourceRequest); ok && read.Params != nil {
				span.SetAttributes(attribute.String("mcp.resource.uri", read.Params.URI))
			}

			result, err := next(ctx, method, req)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				slog.WarnContext(ctx, "mcp request failed", "method", method, "error", err)
			}
			return result, err
		}
	}
}

func spanName(method string, req sdkmcp.Request) string {
	if method == "tools/call" {
		if name := toolName(req); name != "" {
			return "mcp.tool." + name
		}
		return "mcp.tool.call"
	}
	return "mcp." + strings.ReplaceAll(method, "/", ".")
}
