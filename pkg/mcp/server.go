// Package mcp implements a Model Context Protocol server exposing locfang's
// history line counts and path classification as MCP tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/locfang/pkg/observability"
	"github.com/Sumatoshi-tech/locfang/pkg/pipeline"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "locfang"

	// toolCount is the expected number of registered tools.
	toolCount = 3
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer

	// Version is reported as the server implementation version.
	Version string

	// Defaults seeds every history run; tool arguments override it.
	Defaults pipeline.Options
}

// Server wraps the MCP SDK server with locfang tool registrations.
type Server struct {
	inner    *mcpsdk.Server
	mu       sync.RWMutex
	tools    []string
	metrics  *observability.REDMetrics
	tracer   trace.Tracer
	defaults pipeline.Options
	version  string
}

// NewServer creates a new MCP server with all locfang tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	version := deps.Version
	if version == "" {
		version = "dev"
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version,
		},
		opts,
	)

	srv := &Server{
		inner:    inner,
		tools:    make([]string, 0, toolCount),
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		defaults: deps.Defaults,
		version:  version,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// toolHandler is the typed handler signature accepted by mcpsdk.AddTool.
type toolHandler[In any] func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error)

func (s *Server) registerTools() {
	addTool(s, ToolNameHistory, historyToolDescription, s.handleHistory)
	addTool(s, ToolNameClassify, classifyToolDescription, handleClassify)
	addTool(s, ToolNameCount, countToolDescription, handleCount)
}

func addTool[In any](s *Server, name, description string, handler toolHandler[In]) {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{Name: name, Description: description},
		mcpsdk.ToolHandlerFor[In, ToolOutput](instrument(s.tracer, s.metrics, name, handler)))

	s.trackTool(name)
}

// Span and metric naming for tool calls.
const (
	opPrefix       = "mcp."
	traceIDContent = "trace_id="
)

// instrument wraps handler with one server span and one RED sample per call.
// A sampled span's trace id is appended to the result content. Nil tracer
// and nil metrics disable the respective concern.
func instrument[In any](tracer trace.Tracer, metrics *observability.REDMetrics, name string, handler toolHandler[In]) toolHandler[In] {
	if tracer == nil && metrics == nil {
		return handler
	}

	op := opPrefix + name

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		done := metrics.TrackInflight(ctx, op)
		defer done()

		span := trace.SpanFromContext(ctx)

		if tracer != nil {
			ctx, span = tracer.Start(ctx, op,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attribute.String("mcp.tool", name)),
			)
			defer span.End()
		}

		result, output, err := handler(ctx, req, input)

		failed := err != nil || (result != nil && result.IsError)

		status := observability.StatusOK
		if failed {
			status = observability.StatusError
		}

		metrics.RecordRequest(ctx, op, status, time.Since(start))

		if tracer != nil {
			span.SetAttributes(attribute.Bool("mcp.error", failed))

			sc := span.SpanContext()
			if sc.IsSampled() && result != nil {
				result.Content = append(result.Content, &mcpsdk.TextContent{Text: traceIDContent + sc.TraceID().String()})
			}
		}

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	historyToolDescription = "Walk the history of a Git repository and report, per kernel subsystem " +
		"category, the source lines added, deleted and modified. " +
		"Accepts a repository path, an optional commit list and walk limits."

	classifyToolDescription = "Map repository paths to their subsystem category " +
		"(core, fs, driver, net, arch, misc, firmware, or empty when unclassified)."

	countToolDescription = "Count blank, comment and code lines of inline source. " +
		"With old_code set, classify code lines as same, modified, added or removed."
)
