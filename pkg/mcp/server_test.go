package mcp_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/locfang/pkg/aggregate"
	"github.com/Sumatoshi-tech/locfang/pkg/category"
	"github.com/Sumatoshi-tech/locfang/pkg/gitlib/gitlibtest"
	"github.com/Sumatoshi-tech/locfang/pkg/linecount"
	"github.com/Sumatoshi-tech/locfang/pkg/mcp"
	"github.com/Sumatoshi-tech/locfang/pkg/observability"
	"github.com/Sumatoshi-tech/locfang/pkg/pipeline"
	"github.com/Sumatoshi-tech/locfang/pkg/report"
)

// connect starts srv on an in-memory transport and returns a client session.
func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return session
}

func call(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	return result
}

func firstText(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return text.Text
}

func decodeText(t *testing.T, result *mcpsdk.CallToolResult, into any) {
	t.Helper()

	require.False(t, result.IsError, firstText(t, result))
	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), into))
}

func TestServer_ListTools(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})
	assert.Equal(t, []string{mcp.ToolNameClassify, mcp.ToolNameCount, mcp.ToolNameHistory}, srv.ListToolNames())

	session := connect(t, srv)

	toolsResult, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		names = append(names, tool.Name)
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}

	assert.ElementsMatch(t, srv.ListToolNames(), names)
}

func TestServer_Classify(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNameClassify, map[string]any{
		"paths": []string{"kernel/sched/core.c", "drivers/gpu/x.c", "Makefile", "rust/lib.rs"},
	})

	var got []mcp.PathCategory

	decodeText(t, result, &got)

	assert.Equal(t, []mcp.PathCategory{
		{Path: "kernel/sched/core.c", Category: "core"},
		{Path: "drivers/gpu/x.c", Category: "driver"},
		{Path: "Makefile", Category: "misc"},
		{Path: "rust/lib.rs", Category: ""},
	}, got)
}

func TestServer_ClassifyRequiresPaths(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNameClassify, map[string]any{"paths": []string{}})
	assert.True(t, result.IsError)
	assert.Contains(t, firstText(t, result), "paths parameter is required")
}

func TestServer_CountCensus(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNameCount, map[string]any{
		"code": "/* header */\n#include <stdio.h>\n\nint main(void) { // entry\n\treturn 0;\n}\n",
	})

	var got linecount.LineCount

	decodeText(t, result, &got)
	assert.Equal(t, linecount.LineCount{Files: 1, Blank: 1, Comment: 1, Code: 4}, got)
}

func TestServer_CountDiff(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNameCount, map[string]any{
		"old_code": "int a;\nint b;\nint c;\nint r;\nint d;\n",
		"code":     "int a;\nint b2;\nint c2;\nint d;\nint n1;\nint n2;\nint n3;\n",
	})

	var got linecount.DiffLineCount

	decodeText(t, result, &got)
	assert.Equal(t, 2, got.Same.Code)
	assert.Equal(t, 2, got.Modified.Code)
	assert.Equal(t, 3, got.Added.Code)
	assert.Equal(t, 1, got.Removed.Code)
}

func TestServer_CountErrors(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	empty := call(t, session, mcp.ToolNameCount, map[string]any{"code": ""})
	assert.True(t, empty.IsError)
	assert.Contains(t, firstText(t, empty), "code parameter is required")

	unsupported := call(t, session, mcp.ToolNameCount, map[string]any{"code": "x = 1\n", "language": "Python"})
	assert.True(t, unsupported.IsError)
	assert.Contains(t, firstText(t, unsupported), "unsupported language")
}

func TestServer_History(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	tr.Write("net/ipv4/tcp.c", "int tcp;\n")
	tr.Commit("initial")
	tr.Write("net/ipv4/udp.c", "int udp;\nint udp2;\n")
	tr.Write("fs/ext4/inode.c", "int inode;\n")
	tr.Commit("second")

	session := connect(t, mcp.NewServer(mcp.ServerDeps{
		Version:  "v0.0.1",
		Defaults: pipeline.Options{Backend: linecount.BackendNative, WorkDir: t.TempDir()},
	}))

	result := call(t, session, mcp.ToolNameHistory, map[string]any{"repo_path": tr.Path})

	var rep report.Report

	decodeText(t, result, &rep)

	assert.Equal(t, report.ToolName, rep.Tool)
	assert.Equal(t, "v0.0.1", rep.Version)
	assert.Equal(t, linecount.BackendNative, rep.Backend)
	assert.Equal(t, int64(2), rep.Run.Commits)
	assert.Equal(t, aggregate.Totals{Added: 2}, rep.Categories.Get(category.Net))
	assert.Equal(t, aggregate.Totals{Added: 1}, rep.Categories.Get(category.FS))
}

func TestServer_HistoryValidation(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	tests := []struct {
		name string
		path string
		want string
	}{
		{"empty", "", "repo_path parameter is required"},
		{"relative", "relative/path", "absolute path"},
		{"missing", "/nonexistent/path/to/repo", "does not exist"},
		{"not git", t.TempDir(), "not a git repository"},
	}

	for _, tt := range tests {
		result := call(t, session, mcp.ToolNameHistory, map[string]any{"repo_path": tt.path})
		assert.True(t, result.IsError, tt.name)
		assert.Contains(t, firstText(t, result), tt.want, tt.name)
	}
}

func TestServer_HistoryBadSince(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	tr.Write("init/main.c", "int x;\n")
	tr.Commit("initial")

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNameHistory, map[string]any{"repo_path": tr.Path, "since": "yesterday"})
	assert.True(t, result.IsError)
	assert.Contains(t, firstText(t, result), "invalid time format")
}

func TestServer_RecordsMetricsAndTraces(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Metrics: red, Tracer: tp.Tracer("locfang")}))

	ok := call(t, session, mcp.ToolNameClassify, map[string]any{"paths": []string{"fs/a.c"}})
	assert.False(t, ok.IsError)

	lastContent, isText := ok.Content[len(ok.Content)-1].(*mcpsdk.TextContent)
	require.True(t, isText)
	assert.Contains(t, lastContent.Text, "trace_id=")

	bad := call(t, session, mcp.ToolNameClassify, map[string]any{"paths": []string{}})
	assert.True(t, bad.IsError)

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	byStatus := make(map[string]int64)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "locfang.requests.total" {
				continue
			}

			sum, isSum := m.Data.(metricdata.Sum[int64])
			require.True(t, isSum)

			for _, dp := range sum.DataPoints {
				status, _ := dp.Attributes.Value("status")
				byStatus[status.AsString()] += dp.Value
			}
		}
	}

	assert.Equal(t, map[string]int64{"ok": 1, "error": 1}, byStatus)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "mcp."+mcp.ToolNameClassify, spans[0].Name)
}
