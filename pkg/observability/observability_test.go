package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/locfang/pkg/observability"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()

	assert.Equal(t, "locfang", cfg.ServiceName)
	assert.Equal(t, observability.ModeCLI, cfg.Mode)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 5, cfg.ShutdownTimeoutSec)
	assert.Empty(t, cfg.OTLPEndpoint)
	assert.False(t, cfg.Prometheus)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := observability.ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := observability.ParseLevel("chatty")
	require.ErrorIs(t, err, observability.ErrInvalidLogLevel)
}

func TestTracingHandlerInjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "locfang", "ci", observability.ModeCLI))

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.With("commit", "abc1234").WithGroup("change").InfoContext(ctx, "counted", "path", "fs/z.c")

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "locfang", record["service"])
	assert.Equal(t, "ci", record["env"])
	assert.Equal(t, "cli", record["mode"])
	assert.Equal(t, "abc1234", record["commit"])

	group, ok := record["change"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "fs/z.c", group["path"])
}

func TestTracingHandlerWithoutSpan(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "locfang", "", observability.ModeMCP))

	logger.InfoContext(context.Background(), "no span")

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	_, hasTrace := record["trace_id"]
	assert.False(t, hasTrace)

	_, hasEnv := record["env"]
	assert.False(t, hasEnv)
	assert.Equal(t, "mcp", record["mode"])
}

func TestInitNoop(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)
	assert.Nil(t, providers.MetricsHandler)

	_, span := providers.Tracer.Start(context.Background(), observability.SpanRun)
	span.End()

	require.NoError(t, providers.Shutdown(context.Background()))
	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitPrometheusServesInstruments(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.Prometheus = true

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })
	require.NotNil(t, providers.MetricsHandler)

	runMetrics, err := observability.NewRunMetrics(providers.Meter)
	require.NoError(t, err)

	runMetrics.RecordRun(context.Background(), observability.RunStats{Commits: 3, Counted: 7, Duration: time.Second})

	rec := httptest.NewRecorder()
	providers.MetricsHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "locfang_run_commits_total")
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, observability.ParseOTLPHeaders(""))
	assert.Nil(t, observability.ParseOTLPHeaders("invalid"))
	assert.Equal(t, map[string]string{"k1": "v1", "k2": "v2"}, observability.ParseOTLPHeaders(" k1 = v1 , k2 = v2 "))
}

func sampled(sampler sdktrace.Sampler) bool {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sampler))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("probe").Start(context.Background(), "probe")
	defer span.End()

	return span.SpanContext().IsSampled()
}

func TestSelectSampler(t *testing.T) {
	t.Setenv("OTEL_TRACES_SAMPLER", "always_off")

	assert.False(t, sampled(observability.SelectSampler(observability.DefaultConfig())))

	debug := observability.DefaultConfig()
	debug.DebugTrace = true

	assert.True(t, sampled(observability.SelectSampler(debug)))

	t.Setenv("OTEL_TRACES_SAMPLER", "")

	assert.True(t, sampled(observability.SelectSampler(observability.DefaultConfig())))
}

func TestRunMetricsRecordRun(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	rm, err := observability.NewRunMetrics(mp.Meter("test"))
	require.NoError(t, err)

	rm.RecordRun(context.Background(), observability.RunStats{Commits: 2, Counted: 5, Skipped: 3, Failed: 1})

	var data metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &data))

	changes := findSum(t, data, "locfang.run.changes.total")
	byStatus := make(map[string]int64)

	for _, dp := range changes.DataPoints {
		status, _ := dp.Attributes.Value("status")
		byStatus[status.AsString()] = dp.Value
	}

	assert.Equal(t, map[string]int64{"counted": 5, "skipped": 3, "failed": 1}, byStatus)
	assert.Equal(t, int64(2), findSum(t, data, "locfang.run.commits.total").DataPoints[0].Value)

	var nilMetrics *observability.RunMetrics

	nilMetrics.RecordRun(context.Background(), observability.RunStats{})
}

func TestREDMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	done := red.TrackInflight(context.Background(), "classify")
	red.RecordRequest(context.Background(), "classify", observability.StatusOK, 10*time.Millisecond)
	red.RecordRequest(context.Background(), "sloc_history", observability.StatusError, time.Second)
	done()

	var data metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &data))

	requests := findSum(t, data, "locfang.requests.total")
	assert.Len(t, requests.DataPoints, 2)

	errorsTotal := findSum(t, data, "locfang.errors.total")
	require.Len(t, errorsTotal.DataPoints, 1)
	assert.Equal(t, int64(1), errorsTotal.DataPoints[0].Value)
}

func TestAttributeFilter(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(observability.NewAttributeFilter(sdktrace.NewSimpleSpanProcessor(exporter), nil)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(
		attribute.String("commit.hash", "abc1234"),
		attribute.String("category", "fs"),
		attribute.String("author.email", "dev@example.com"),
		attribute.String("user.name", "dev"),
		attribute.String("random.key", "x"),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	keys := make([]string, 0)
	for _, kv := range spans[0].Attributes {
		keys = append(keys, string(kv.Key))
	}

	assert.ElementsMatch(t, []string{"commit.hash", "category"}, keys)
}

func TestFilteringTracerProviderDropsDispatchSpans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	tracer := observability.NewFilteringTracerProvider(tp).Tracer("locfang")

	ctx, run := tracer.Start(context.Background(), observability.SpanRun)
	_, change := tracer.Start(ctx, observability.SpanDispatch)
	change.End()
	run.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, observability.SpanRun, spans[0].Name)
}

func TestHTTPMiddlewareCreatesSpan(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	handler := observability.HTTPMiddleware(tp.Tracer("test"), http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusServiceUnavailable)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /metrics", spans[0].Name)
}

func TestServeMetrics(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.Prometheus = true

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	red, err := observability.NewREDMetrics(providers.Meter)
	require.NoError(t, err)

	red.RecordRequest(context.Background(), "run", observability.StatusOK, time.Second)

	server, err := observability.ServeMetrics("127.0.0.1:0", providers.MetricsHandler, providers.Tracer, observability.Discard())
	require.NoError(t, err)

	resp, err := http.Get("http://" + server.Addr() + "/metrics") //nolint:noctx // test request
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "locfang_requests_total")

	require.NoError(t, server.Close(context.Background()))

	_, err = observability.ServeMetrics("127.0.0.1:0", nil, providers.Tracer, observability.Discard())
	require.ErrorIs(t, err, observability.ErrNoMetricsHandler)
}

func findSum(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok, name)

				return sum
			}
		}
	}

	t.Fatalf("metric %s not found", name)

	return metricdata.Sum[int64]{}
}
