package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// Span names emitted per file change. They are dropped unless TraceVerbose.
const (
	SpanRun      = "locfang.run"
	SpanCommit   = "locfang.commit"
	SpanDispatch = "locfang.dispatch"
)

// filteringTracerProvider replaces hot-path spans with no-op spans so a run
// over thousands of commits stays at a manageable trace volume.
type filteringTracerProvider struct {
	embedded.TracerProvider

	delegate trace.TracerProvider
	noop     trace.TracerProvider
	suppress map[string]bool
}

// NewFilteringTracerProvider wraps delegate so that per-change spans become
// no-ops while run and commit spans are kept.
func NewFilteringTracerProvider(delegate trace.TracerProvider) trace.TracerProvider {
	return &filteringTracerProvider{
		delegate: delegate,
		noop:     nooptrace.NewTracerProvider(),
		suppress: map[string]bool{SpanDispatch: true},
	}
}

// Tracer implements [trace.TracerProvider].
func (f *filteringTracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return &filteringTracer{
		delegate: f.delegate.Tracer(name, opts...),
		noop:     f.noop.Tracer(name, opts...),
		suppress: f.suppress,
	}
}

type filteringTracer struct {
	embedded.Tracer

	delegate trace.Tracer
	noop     trace.Tracer
	suppress map[string]bool
}

// Start returns a no-op span for suppressed names.
func (f *filteringTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if f.suppress[name] {
		return f.noop.Start(ctx, name, opts...)
	}

	return f.delegate.Start(ctx, name, opts...)
}
