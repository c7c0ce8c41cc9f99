package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// attributePolicy decides which span attribute keys may be exported. Deny
// rules win over allow rules; keys matching neither are dropped.
type attributePolicy struct {
	denyKeys      map[string]bool
	denyPrefixes  []string
	allowKeys     map[string]bool
	allowPrefixes []string
}

// exportPolicy keeps run, commit and change metadata. Author identities and
// file contents never leave the process.
var exportPolicy = attributePolicy{
	denyKeys:      map[string]bool{"email": true, "change.content": true},
	denyPrefixes:  []string{"user.", "author."},
	allowKeys:     map[string]bool{"category": true, "kind": true, "status": true, "error": true},
	allowPrefixes: []string{"locfang.", "run.", "commit.", "change.", "mcp.", "http.", "url.", "error."},
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}

	return false
}

func (p attributePolicy) permits(key string) bool {
	if p.denyKeys[key] || hasAnyPrefix(key, p.denyPrefixes) {
		return false
	}

	return p.allowKeys[key] || hasAnyPrefix(key, p.allowPrefixes)
}

// redactingProcessor applies exportPolicy to every ended span before the
// next processor sees it.
type redactingProcessor struct {
	next   sdktrace.SpanProcessor
	policy attributePolicy
	logger *slog.Logger
}

// NewAttributeFilter wraps next with the export attribute policy. Dropped keys
// are logged at debug when logger is non-nil.
func NewAttributeFilter(next sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &redactingProcessor{next: next, policy: exportPolicy, logger: logger}
}

func (p *redactingProcessor) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	p.next.OnStart(parent, s)
}

func (p *redactingProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	original := s.Attributes()
	kept := make([]attribute.KeyValue, 0, len(original))

	for _, kv := range original {
		if p.policy.permits(string(kv.Key)) {
			kept = append(kept, kv)

			continue
		}

		if p.logger != nil {
			p.logger.Debug("span attribute dropped", "span", s.Name(), "key", string(kv.Key))
		}
	}

	p.next.OnEnd(redactedSpan{ReadOnlySpan: s, attrs: kept})
}

func (p *redactingProcessor) Shutdown(ctx context.Context) error {
	err := p.next.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown span processor: %w", err)
	}

	return nil
}

func (p *redactingProcessor) ForceFlush(ctx context.Context) error {
	err := p.next.ForceFlush(ctx)
	if err != nil {
		return fmt.Errorf("flush span processor: %w", err)
	}

	return nil
}

// redactedSpan overrides the attribute set of an ended span.
type redactedSpan struct {
	sdktrace.ReadOnlySpan

	attrs []attribute.KeyValue
}

func (s redactedSpan) Attributes() []attribute.KeyValue {
	return s.attrs
}
