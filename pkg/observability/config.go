// Package observability provides OpenTelemetry tracing and metrics, a
// Prometheus scrape endpoint, and structured logging for every locfang mode.
package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// AppMode identifies the application execution mode.
type AppMode string

const (
	// ModeCLI is the one-shot command mode.
	ModeCLI AppMode = "cli"
	// ModeMCP is the MCP stdio server mode.
	ModeMCP AppMode = "mcp"
)

const (
	defaultServiceName        = "locfang"
	defaultShutdownTimeoutSec = 5
)

// ErrInvalidLogLevel is returned by ParseLevel for unknown level names.
var ErrInvalidLogLevel = errors.New("invalid log level")

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the semantic version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment (e.g. "ci", "dev").
	Environment string

	// Mode identifies how the binary was launched.
	Mode AppMode

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables export.
	OTLPEndpoint string

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporter.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// Prometheus attaches a Prometheus reader to the meter provider and
	// exposes its scrape handler on Providers.MetricsHandler.
	Prometheus bool

	// DebugTrace forces 100% trace sampling.
	DebugTrace bool

	// SampleRatio is the trace sampling ratio when DebugTrace is false.
	SampleRatio float64

	// TraceVerbose keeps per-change spans; otherwise only run and commit
	// spans are exported.
	TraceVerbose bool

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON enables JSON-formatted log output.
	LogJSON bool

	// ShutdownTimeoutSec bounds the flush on shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config for zero-config startup: no export, text logs
// at info level.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// ParseLevel maps a level name (debug, info, warn, error) to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(strings.TrimSpace(name)))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
	}

	return level, nil
}
