package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const (
	metricsPath          = "/metrics"
	readHeaderTimeout    = 5 * time.Second
	serverShutdownPeriod = 5 * time.Second
)

// ErrNoMetricsHandler is returned by ServeMetrics when Prometheus is disabled.
var ErrNoMetricsHandler = errors.New("prometheus metrics are not enabled")

// MetricsServer serves the Prometheus scrape endpoint in the background.
type MetricsServer struct {
	srv      *http.Server
	listener net.Listener
	done     chan error
}

// ServeMetrics starts serving handler at /metrics on addr. Use Addr to learn
// the bound address when addr ends in ":0".
func ServeMetrics(addr string, handler http.Handler, tracer trace.Tracer, logger *slog.Logger) (*MetricsServer, error) {
	if handler == nil {
		return nil, ErrNoMetricsHandler
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, HTTPMiddleware(tracer, handler))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	ms := &MetricsServer{
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout},
		listener: listener,
		done:     make(chan error, 1),
	}

	go func() {
		serveErr := ms.srv.Serve(listener)
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}

		ms.done <- serveErr
	}()

	logger.Info("serving metrics", "addr", listener.Addr().String(), "path", metricsPath)

	return ms, nil
}

// Addr returns the bound listen address.
func (ms *MetricsServer) Addr() string {
	return ms.listener.Addr().String()
}

// Close shuts the server down gracefully.
func (ms *MetricsServer) Close(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, serverShutdownPeriod)
	defer cancel()

	err := ms.srv.Shutdown(shutdownCtx)

	return errors.Join(err, <-ms.done)
}
