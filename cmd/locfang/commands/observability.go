package commands

import (
	"log/slog"

	"github.com/Sumatoshi-tech/locfang/pkg/config"
	"github.com/Sumatoshi-tech/locfang/pkg/observability"
	"github.com/Sumatoshi-tech/locfang/pkg/version"
)

// observabilityConfig maps the loaded configuration and global flags onto
// observability settings. --verbose wins over --quiet.
func observabilityConfig(cfg *config.Config, globals *Globals, mode observability.AppMode) (observability.Config, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.Environment = cfg.Observability.Environment
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Observability.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.TraceVerbose = cfg.Observability.TraceVerbose
	obsCfg.Prometheus = cfg.Observability.MetricsAddr != ""
	obsCfg.LogJSON = cfg.Logging.Format == config.LogFormatJSON || mode == observability.ModeMCP

	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return observability.Config{}, err
	}

	obsCfg.LogLevel = level

	switch {
	case globals.Verbose:
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	case globals.Quiet:
		obsCfg.LogLevel = slog.LevelWarn
	}

	return obsCfg, nil
}
