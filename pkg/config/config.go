// Package config provides configuration loading and validation for locfang.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/locfang/pkg/linecount"
	"github.com/Sumatoshi-tech/locfang/pkg/report"
)

// Sentinel validation errors.
var (
	ErrInvalidExtension       = errors.New("extension must not be empty")
	ErrInvalidLanguage        = errors.New("language must not be empty")
	ErrInvalidBackend         = errors.New("unknown line counting backend")
	ErrInvalidDiffTimeout     = errors.New("diff timeout must be positive")
	ErrInvalidWorkers         = errors.New("workers must be positive")
	ErrInvalidCacheSize       = errors.New("cache size must not be negative")
	ErrInvalidLimit           = errors.New("limit must not be negative")
	ErrInvalidMaxBlobSize     = errors.New("invalid max blob size")
	ErrInvalidRenameThreshold = errors.New("rename threshold must be within 0..100")
	ErrInvalidLogFormat       = errors.New("log format must be text or json")
	ErrInvalidReportFormat    = errors.New("unknown report format")
	ErrInvalidSampleRatio     = errors.New("sample ratio must be within 0..1")
	ErrInvalidTimeFormat      = errors.New("invalid time format (use duration like '24h', date like '2024-01-01', or RFC3339)")
)

const maxRenameThreshold = 100

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds all configuration for a locfang run.
type Config struct {
	Repository    RepositoryConfig    `mapstructure:"repository"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Report        ReportConfig        `mapstructure:"report"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// RepositoryConfig selects the repository and the commits to walk.
type RepositoryConfig struct {
	Path        string `mapstructure:"path"`
	CommitsFile string `mapstructure:"commits_file"`
	Since       string `mapstructure:"since"`
	Limit       int    `mapstructure:"limit"`
	FirstParent bool   `mapstructure:"first_parent"`
}

// AnalysisConfig configures how changes are counted.
type AnalysisConfig struct {
	Extension       string        `mapstructure:"extension"`
	Language        string        `mapstructure:"language"`
	Backend         string        `mapstructure:"backend"`
	ClocBinary      string        `mapstructure:"cloc_binary"`
	WorkDir         string        `mapstructure:"work_dir"`
	MaxBlobSize     string        `mapstructure:"max_blob_size"`
	DiffTimeout     time.Duration `mapstructure:"diff_timeout"`
	Workers         int           `mapstructure:"workers"`
	CacheSize       int           `mapstructure:"cache_size"`
	RenameThreshold int           `mapstructure:"rename_threshold"`
	DetectRenames   bool          `mapstructure:"detect_renames"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ReportConfig selects the report layout and destination.
type ReportConfig struct {
	Format  string `mapstructure:"format"`
	Output  string `mapstructure:"output"`
	NoColor bool   `mapstructure:"no_color"`
}

// ObservabilityConfig configures telemetry export.
type ObservabilityConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	TraceVerbose bool    `mapstructure:"trace_verbose"`
}

// LoadConfig loads configuration from file and environment variables. An
// empty configPath searches for locfang.yaml in the usual places; a missing
// file there is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("locfang")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/locfang")
	}

	viperCfg.SetEnvPrefix("LOCFANG")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("repository.path", DefaultRepositoryPath)
	viperCfg.SetDefault("repository.commits_file", "")
	viperCfg.SetDefault("repository.since", "")
	viperCfg.SetDefault("repository.limit", DefaultRepositoryLimit)
	viperCfg.SetDefault("repository.first_parent", DefaultRepositoryFirstParent)

	viperCfg.SetDefault("analysis.extension", DefaultExtension)
	viperCfg.SetDefault("analysis.language", DefaultLanguage)
	viperCfg.SetDefault("analysis.backend", DefaultBackend)
	viperCfg.SetDefault("analysis.cloc_binary", DefaultClocBinary)
	viperCfg.SetDefault("analysis.work_dir", "")
	viperCfg.SetDefault("analysis.max_blob_size", DefaultMaxBlobSize)
	viperCfg.SetDefault("analysis.diff_timeout", DefaultDiffTimeout)
	viperCfg.SetDefault("analysis.workers", DefaultWorkers)
	viperCfg.SetDefault("analysis.cache_size", DefaultCacheSize)
	viperCfg.SetDefault("analysis.detect_renames", DefaultDetectRenames)
	viperCfg.SetDefault("analysis.rename_threshold", DefaultRenameThreshold)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("report.format", DefaultReportFormat)
	viperCfg.SetDefault("report.output", "")
	viperCfg.SetDefault("report.no_color", false)

	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.metrics_addr", "")
	viperCfg.SetDefault("observability.environment", "")
	viperCfg.SetDefault("observability.trace_verbose", false)
	viperCfg.SetDefault("observability.sample_ratio", DefaultSampleRatio)
}

// Validate checks every setting. Flag overrides applied after loading should
// be validated again.
func (c *Config) Validate() error {
	if c.Repository.Limit < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, c.Repository.Limit)
	}

	_, sinceErr := c.Repository.SinceTime()
	if sinceErr != nil {
		return sinceErr
	}

	analysisErr := c.Analysis.validate()
	if analysisErr != nil {
		return analysisErr
	}

	if c.Logging.Format != LogFormatText && c.Logging.Format != LogFormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	if !slices.Contains(report.Formats(), c.Report.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidReportFormat, c.Report.Format)
	}

	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, c.Observability.SampleRatio)
	}

	return nil
}

func (a *AnalysisConfig) validate() error {
	if strings.TrimPrefix(a.Extension, ".") == "" {
		return ErrInvalidExtension
	}

	if a.Language == "" {
		return ErrInvalidLanguage
	}

	if !slices.Contains(linecount.Backends(), a.Backend) {
		return fmt.Errorf("%w: %q", ErrInvalidBackend, a.Backend)
	}

	if a.Backend == linecount.BackendNative {
		matchErr := linecount.CheckExtension(a.Extension, a.Language)
		if matchErr != nil {
			return matchErr
		}
	}

	if a.DiffTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDiffTimeout, a.DiffTimeout)
	}

	if a.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, a.Workers)
	}

	if a.CacheSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, a.CacheSize)
	}

	if a.RenameThreshold < 0 || a.RenameThreshold > maxRenameThreshold {
		return fmt.Errorf("%w: %d", ErrInvalidRenameThreshold, a.RenameThreshold)
	}

	_, sizeErr := a.MaxBlobBytes()

	return sizeErr
}

// MaxBlobBytes parses MaxBlobSize. Empty means no limit and yields zero.
func (a *AnalysisConfig) MaxBlobBytes() (uint64, error) {
	if a.MaxBlobSize == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(a.MaxBlobSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMaxBlobSize, a.MaxBlobSize)
	}

	return n, nil
}

// SinceTime parses Since relative to the current time. Empty yields nil.
func (r *RepositoryConfig) SinceTime() (*time.Time, error) {
	if r.Since == "" {
		return nil, nil //nolint:nilnil // no lower bound.
	}

	t, err := ParseTime(r.Since, time.Now())
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// ParseTime accepts a duration ("24h", meaning that long before now), an
// RFC3339 timestamp, or a date ("2024-01-01").
func ParseTime(s string, now time.Time) (time.Time, error) {
	d, durationErr := time.ParseDuration(s)
	if durationErr == nil {
		return now.Add(-d), nil
	}

	parsedTime, rfc3339Err := time.Parse(time.RFC3339, s)
	if rfc3339Err == nil {
		return parsedTime, nil
	}

	parsedTime, dateOnlyErr := time.Parse(time.DateOnly, s)
	if dateOnlyErr == nil {
		return parsedTime, nil
	}

	return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidTimeFormat, s)
}
