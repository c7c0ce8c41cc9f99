package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locfang/pkg/config"
	"github.com/Sumatoshi-tech/locfang/pkg/linecount"
)

const (
	testWorkers     = 4
	testCacheSize   = 512
	testLimit       = 100
	testMaxBlobSize = 4_000_000
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "locfang.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, config.DefaultRepositoryPath, cfg.Repository.Path)
	assert.Empty(t, cfg.Repository.CommitsFile)
	assert.Equal(t, config.DefaultRepositoryLimit, cfg.Repository.Limit)
	assert.Equal(t, config.DefaultExtension, cfg.Analysis.Extension)
	assert.Equal(t, config.DefaultLanguage, cfg.Analysis.Language)
	assert.Equal(t, config.DefaultBackend, cfg.Analysis.Backend)
	assert.Equal(t, config.DefaultClocBinary, cfg.Analysis.ClocBinary)
	assert.Equal(t, config.DefaultDiffTimeout, cfg.Analysis.DiffTimeout)
	assert.Equal(t, config.DefaultWorkers, cfg.Analysis.Workers)
	assert.Equal(t, config.DefaultDetectRenames, cfg.Analysis.DetectRenames)
	assert.Equal(t, config.DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, config.DefaultLogFormat, cfg.Logging.Format)
	assert.Equal(t, config.DefaultReportFormat, cfg.Report.Format)
	assert.InDelta(t, config.DefaultSampleRatio, cfg.Observability.SampleRatio, 0.001)
}

func TestLoadConfig_ValidFile_Unmarshals(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfig(t, `repository:
  path: /src/linux
  commits_file: commits
  first_parent: true
  limit: 100
  since: "2024-01-01"
analysis:
  extension: .h
  language: C++
  backend: native
  diff_timeout: 30s
  work_dir: /tmp/locfang
  workers: 4
  cache_size: 512
  max_blob_size: 4MB
  detect_renames: false
  rename_threshold: 60
logging:
  level: debug
  format: json
report:
  format: plain
  output: out.txt
  no_color: true
observability:
  otlp_endpoint: localhost:4317
  otlp_insecure: true
  metrics_addr: ":9090"
  environment: ci
  sample_ratio: 0.25
`)

	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "/src/linux", cfg.Repository.Path)
	assert.Equal(t, "commits", cfg.Repository.CommitsFile)
	assert.True(t, cfg.Repository.FirstParent)
	assert.Equal(t, testLimit, cfg.Repository.Limit)

	assert.Equal(t, ".h", cfg.Analysis.Extension)
	assert.Equal(t, "C++", cfg.Analysis.Language)
	assert.Equal(t, "native", cfg.Analysis.Backend)
	assert.Equal(t, 30*time.Second, cfg.Analysis.DiffTimeout)
	assert.Equal(t, "/tmp/locfang", cfg.Analysis.WorkDir)
	assert.Equal(t, testWorkers, cfg.Analysis.Workers)
	assert.Equal(t, testCacheSize, cfg.Analysis.CacheSize)
	assert.False(t, cfg.Analysis.DetectRenames)
	assert.Equal(t, 60, cfg.Analysis.RenameThreshold)

	maxBlob, err := cfg.Analysis.MaxBlobBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(testMaxBlobSize), maxBlob)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, config.LogFormatJSON, cfg.Logging.Format)

	assert.Equal(t, "plain", cfg.Report.Format)
	assert.Equal(t, "out.txt", cfg.Report.Output)
	assert.True(t, cfg.Report.NoColor)

	assert.Equal(t, "localhost:4317", cfg.Observability.OTLPEndpoint)
	assert.True(t, cfg.Observability.OTLPInsecure)
	assert.Equal(t, ":9090", cfg.Observability.MetricsAddr)
	assert.Equal(t, "ci", cfg.Observability.Environment)
	assert.InDelta(t, 0.25, cfg.Observability.SampleRatio, 0.001)

	since, err := cfg.Repository.SinceTime()
	require.NoError(t, err)
	require.NotNil(t, since)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *since)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	cfgPath := writeConfig(t, "analysis:\n  workers: 2\n")

	t.Setenv("LOCFANG_ANALYSIS_WORKERS", "8")
	t.Setenv("LOCFANG_REPORT_FORMAT", "json")

	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Analysis.Workers)
	assert.Equal(t, "json", cfg.Report.Format)
}

func TestLoadConfig_MalformedYAML_ReturnsError(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, "analysis:\n  workers: [invalid yaml\n"))
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_MissingExplicitFile_ReturnsError(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"empty extension", "analysis:\n  extension: \".\"\n", config.ErrInvalidExtension},
		{"empty language", "analysis:\n  language: \"\"\n", config.ErrInvalidLanguage},
		{"backend", "analysis:\n  backend: wc\n", config.ErrInvalidBackend},
		{
			"extension language mismatch",
			"analysis:\n  backend: native\n  extension: cpp\n  language: C\n",
			linecount.ErrLanguageMismatch,
		},
		{"diff timeout", "analysis:\n  diff_timeout: 0s\n", config.ErrInvalidDiffTimeout},
		{"workers", "analysis:\n  workers: 0\n", config.ErrInvalidWorkers},
		{"cache size", "analysis:\n  cache_size: -1\n", config.ErrInvalidCacheSize},
		{"max blob size", "analysis:\n  max_blob_size: lots\n", config.ErrInvalidMaxBlobSize},
		{"rename threshold", "analysis:\n  rename_threshold: 101\n", config.ErrInvalidRenameThreshold},
		{"limit", "repository:\n  limit: -5\n", config.ErrInvalidLimit},
		{"since", "repository:\n  since: yesterday\n", config.ErrInvalidTimeFormat},
		{"log format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
		{"report format", "report:\n  format: csv\n", config.ErrInvalidReportFormat},
		{"sample ratio", "observability:\n  sample_ratio: 2\n", config.ErrInvalidSampleRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, cfg)
		})
	}
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	got, err := config.ParseTime("24h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), got)

	got, err = config.ParseTime("2024-03-04T05:06:07Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC), got)

	got, err = config.ParseTime("2023-12-31", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), got)

	_, err = config.ParseTime("last week", now)
	require.ErrorIs(t, err, config.ErrInvalidTimeFormat)
}

func TestSinceTimeEmpty(t *testing.T) {
	t.Parallel()

	repo := config.RepositoryConfig{}

	since, err := repo.SinceTime()
	require.NoError(t, err)
	assert.Nil(t, since)
}

func TestMaxBlobBytesEmptyMeansUnlimited(t *testing.T) {
	t.Parallel()

	analysis := config.AnalysisConfig{}

	n, err := analysis.MaxBlobBytes()
	require.NoError(t, err)
	assert.Zero(t, n)
}
