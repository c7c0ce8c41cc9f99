package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/locfang/pkg/aggregate"
	"github.com/Sumatoshi-tech/locfang/pkg/category"
	"github.com/Sumatoshi-tech/locfang/pkg/config"
	"github.com/Sumatoshi-tech/locfang/pkg/gitlib"
	"github.com/Sumatoshi-tech/locfang/pkg/gitlib/gitlibtest"
	"github.com/Sumatoshi-tech/locfang/pkg/linecount"
	"github.com/Sumatoshi-tech/locfang/pkg/pipeline"
)

func twoCommits(t *testing.T) *gitlibtest.Repo {
	t.Helper()

	tr := gitlibtest.New(t)
	tr.Write("mm/page.c", "int a;\nint b;\n")
	tr.Commit("initial")

	tr.Write("mm/page.c", "int a;\nint b;\nint c;\n")
	tr.Write("drivers/gpu/x.c", "int x;\n")
	tr.Commit("second")

	return tr
}

func nativeOptions(t *testing.T, path string) pipeline.Options {
	t.Helper()

	return pipeline.Options{
		RepoPath:    path,
		Diff:        gitlib.DefaultDiffOptions(),
		Extension:   ".c",
		Language:    "C",
		Backend:     linecount.BackendNative,
		DiffTimeout: time.Minute,
		WorkDir:     t.TempDir(),
	}
}

func TestOpenAndRun(t *testing.T) {
	t.Parallel()

	tr := twoCommits(t)

	p, err := pipeline.Open(nativeOptions(t, tr.Path))
	require.NoError(t, err)

	defer p.Close()

	assert.Equal(t, linecount.BackendNative, p.Backend())

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.Commits)
	assert.Equal(t, aggregate.Totals{Added: 1, Same: 2}, summary.Totals.Get(category.Core))
	assert.Equal(t, aggregate.Totals{Added: 1}, summary.Totals.Get(category.Driver))
}

func TestOpenWithCommitList(t *testing.T) {
	t.Parallel()

	tr := twoCommits(t)

	opts := nativeOptions(t, tr.Path)
	opts.Commits = []string{"HEAD~1"}

	p, err := pipeline.Open(opts)
	require.NoError(t, err)

	defer p.Close()

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Commits)
	assert.Equal(t, aggregate.Totals{}, summary.Totals.Total())
}

func TestOpenRecordsMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	opts := nativeOptions(t, twoCommits(t).Path)
	opts.Meter = mp.Meter("test")

	p, err := pipeline.Open(opts)
	require.NoError(t, err)

	defer p.Close()

	_, err = p.Run(context.Background())
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := make(map[string]bool)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}

	assert.True(t, names["locfang.lines.total"])
	assert.True(t, names["locfang.run.commits.total"])
}

func TestOpenMissingRepository(t *testing.T) {
	t.Parallel()

	_, err := pipeline.Open(nativeOptions(t, filepath.Join(t.TempDir(), "nope")))
	require.Error(t, err)
}

func TestOpenUnknownBackend(t *testing.T) {
	t.Parallel()

	opts := nativeOptions(t, twoCommits(t).Path)
	opts.Backend = "wc"

	_, err := pipeline.Open(opts)
	require.ErrorIs(t, err, linecount.ErrUnknownBackend)
}

func TestOpenLanguageMismatch(t *testing.T) {
	t.Parallel()

	opts := nativeOptions(t, twoCommits(t).Path)
	opts.Extension = ".cpp"

	_, err := pipeline.Open(opts)
	require.ErrorIs(t, err, linecount.ErrLanguageMismatch)

	opts.Backend = linecount.BackendAuto
	opts.ClocBinary = "definitely-not-a-real-cloc-binary"

	_, err = pipeline.Open(opts)
	require.ErrorIs(t, err, linecount.ErrLanguageMismatch)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "locfang.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`repository:
  path: /src/linux
  commits_file: /lists/commits
  since: "2024-01-01"
analysis:
  backend: native
  workers: 3
  max_blob_size: 1MB
  rename_threshold: 70
`), 0o600))

	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/lists/commits", []byte("# picks\nabc123 fix\n\ndef456\n"), 0o600))

	opts, err := pipeline.FromConfig(cfg, fs)
	require.NoError(t, err)

	assert.Equal(t, "/src/linux", opts.RepoPath)
	assert.Equal(t, []string{"abc123", "def456"}, opts.Commits)
	require.NotNil(t, opts.Log.Since)
	assert.Equal(t, 2024, opts.Log.Since.Year())
	assert.Equal(t, uint64(1_000_000), opts.MaxBlobSize)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, 70, opts.Diff.RenameThreshold)
	assert.True(t, opts.Diff.DetectRenames)
	assert.Equal(t, ".c", opts.Extension)
	assert.Equal(t, fs, opts.Fs)
}

func TestFromConfigMissingCommitFile(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Repository: config.RepositoryConfig{CommitsFile: "/absent"}}

	_, err := pipeline.FromConfig(cfg, afero.NewMemMapFs())
	require.Error(t, err)
}

func TestIsInterrupted(t *testing.T) {
	t.Parallel()

	assert.True(t, pipeline.IsInterrupted(context.Canceled))
	assert.True(t, pipeline.IsInterrupted(context.DeadlineExceeded))
	assert.False(t, pipeline.IsInterrupted(os.ErrNotExist))
}
