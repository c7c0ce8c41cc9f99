package framework_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locfang/pkg/framework"
)

func TestStartProfiles_Disabled(t *testing.T) {
	t.Parallel()

	p, err := framework.StartProfiles("", "", nil)
	require.NoError(t, err)
	require.NoError(t, p.Stop())
}

// CPU profiling is process-global, so this test does not run in parallel.
func TestStartProfiles_WritesFiles(t *testing.T) {
	dir := t.TempDir()
	cpuPath := filepath.Join(dir, "cpu.pprof")
	heapPath := filepath.Join(dir, "heap.pprof")

	p, err := framework.StartProfiles(cpuPath, heapPath, nil)
	require.NoError(t, err)
	require.NoError(t, p.Stop())

	for _, path := range []string{cpuPath, heapPath} {
		info, statErr := os.Stat(path)
		require.NoError(t, statErr)
		assert.Positive(t, info.Size(), path)
	}
}

func TestStartProfiles_BadPath(t *testing.T) {
	t.Parallel()

	_, err := framework.StartProfiles(filepath.Join(t.TempDir(), "missing", "cpu.pprof"), "", nil)
	require.Error(t, err)
}
