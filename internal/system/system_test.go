package system

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejoacosta74/shrimpy-stream/internal/config"
)

func TestSettingsApply(t *testing.T) {
	settings := FromConfig(config.SystemConfig{MaxProcs: 1, GCPercent: 50})
	prev := settings.Apply()
	defer func() {
		runtime.GOMAXPROCS(prev.MaxProcs)
		debug.SetGCPercent(prev.GCPercent)
	}()

	assert.Equal(t, 1, runtime.GOMAXPROCS(0))
	assert.Equal(t, 50, debug.SetGCPercent(50))
	assert.Positive(t, prev.MaxProcs)
	assert.Zero(t, prev.MaxThreads)
	assert.Zero(t, prev.MemoryLimit)
}

func TestSettingsApplyZeroIsNoop(t *testing.T) {
	procs := runtime.GOMAXPROCS(0)
	prev := FromConfig(config.SystemConfig{}).Apply()

	assert.Equal(t, procs, runtime.GOMAXPROCS(0))
	assert.Zero(t, prev.MaxProcs)
}

func TestProfiling(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.prof")
	mem := filepath.Join(dir, "mem.prof")

	stop, err := StartProfiling(cpu, mem)
	require.NoError(t, err)
	require.NoError(t, stop())

	for _, path := range []string{cpu, mem} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestProfilingDisabled(t *testing.T) {
	stop, err := StartProfiling("", "")
	require.NoError(t, err)
	assert.NoError(t, stop())
}

func TestProfilingBadPath(t *testing.T) {
	_, err := StartProfiling(filepath.Join(t.TempDir(), "missing", "cpu.prof"), "")
	assert.Error(t, err)
}
