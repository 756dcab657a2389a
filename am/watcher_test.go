package am

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "am.toml")
	require.NoError(t, os.WriteFile(path, []byte("[recompute]\nstructural_delay_ms = 100\n"), DefaultFilePermissions))

	cw, err := NewConfigWatcher(path, nil)
	require.NoError(t, err)
	cw.debouncePeriod = 20 * time.Millisecond

	var got atomic.Int64
	var calls atomic.Int32
	cw.OnReload(func(cfg *Config) error {
		got.Store(int64(cfg.Recompute.StructuralDelayMS))
		calls.Add(1)
		return nil
	})
	cw.Start()
	defer cw.Stop()

	require.NoError(t, os.WriteFile(path, []byte("[recompute]\nstructural_delay_ms = 40\n"), DefaultFilePermissions))

	assert.Eventually(t, func() bool { return got.Load() == 40 }, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestConfigWatcher_InvalidConfigSkipsCallbacks(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "am.toml")
	require.NoError(t, os.WriteFile(path, []byte("[history]\nundo_capacity = 5\n"), DefaultFilePermissions))

	cw, err := NewConfigWatcher(path, nil)
	require.NoError(t, err)
	defer cw.Stop()

	var calls atomic.Int32
	cw.OnReload(func(*Config) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, os.WriteFile(path, []byte("[history]\nundo_capacity = -1\n"), DefaultFilePermissions))
	err = cw.reload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history.undo_capacity")
	assert.Equal(t, int32(0), calls.Load())
}

func TestNewConfigWatcher_MissingFile(t *testing.T) {
	_, err := NewConfigWatcher(filepath.Join(t.TempDir(), "absent.toml"), nil)
	assert.Error(t, err)
}

func TestConfigWatcher_StopWithoutStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, os.WriteFile(path, nil, DefaultFilePermissions))

	cw, err := NewConfigWatcher(path, nil)
	require.NoError(t, err)
	assert.NoError(t, cw.Stop())
}
