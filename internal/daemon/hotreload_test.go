package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/adhan/internal/config"
	"github.com/jmylchreest/adhan/internal/store"
)

// touch bumps path's modification time past anything the poller has seen.
func touch(t *testing.T, path string, offset time.Duration) {
	t.Helper()
	ts := time.Now().Add(offset)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func TestStateWatcher_Check(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	w := NewStateWatcher(path, nil)

	var got *store.SharedState
	w.SetChangeCallback(func(s *store.SharedState) { got = s })

	assert.False(t, w.Check(), "missing file")

	state := store.DefaultSharedState()
	state.SetQuiet(true, store.QuietTriggerUser, "quiet on", "cli", time.Now())
	require.NoError(t, store.SaveSharedState(path, state))

	assert.True(t, w.Check())
	require.NotNil(t, got)
	assert.True(t, got.Quiet)

	got = nil
	assert.False(t, w.Check(), "unchanged")
	assert.Nil(t, got)

	state.SetQuiet(false, store.QuietTriggerUser, "quiet off", "cli", time.Now())
	require.NoError(t, store.SaveSharedState(path, state))
	touch(t, path, time.Hour)

	assert.True(t, w.Check())
	require.NotNil(t, got)
	assert.False(t, got.Quiet)
}

func TestStateWatcher_StartPrimes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, store.SaveSharedState(path, store.DefaultSharedState()))

	w := NewStateWatcher(path, nil)
	w.SetPollInterval(time.Hour)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.False(t, w.Check(), "existing file is not a change")
	assert.Equal(t, path, w.Path())
}

func TestStateWatcher_DrivesKiosk(t *testing.T) {
	k, _, _ := newTestKiosk(t)

	w := NewStateWatcher(k.statePath, nil)
	w.SetChangeCallback(k.ApplyState)
	w.SetPollInterval(10 * time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	state := store.DefaultSharedState()
	state.SetQuiet(true, store.QuietTriggerUser, "quiet on", "cli", time.Now())
	require.NoError(t, store.SaveSharedState(k.statePath, state))
	touch(t, k.statePath, time.Hour)

	assert.Eventually(t, k.Quiet, time.Second, 10*time.Millisecond)
}

func TestConfigWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adhand.toml")
	w, err := NewConfigWatcher(path, nil)
	require.NoError(t, err)

	initial := config.DefaultDaemonConfig()
	w.cbMu.Lock()
	w.currentConfig = initial
	w.cbMu.Unlock()

	var reloaded *config.DaemonConfig
	var reloadErr error
	w.SetReloadCallback(func(c *config.DaemonConfig) { reloaded = c })
	w.SetErrorCallback(func(err error) { reloadErr = err })

	require.NoError(t, os.WriteFile(path, []byte("[location]\nname = \"East London Mosque\"\n"), 0o644))
	assert.True(t, w.Check())
	require.NotNil(t, reloaded)
	assert.Equal(t, "East London Mosque", reloaded.Location.Name)
	assert.Same(t, reloaded, w.GetCurrentConfig())
	assert.NoError(t, reloadErr)

	reloaded = nil
	require.NoError(t, os.WriteFile(path, []byte("[schedule]\nblackout_minutes = 500\n"), 0o644))
	touch(t, path, time.Hour)
	assert.True(t, w.Check())
	assert.Nil(t, reloaded)
	assert.Error(t, reloadErr)
	assert.Equal(t, "East London Mosque", w.GetCurrentConfig().Location.Name, "invalid config keeps the last good one")
}

func TestConfigWatcher_DefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	w, err := NewConfigWatcher("", nil)
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/adhan/adhand.toml", w.Path())
}
