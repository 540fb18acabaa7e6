package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSharedState_Missing(t *testing.T) {
	state, err := LoadSharedState(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	assert.False(t, state.Quiet)
	assert.Equal(t, CurrentSchemaVersion, state.SchemaVersion)
}

func TestLoadSharedState_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	state, err := LoadSharedState(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultSharedState(), state)
}

func TestSharedState_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	now := time.Unix(1792415700, 0)

	state := DefaultSharedState()
	state.SetQuiet(true, QuietTriggerUser, "quiet on", "cli", now)
	require.NoError(t, SaveSharedState(path, state))

	loaded, err := LoadSharedState(path)
	require.NoError(t, err)
	assert.True(t, loaded.Quiet)
	assert.Equal(t, now.Unix(), loaded.QuietSince)
	require.NotNil(t, loaded.LastTransition)
	assert.Equal(t, QuietTriggerUser, loaded.LastTransition.Trigger)
	assert.Equal(t, "cli", loaded.LastTransition.Source)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file renamed away")
}

func TestSharedState_ToggleQuiet(t *testing.T) {
	start := time.Unix(1000, 0)
	state := DefaultSharedState()

	assert.True(t, state.ToggleQuiet(QuietTriggerRemote, "toggle", "dbus", start))
	assert.Equal(t, int64(1000), state.QuietSince)

	// Enabling again keeps the original start
	state.SetQuiet(true, QuietTriggerUser, "quiet on", "cli", start.Add(time.Minute))
	assert.Equal(t, int64(1000), state.QuietSince)
	assert.Equal(t, int64(1060), state.LastTransition.Timestamp)

	assert.False(t, state.ToggleQuiet(QuietTriggerUser, "toggle", "tui", start.Add(2*time.Minute)))
	assert.Zero(t, state.QuietSince)
	assert.Equal(t, "tui", state.LastTransition.Source)
}
