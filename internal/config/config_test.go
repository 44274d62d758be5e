package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaultsWithoutConfigFile(t *testing.T) {
	home := t.TempDir()

	v, err := New(home)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, DirName, "projects.toml"), v.GetString(KeyProjectsPath))
	assert.Equal(t, filepath.Join(home, DirName, "state.toml"), v.GetString(KeyStatePath))

	sync := SyncSettings(v)
	assert.Equal(t, 30*time.Second, sync.Interval)
	assert.Equal(t, 60*time.Second, sync.SoftBudget)
	assert.Equal(t, 90*time.Second, sync.HardDeadline)
	assert.Equal(t, 120*time.Second, sync.DownloadTimeout)
	assert.Equal(t, 4, sync.Workers)

	itc := ITCSettings(v)
	assert.Equal(t, "https://itunesconnect.apple.com/", itc.BaseURL)
	assert.Equal(t, "https://idmsa.apple.com/", itc.AuthURL)
}

func TestNewReadsConfigFileAndEnvironment(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, DirName)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[sync]
interval = "45s"

[workers]
count = 8

[log]
level = "debug"
`), 0o600))
	t.Setenv("ITCSYNC_ITC_BASE_URL", "http://127.0.0.1:9000/")

	v, err := New(home)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, SyncSettings(v).Interval)
	assert.Equal(t, 8, SyncSettings(v).Workers)
	assert.Equal(t, "debug", LogSettings(v).Level)
	assert.Equal(t, "http://127.0.0.1:9000/", ITCSettings(v).BaseURL)
}

func TestNewRejectsMalformedConfigFile(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, DirName)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not = [valid"), 0o600))

	_, err := New(home)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}
