package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/gamebox/internal/client/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GAMEBOX_CONFIG_PATH", filepath.Join(dir, "config.json"))
	t.Setenv("GAMEBOX_SERVER_URL", "https://games.example.net")
	t.Setenv("GAMEBOX_LIBRARY_DIR", filepath.Join(dir, "library"))
	t.Setenv("GAMEBOX_USERNAME", "ana")
	t.Setenv("GAMEBOX_PASSWORD", "pw")
	t.Setenv("GAMEBOX_COMPAT_PREFIX", filepath.Join(dir, "prefix"))
	t.Setenv("GAMEBOX_WORKERS", "3")

	cfg, err := loadConfig(newTestRoot())
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, filepath.Join(dir, "config.json"), cfg.Path)
	assert.Equal(t, "https://games.example.net", cfg.ServerURL)
	assert.Equal(t, filepath.Join(dir, "library"), cfg.LibraryDir)
	assert.Equal(t, "ana", cfg.Username)
	assert.Equal(t, "pw", cfg.Password)
	assert.Equal(t, filepath.Join(dir, "prefix"), cfg.CompatPrefix)
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoadConfigJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
	"server_url": "http://nas.local:8780",
	"library_dir": "/tmp/gamebox-json",
	"username": "kid",
	"lenient_paths": true
}`), 0o644))
	t.Setenv("GAMEBOX_CONFIG_PATH", "")

	cmd := newTestRoot()
	require.NoError(t, cmd.PersistentFlags().Set("config", path))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "http://nas.local:8780", cfg.ServerURL)
	assert.Equal(t, "/tmp/gamebox-json", cfg.LibraryDir)
	assert.Equal(t, "kid", cfg.Username)
	assert.True(t, cfg.LenientPaths)
	assert.Equal(t, config.DefaultCacheDir, cfg.CacheDir)
}

func TestLoadConfigFlagsWin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server_url": "http://file:1", "library_dir": "/from/file"}`), 0o644))
	t.Setenv("GAMEBOX_CONFIG_PATH", path)
	t.Setenv("GAMEBOX_SERVER_URL", "http://env:2")

	cmd := newTestRoot()
	require.NoError(t, cmd.PersistentFlags().Set("server", "http://flag:3"))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "http://flag:3", cfg.ServerURL)
	assert.Equal(t, "/from/file", cfg.LibraryDir)
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	t.Setenv("GAMEBOX_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := loadConfig(newTestRoot())
	require.NoError(t, err)
	assert.Equal(t, config.DefaultServerURL, cfg.ServerURL)
	assert.Equal(t, config.DefaultLibraryDir, cfg.LibraryDir)
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server_url": `), 0o644))
	t.Setenv("GAMEBOX_CONFIG_PATH", path)

	_, err := loadConfig(newTestRoot())
	assert.Error(t, err)
}
