package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openmined/gamebox/internal/server"
	"github.com/openmined/gamebox/internal/server/blob"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// newTestCmd mirrors the root flags so tests don't share flag state.
func newTestCmd(t *testing.T, configPath string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().StringP("config", "f", "", "")
	cmd.Flags().StringP("library", "l", "", "")
	cmd.Flags().StringP("bind", "b", server.DefaultAddr, "")
	cmd.Flags().StringP("cert", "c", "", "")
	cmd.Flags().StringP("key", "k", "", "")
	if configPath != "" {
		require.NoError(t, cmd.Flags().Set("config", configPath))
	}
	return cmd
}

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadConfigDefaults(t *testing.T) {

	cfg, err := loadConfig(newTestCmd(t, ""))
	require.NoError(t, err)

	assert.Equal(t, server.DefaultAddr, cfg.HTTP.Addr)
	assert.Equal(t, server.DefaultRateLimit, cfg.HTTP.RateLimit)
	assert.Equal(t, server.DefaultDataDir, cfg.DataDir)
	assert.Equal(t, blob.BackendFS, cfg.Blob.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Auth.SessionIdleTimeout)
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("GAMEBOX_HTTP_ADDR", ":8080")
	t.Setenv("GAMEBOX_HTTP_CERT_FILE", "test-cert.pem")
	t.Setenv("GAMEBOX_HTTP_KEY_FILE", "test-key.pem")
	t.Setenv("GAMEBOX_LIBRARY_DIR", "/srv/games")
	t.Setenv("GAMEBOX_AUTH_DEFAULT_IDENTITY", "guest")
	t.Setenv("GAMEBOX_AUTH_SESSION_IDLE_TIMEOUT", "30m")
	t.Setenv("GAMEBOX_BLOB_BACKEND", "s3")
	t.Setenv("GAMEBOX_BLOB_S3_BUCKET_NAME", "test-bucket")
	t.Setenv("GAMEBOX_BLOB_S3_REGION", "test-region")
	t.Setenv("GAMEBOX_BLOB_S3_ENDPOINT", "http://test-endpoint")
	t.Setenv("GAMEBOX_BLOB_S3_ACCESS_KEY", "test-access-key")
	t.Setenv("GAMEBOX_BLOB_S3_SECRET_KEY", "test-secret-key")

	cfg, err := loadConfig(newTestCmd(t, ""))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "test-cert.pem", cfg.HTTP.CertFile)
	assert.Equal(t, "test-key.pem", cfg.HTTP.KeyFile)
	assert.Equal(t, "/srv/games", cfg.Library.Dir)
	assert.Equal(t, "guest", cfg.Auth.DefaultIdentity)
	assert.Equal(t, 30*time.Minute, cfg.Auth.SessionIdleTimeout)
	assert.Equal(t, blob.BackendS3, cfg.Blob.Backend)
	assert.Equal(t, "test-bucket", cfg.Blob.S3.BucketName)
	assert.Equal(t, "test-region", cfg.Blob.S3.Region)
	assert.Equal(t, "http://test-endpoint", cfg.Blob.S3.Endpoint)
	assert.Equal(t, "test-access-key", cfg.Blob.S3.AccessKey)
	assert.Equal(t, "test-secret-key", cfg.Blob.S3.SecretKey)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
http:
  addr: localhost:8080
  rate_limit: 10-S

library:
  dir: /srv/games
  manifest_dir: /srv/manifests

auth:
  default_identity: guest
  identity_cache_ttl: 5m

blob:
  backend: fs
  dir: /srv/saves
`)

	cfg, err := loadConfig(newTestCmd(t, path))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.HTTP.Addr)
	assert.Equal(t, "10-S", cfg.HTTP.RateLimit)
	assert.Equal(t, "/srv/games", cfg.Library.Dir)
	assert.Equal(t, "/srv/manifests", cfg.Library.ManifestDir)
	assert.Equal(t, "guest", cfg.Auth.DefaultIdentity)
	assert.Equal(t, 5*time.Minute, cfg.Auth.IdentityCacheTTL)
	assert.Equal(t, "/srv/saves", cfg.Blob.Dir)
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
	"http": {"addr": "localhost:38080"},
	"library": {"dir": "/srv/json-games"},
	"blob": {
		"backend": "s3",
		"s3": {"bucket_name": "saves", "region": "eu-west-1", "use_accelerate": true}
	}
}`)

	cfg, err := loadConfig(newTestCmd(t, path))
	require.NoError(t, err)

	assert.Equal(t, "localhost:38080", cfg.HTTP.Addr)
	assert.Equal(t, "/srv/json-games", cfg.Library.Dir)
	assert.Equal(t, "saves", cfg.Blob.S3.BucketName)
	assert.Equal(t, "eu-west-1", cfg.Blob.S3.Region)
	assert.True(t, cfg.Blob.S3.UseAccelerate)
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfig(t, "config.yaml", "http:\n  addr: file:1\nlibrary:\n  dir: /from/file\n")
	t.Setenv("GAMEBOX_HTTP_ADDR", "env:2")

	cmd := newTestCmd(t, path)
	require.NoError(t, cmd.Flags().Set("library", "/from/flag"))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "env:2", cfg.HTTP.Addr)
	assert.Equal(t, "/from/flag", cfg.Library.Dir)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(newTestCmd(t, filepath.Join(t.TempDir(), "nope.yaml")))
	assert.NoError(t, err)

	bad := writeConfig(t, "bad.yaml", "http: [\n")
	_, err = loadConfig(newTestCmd(t, bad))
	assert.Error(t, err)
}

func TestHashPasswordCommand(t *testing.T) {
	cmd := newHashPasswordCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader("hunter2\n"))
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	line := strings.TrimSpace(out.String())
	require.True(t, strings.HasPrefix(line, "password_hash: "))
	hash := strings.Trim(strings.TrimPrefix(line, "password_hash: "), `"`)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))
}

func TestScanCommand(t *testing.T) {
	lib := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(lib, "Hollow"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(lib, "Hollow", "hollow.exe"), []byte("1234"), 0o644))

	cmd := newScanCmd()
	cmd.Flags().StringP("config", "f", "", "")
	cmd.Flags().StringP("library", "l", "", "")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", filepath.Join(lib, "none.yaml"), "--library", lib, "Hollow"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Hollow: 1 files, 4 B")
	assert.FileExists(t, filepath.Join(lib, ".gamebox", "Hollow", "manifest.csv"))
}
