package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/openmined/gamebox/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newTestLibrary(t *testing.T) (*Library, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &Config{Dir: dir}
	require.NoError(t, cfg.Validate())
	return New(cfg), dir
}

func TestScanWritesManifest(t *testing.T) {
	lib, dir := newTestLibrary(t)
	root := filepath.Join(dir, "Hollow")
	writeFile(t, filepath.Join(root, "game.exe"), "exe")
	writeFile(t, filepath.Join(root, "data", "level1.pak"), "level-one")
	writeFile(t, filepath.Join(root, "logs", "run.log"), "noise")
	writeFile(t, filepath.Join(root, "crash.dmp"), "dump")
	writeFile(t, filepath.Join(root, manifest.IgnoreFile), "logs/\n*.dmp\n")

	m, err := lib.Scan(context.Background(), "Hollow")
	require.NoError(t, err)
	require.Len(t, m.Files, 2)
	assert.Equal(t, "data/level1.pak", m.Files[0].Path)
	assert.Equal(t, "level1.pak", m.Files[0].Name)
	assert.Equal(t, int64(9), m.Files[0].Size)
	assert.Equal(t, digest.FromString("level-one"), m.Files[0].Hash)
	assert.Equal(t, "game.exe", m.Files[1].Path)

	p, err := lib.ManifestPath("Hollow")
	require.NoError(t, err)
	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	records, err := manifest.ReadCSV(f)
	require.NoError(t, err)
	assert.Equal(t, m.Files, records)

	meta, err := lib.Metadata("Hollow")
	require.NoError(t, err)
	assert.Equal(t, "Hollow", meta.Name)
	assert.Equal(t, manifest.EngineUnknown, meta.Engine)
}

func TestScanPreservesMetadata(t *testing.T) {
	lib, dir := newTestLibrary(t)
	writeFile(t, filepath.Join(dir, "Quest", "quest.exe"), "q")
	writeFile(t, filepath.Join(dir, manifestDirName, "Quest", manifest.MetadataFile),
		"name: Quest\nengine: unity\nexecutables:\n  windows: quest.exe\n")

	_, err := lib.Scan(context.Background(), "Quest")
	require.NoError(t, err)

	meta, err := lib.Metadata("Quest")
	require.NoError(t, err)
	assert.Equal(t, manifest.EngineUnity, meta.Engine)
	assert.True(t, meta.WindowsOnly())
}

func TestGamesAndFilePath(t *testing.T) {
	lib, dir := newTestLibrary(t)
	writeFile(t, filepath.Join(dir, "B", "b.bin"), "b")
	writeFile(t, filepath.Join(dir, "A", "a.bin"), "a")
	writeFile(t, filepath.Join(dir, "Unscanned", "u.bin"), "u")

	for _, g := range []string{"A", "B"} {
		_, err := lib.Scan(context.Background(), g)
		require.NoError(t, err)
	}

	games, err := lib.Games()
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "A", games[0].Name)
	assert.Equal(t, "B", games[1].Name)

	p, err := lib.FilePath("A", "a.bin")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "A", "a.bin"), p)

	_, err = lib.FilePath("A", "../B/b.bin")
	assert.ErrorIs(t, err, ErrFileNotFound)
	_, err = lib.FilePath("A", "missing.bin")
	assert.ErrorIs(t, err, ErrFileNotFound)
	_, err = lib.ManifestPath("Unscanned")
	assert.ErrorIs(t, err, ErrGameNotFound)
	_, err = lib.ManifestPath("../A")
	assert.ErrorIs(t, err, ErrInvalidGameName)
}

func TestScanAll(t *testing.T) {
	lib, dir := newTestLibrary(t)
	writeFile(t, filepath.Join(dir, "One", "1.bin"), "1")
	writeFile(t, filepath.Join(dir, "Two", "2.bin"), "2")

	scanned, err := lib.ScanAll(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"One", "Two"}, scanned)

	games, err := lib.Games()
	require.NoError(t, err)
	assert.Len(t, games, 2)
}

func TestEmptyLibrary(t *testing.T) {
	lib, _ := newTestLibrary(t)
	games, err := lib.Games()
	require.NoError(t, err)
	assert.Empty(t, games)
}
