package syncer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openmined/gamebox/internal/client/config"
	"github.com/openmined/gamebox/internal/client/pathres"
	"github.com/openmined/gamebox/internal/client/planner"
	"github.com/openmined/gamebox/internal/client/transfer"
	"github.com/openmined/gamebox/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blob struct {
	data    []byte
	modTime time.Time
}

type memRemote struct {
	mu        sync.Mutex
	manifests map[string][]byte
	metadata  map[string]*manifest.Metadata
	blobs     map[string]blob
	saves     map[string][]manifest.SaveFileRecord
	fetches   atomic.Int32
	uploads   atomic.Int32
}

func newMemRemote() *memRemote {
	return &memRemote{
		manifests: map[string][]byte{},
		metadata:  map[string]*manifest.Metadata{},
		blobs:     map[string]blob{},
		saves:     map[string][]manifest.SaveFileRecord{},
	}
}

func (m *memRemote) addGame(t *testing.T, game string, files map[string]string, meta *manifest.Metadata) {
	t.Helper()
	mod := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var recs []manifest.BulkFileRecord
	for p, body := range files {
		recs = append(recs, manifest.BulkFileRecord{Name: filepath.Base(p), Path: p, Size: int64(len(body)), LastModified: mod})
		m.blobs[planner.BulkLocator(game, p)] = blob{data: []byte(body), modTime: mod}
	}
	var buf bytes.Buffer
	require.NoError(t, manifest.WriteCSV(&buf, recs))
	m.manifests[game] = buf.Bytes()
	m.metadata[game] = meta
}

func (m *memRemote) ListGames(context.Context) ([]manifest.GameInfo, error) {
	var out []manifest.GameInfo
	for g := range m.manifests {
		out = append(out, manifest.GameInfo{Name: g})
	}
	return out, nil
}

func (m *memRemote) FetchManifest(_ context.Context, game string) ([]byte, error) {
	if b, ok := m.manifests[game]; ok {
		return b, nil
	}
	return nil, errors.New("not found")
}

func (m *memRemote) FetchMetadata(_ context.Context, game string) (*manifest.Metadata, error) {
	if meta, ok := m.metadata[game]; ok {
		cp := *meta
		return &cp, nil
	}
	return nil, errors.New("not found")
}

func (m *memRemote) ListSaves(_ context.Context, game, folder string) ([]manifest.SaveFileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]manifest.SaveFileRecord(nil), m.saves[game+"/"+folder]...), nil
}

func (m *memRemote) Fetch(_ context.Context, locator string) (*transfer.Payload, error) {
	m.fetches.Add(1)
	m.mu.Lock()
	b, ok := m.blobs[locator]
	m.mu.Unlock()
	if !ok {
		return nil, errors.New("404")
	}
	return &transfer.Payload{Body: io.NopCloser(bytes.NewReader(b.data)), Size: int64(len(b.data)), LastModified: b.modTime}, nil
}

func (m *memRemote) UploadSave(_ context.Context, game, folder string, rec manifest.SaveFileRecord, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.uploads.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	key := game + "/" + folder
	list := m.saves[key][:0:0]
	for _, r := range m.saves[key] {
		if r.Path != rec.Path {
			list = append(list, r)
		}
	}
	m.saves[key] = append(list, rec)
	m.blobs[planner.SaveLocator(game, folder, rec.Path)] = blob{data: data, modTime: rec.LastModified}
	return nil
}

func newSyncer(t *testing.T, remote Remote) (*Syncer, *config.Config) {
	t.Helper()
	tmp := t.TempDir()
	cfg := &config.Config{
		ServerURL:  "http://localhost",
		LibraryDir: filepath.Join(tmp, "library"),
		CacheDir:   filepath.Join(tmp, "cache"),
		Workers:    2,
	}
	require.NoError(t, cfg.Validate())
	s, err := New(cfg, remote, WithResolver(pathres.New(pathres.WithPlatform("linux", func(string) string { return "" }))))
	require.NoError(t, err)
	return s, cfg
}

func TestSyncBulk_Idempotent(t *testing.T) {
	remote := newMemRemote()
	remote.addGame(t, "Celeste", map[string]string{"Celeste.exe": "exe!", "Content/a.pak": "pak"}, &manifest.Metadata{})

	s, cfg := newSyncer(t, remote)
	ctx := context.Background()

	require.NoError(t, s.SyncBulk(ctx, "Celeste"))
	assert.Equal(t, int32(2), remote.fetches.Load())

	data, err := os.ReadFile(filepath.Join(cfg.LibraryDir, "Celeste", "Content", "a.pak"))
	require.NoError(t, err)
	assert.Equal(t, "pak", string(data))

	require.NoError(t, s.SyncBulk(ctx, "Celeste"))
	assert.Equal(t, int32(2), remote.fetches.Load(), "second run must not transfer")
}

func TestSyncSaves_PushThenPull(t *testing.T) {
	remote := newMemRemote()
	meta := &manifest.Metadata{SyncFolders: []string{"$GAME_ROOT/saves"}, Excludes: []string{".bak"}}
	remote.addGame(t, "G", map[string]string{"g.bin": "x"}, meta)
	ctx := context.Background()

	a, cfgA := newSyncer(t, remote)
	saves := filepath.Join(cfgA.LibraryDir, "G", "saves")
	require.NoError(t, os.MkdirAll(filepath.Join(saves, "slots"), 0o755))
	mtime := time.Date(2024, 8, 1, 20, 15, 30, 0, time.UTC)
	for name, body := range map[string]string{"slots/1.sav": "one", "2.sav": "two", "2.sav.bak": "old"} {
		p := filepath.Join(saves, filepath.FromSlash(name))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		require.NoError(t, os.Chtimes(p, mtime, mtime))
	}

	require.NoError(t, a.SyncSaves(ctx, "G", Push))

	listed, err := remote.ListSaves(ctx, "G", manifest.FolderKey("$GAME_ROOT/saves"))
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for _, r := range listed {
		assert.True(t, r.LastModified.Equal(mtime))
	}

	b, cfgB := newSyncer(t, remote)
	require.NoError(t, b.SyncSaves(ctx, "G", Pull))

	got := filepath.Join(cfgB.LibraryDir, "G", "saves", "slots", "1.sav")
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
	info, err := os.Stat(got)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime))
	assert.NoFileExists(t, filepath.Join(cfgB.LibraryDir, "G", "saves", "2.sav.bak"))

	// nothing changed: another push is a no-op
	assert.Equal(t, int32(2), remote.uploads.Load())
	require.NoError(t, a.SyncSaves(ctx, "G", Push))
	assert.Equal(t, int32(2), remote.uploads.Load())
}

func TestSyncSaves_SkipsUnresolvedFolder(t *testing.T) {
	remote := newMemRemote()
	meta := &manifest.Metadata{SyncFolders: []string{"$GAME_ROOT/saves", "$DOCUMENTS/My Games/G"}}
	remote.addGame(t, "G", map[string]string{"g.bin": "x"}, meta)
	ctx := context.Background()

	// the test resolver has no HOME, so $DOCUMENTS cannot resolve
	s, cfg := newSyncer(t, remote)
	saves := filepath.Join(cfg.LibraryDir, "G", "saves")
	require.NoError(t, os.MkdirAll(saves, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(saves, "1.sav"), []byte("one"), 0o644))

	folders, err := s.Folders(ctx, "G")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "$GAME_ROOT/saves", folders[0].Template)

	require.NoError(t, s.SyncSaves(ctx, "G", Push))
	assert.Equal(t, int32(1), remote.uploads.Load())
}

func TestFolders_NoneResolved(t *testing.T) {
	remote := newMemRemote()
	remote.addGame(t, "G", map[string]string{"g.bin": "x"}, &manifest.Metadata{SyncFolders: []string{"$DOCUMENTS/G"}})

	s, _ := newSyncer(t, remote)
	_, err := s.Folders(context.Background(), "G")
	assert.ErrorIs(t, err, pathres.ErrUnresolvedToken)
}

func TestSyncLibrary_ContinuesPastFailure(t *testing.T) {
	remote := newMemRemote()
	remote.addGame(t, "Good", map[string]string{"a": "a"}, &manifest.Metadata{})

	s, cfg := newSyncer(t, remote)
	err := s.SyncLibrary(context.Background(), []string{"Missing", "Good"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing")
	assert.FileExists(t, filepath.Join(cfg.LibraryDir, "Good", "a"))
}

func TestSyncLibrary_StopsWhenCancelled(t *testing.T) {
	remote := newMemRemote()
	remote.addGame(t, "A", map[string]string{"a": "a"}, &manifest.Metadata{})

	s, _ := newSyncer(t, remote)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.SyncLibrary(ctx, []string{"A"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), remote.fetches.Load())
}

func TestLock(t *testing.T) {
	remote := newMemRemote()
	s, cfg := newSyncer(t, remote)

	unlock, err := s.Lock()
	require.NoError(t, err)

	other, err := New(cfg, remote)
	require.NoError(t, err)
	_, err = other.Lock()
	assert.ErrorIs(t, err, ErrLibraryBusy)

	unlock()
	unlock2, err := other.Lock()
	require.NoError(t, err)
	unlock2()
}

func TestResolveConflicts(t *testing.T) {
	dir := t.TempDir()
	newer := filepath.Join(dir, "newer.sav")
	older := filepath.Join(dir, "older.sav")
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.WriteFile(newer, nil, 0o644))
	require.NoError(t, os.WriteFile(older, nil, 0o644))
	require.NoError(t, os.Chtimes(newer, base.Add(time.Hour), base.Add(time.Hour)))
	require.NoError(t, os.Chtimes(older, base.Add(-time.Hour), base.Add(-time.Hour)))

	remote := []manifest.SaveFileRecord{
		{Path: "newer.sav", LastModified: base},
		{Path: "older.sav", LastModified: base},
	}
	down := []transfer.Job{{RelPath: "newer.sav"}, {RelPath: "older.sav"}, {RelPath: "remote-only.sav"}}
	up := []transfer.Job{{RelPath: "newer.sav", Source: newer}, {RelPath: "older.sav", Source: older}, {RelPath: "local-only.sav"}}

	d, u := resolveConflicts(down, up, remote)

	var dp, upaths []string
	for _, j := range d {
		dp = append(dp, j.RelPath)
	}
	for _, j := range u {
		upaths = append(upaths, j.RelPath)
	}
	assert.Equal(t, []string{"older.sav", "remote-only.sav"}, dp)
	assert.Equal(t, []string{"newer.sav", "local-only.sav"}, upaths)
}
