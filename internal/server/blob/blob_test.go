package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openmined/gamebox/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*SaveStore, string) {
	t.Helper()
	dir := t.TempDir()
	sqlDB, err := db.NewSqliteDB(db.WithPath(db.MemoryPath))
	require.NoError(t, err)

	store, err := NewSaveStore(context.Background(), &Config{Backend: BackendFS, Dir: dir}, sqlDB)
	require.NoError(t, err)
	t.Cleanup(func() { store.Shutdown(context.Background()) })
	return store, dir
}

func TestSaveStorePutList(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	changes := make(chan SaveChange, 1)
	store.OnSaveChange(func(c SaveChange) { changes <- c })

	mtime := time.Date(2024, 3, 1, 12, 30, 45, 900_000_000, time.UTC)
	key := SaveKey{User: "alice", Game: "Hollow", Folder: "f00d", Path: "slot1/save.dat"}
	rec, err := store.Put(ctx, &PutSaveParams{
		Key:          key,
		Size:         5,
		LastModified: mtime,
		Body:         strings.NewReader("hello"),
		Device:       "dev-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "save.dat", rec.Name)
	assert.Equal(t, mtime.Truncate(time.Second), rec.LastModified)

	info, err := os.Stat(filepath.Join(dir, "alice", "Hollow", "f00d", "slot1", "save.dat"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime.Truncate(time.Second)))

	list, err := store.List("alice", "Hollow", "f00d")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "slot1/save.dat", list[0].Path)
	assert.Equal(t, int64(5), list[0].Size)
	assert.Equal(t, mtime.Truncate(time.Second), list[0].LastModified)

	other, err := store.List("bob", "Hollow", "f00d")
	require.NoError(t, err)
	assert.Empty(t, other)

	select {
	case c := <-changes:
		assert.Equal(t, key, c.Key)
		assert.Equal(t, "dev-1", c.Device)
	case <-time.After(time.Second):
		t.Fatal("no change callback")
	}

	obj, err := store.Open(ctx, key)
	require.NoError(t, err)
	body, _ := io.ReadAll(obj.Body)
	obj.Body.Close()
	assert.Equal(t, "hello", string(body))
}

func TestSaveStorePutSizeMismatch(t *testing.T) {
	store, _ := newTestStore(t)
	key := SaveKey{User: "alice", Game: "g", Folder: "f", Path: "a"}

	_, err := store.Put(context.Background(), &PutSaveParams{
		Key:          key,
		Size:         10,
		LastModified: time.Now(),
		Body:         strings.NewReader("short"),
	})
	require.Error(t, err)

	_, err = store.Stat(key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestSaveStoreStartIndexesExisting(t *testing.T) {
	store, dir := newTestStore(t)

	p := filepath.Join(dir, "bob", "g", "f", "x.sav")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("abc"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, store.Start(ctx))

	rec, err := store.Stat(SaveKey{User: "bob", Game: "g", Folder: "f", Path: "x.sav"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Size)
}

func TestSaveStoreOpenMissing(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Open(context.Background(), SaveKey{User: "a", Game: "g", Folder: "f", Path: "nope"})
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestSaveStorePartNameSurvivesReindex(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	key := SaveKey{User: "alice", Game: "G", Folder: "f00d", Path: "autosave.part"}
	_, err := store.Put(ctx, &PutSaveParams{
		Key:          key,
		Size:         4,
		LastModified: time.Now(),
		Body:         strings.NewReader("data"),
	})
	require.NoError(t, err)

	require.NoError(t, store.indexer.reindex(ctx))

	list, err := store.List("alice", "G", "f00d")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "autosave.part", list[0].Path)

	// in-flight uploads stay out of the key space
	staging, err := os.ReadDir(filepath.Join(dir, stagingDir))
	require.NoError(t, err)
	assert.Empty(t, staging)
}

func TestSaveStoreReindexSkipsStaging(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	p := filepath.Join(dir, stagingDir, ".x.sav.123.part")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("partial"), 0o644))

	objs, err := store.backend.ListObjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, objs)
}

// gatedBackend holds ListObjects until released.
type gatedBackend struct {
	Backend
	listing chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *gatedBackend) ListObjects(ctx context.Context) ([]*ObjectInfo, error) {
	b.once.Do(func() { close(b.listing) })
	<-b.release
	return b.Backend.ListObjects(ctx)
}

func TestSaveStorePutDuringReindex(t *testing.T) {
	fsb, err := NewFSBackend(t.TempDir())
	require.NoError(t, err)
	sqlDB, err := db.NewSqliteDB(db.WithPath(db.MemoryPath))
	require.NoError(t, err)

	backend := &gatedBackend{Backend: fsb, listing: make(chan struct{}), release: make(chan struct{})}
	store, err := NewSaveStoreWithBackend(backend, sqlDB)
	require.NoError(t, err)
	t.Cleanup(func() { store.Shutdown(context.Background()) })

	ctx := context.Background()
	reindexed := make(chan error, 1)
	go func() { reindexed <- store.indexer.reindex(ctx) }()
	<-backend.listing

	key := SaveKey{User: "alice", Game: "G", Folder: "f00d", Path: "slot1.sav"}
	stored := make(chan error, 1)
	go func() {
		_, err := store.Put(ctx, &PutSaveParams{
			Key:          key,
			Size:         3,
			LastModified: time.Now(),
			Body:         strings.NewReader("abc"),
		})
		stored <- err
	}()

	assert.Never(t, func() bool { return len(stored) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
	close(backend.release)

	require.NoError(t, <-reindexed)
	require.NoError(t, <-stored)

	rec, err := store.Stat(key)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Size)
}
