// Package blob stores per-identity save data behind a pluggable backend and
// keeps a sqlite index used to answer listings.
package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/gamebox/internal/manifest"
)

// SaveChange describes a stored save upload.
type SaveChange struct {
	Key    SaveKey
	Record manifest.SaveFileRecord
	Device string
}

type SaveChangeCallback func(change SaveChange)

type PutSaveParams struct {
	Key          SaveKey
	Size         int64
	LastModified time.Time
	Body         io.Reader
	// Device identifies the uploading client; it is echoed in notifications.
	Device string
}

type SaveStore struct {
	backend Backend
	index   *SaveIndex
	indexer *saveIndexer
	// held shared by Put and exclusively by a reindex pass
	writeMu     *sync.RWMutex
	callbacks   []SaveChangeCallback
	callbacksMu sync.RWMutex
}

// NewSaveStore builds the configured backend and opens the index on db.
func NewSaveStore(ctx context.Context, cfg *Config, db *sqlx.DB) (*SaveStore, error) {
	var backend Backend
	switch cfg.Backend {
	case BackendS3:
		s3b, err := NewS3BackendWithConfig(ctx, &cfg.S3)
		if err != nil {
			return nil, err
		}
		backend = s3b
	default:
		fsb, err := NewFSBackend(cfg.Dir)
		if err != nil {
			return nil, err
		}
		backend = fsb
	}
	return NewSaveStoreWithBackend(backend, db)
}

func NewSaveStoreWithBackend(backend Backend, db *sqlx.DB) (*SaveStore, error) {
	index, err := newSaveIndex(db)
	if err != nil {
		return nil, err
	}
	writeMu := &sync.RWMutex{}
	return &SaveStore{
		backend: backend,
		index:   index,
		indexer: newSaveIndexer(backend, index, writeMu),
		writeMu: writeMu,
	}, nil
}

func (s *SaveStore) Start(ctx context.Context) error {
	slog.Debug("save store start")
	return s.indexer.Start(ctx)
}

func (s *SaveStore) Shutdown(_ context.Context) error {
	slog.Debug("save store shutdown")
	return s.index.Close()
}

// OnSaveChange registers a callback invoked after every successful Put.
func (s *SaveStore) OnSaveChange(cb SaveChangeCallback) {
	s.callbacksMu.Lock()
	defer s.callbacksMu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// List returns the records of one sync folder, sorted by path.
func (s *SaveStore) List(user, game, folder string) ([]manifest.SaveFileRecord, error) {
	prefix := SaveKey{User: user, Game: game, Folder: folder, Path: "x"}
	if err := prefix.Validate(); err != nil {
		return nil, err
	}

	objs, err := s.index.FilterByPrefix(prefix.Prefix())
	if err != nil {
		return nil, err
	}

	records := make([]manifest.SaveFileRecord, 0, len(objs))
	for _, obj := range objs {
		rel := obj.Key[len(prefix.Prefix()):]
		records = append(records, manifest.SaveFileRecord{
			Name:         path.Base(rel),
			Path:         rel,
			Size:         obj.Size,
			LastModified: obj.ModTime(),
		})
	}
	return records, nil
}

// Stat returns the indexed record of a key.
func (s *SaveStore) Stat(key SaveKey) (*manifest.SaveFileRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	obj, ok := s.index.Get(key.String())
	if !ok {
		return nil, ErrObjectNotFound
	}
	return &manifest.SaveFileRecord{
		Name:         path.Base(key.Path),
		Path:         key.Path,
		Size:         obj.Size,
		LastModified: obj.ModTime(),
	}, nil
}

// Open returns a reader for a stored save. The caller closes the body.
func (s *SaveStore) Open(ctx context.Context, key SaveKey) (*GetObjectResponse, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return s.backend.GetObject(ctx, key.String())
}

// Put stores a save, updates the index and notifies callbacks.
func (s *SaveStore) Put(ctx context.Context, params *PutSaveParams) (*manifest.SaveFileRecord, error) {
	if err := params.Key.Validate(); err != nil {
		return nil, err
	}

	obj, err := s.put(ctx, params)
	if err != nil {
		return nil, err
	}
	slog.Info("save stored", "key", obj.Key, "size", obj.Size)

	rec := manifest.SaveFileRecord{
		Name:         path.Base(params.Key.Path),
		Path:         params.Key.Path,
		Size:         obj.Size,
		LastModified: obj.ModTime(),
	}
	s.notify(SaveChange{Key: params.Key, Record: rec, Device: params.Device})
	return &rec, nil
}

// put writes the object and its index row with no reindex pass in between,
// so a listing taken before the write cannot drop the new row.
func (s *SaveStore) put(ctx context.Context, params *PutSaveParams) (*ObjectInfo, error) {
	s.writeMu.RLock()
	defer s.writeMu.RUnlock()

	obj, err := s.backend.PutObject(ctx, &PutObjectParams{
		Key:          params.Key.String(),
		Size:         params.Size,
		LastModified: params.LastModified,
		Body:         params.Body,
	})
	if err != nil {
		return nil, err
	}
	if err := s.index.Set(obj); err != nil {
		return nil, fmt.Errorf("update index %s: %w", obj.Key, err)
	}
	return obj, nil
}

func (s *SaveStore) notify(change SaveChange) {
	s.callbacksMu.RLock()
	defer s.callbacksMu.RUnlock()

	for _, cb := range s.callbacks {
		go cb(change)
	}
}
