package blob

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const indexInterval = 15 * time.Minute

// saveIndexer reconciles the index with the backend on start and then
// periodically, picking up objects written or removed out of band.
type saveIndexer struct {
	backend  Backend
	index    *SaveIndex
	writeMu  *sync.RWMutex
	interval time.Duration
}

func newSaveIndexer(backend Backend, index *SaveIndex, writeMu *sync.RWMutex) *saveIndexer {
	return &saveIndexer{backend: backend, index: index, writeMu: writeMu, interval: indexInterval}
}

// Start runs one synchronous pass so listings are complete before the
// server accepts requests, then keeps reindexing until ctx is done.
func (si *saveIndexer) Start(ctx context.Context) error {
	if err := si.reindex(ctx); err != nil {
		return err
	}
	go si.loop(ctx)
	return nil
}

func (si *saveIndexer) loop(ctx context.Context) {
	ticker := time.NewTicker(si.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("save indexer stopped")
			return
		case <-ticker.C:
			if err := si.reindex(ctx); err != nil {
				slog.Error("save indexer", "error", err)
			}
		}
	}
}

func (si *saveIndexer) reindex(ctx context.Context) error {
	si.writeMu.Lock()
	defer si.writeMu.Unlock()

	start := time.Now()

	objs, err := si.backend.ListObjects(ctx)
	if err != nil {
		return fmt.Errorf("list saves: %w", err)
	}
	res, err := si.index.bulkUpdate(objs)
	if err != nil {
		return fmt.Errorf("update save index: %w", err)
	}

	slog.Info("save index",
		"objects", len(objs),
		"added", res.Added,
		"updated", res.Updated,
		"deleted", res.Deleted,
		"took", time.Since(start).Round(time.Millisecond),
	)
	return nil
}
