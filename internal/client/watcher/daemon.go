package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/openmined/gamebox/internal/client/planner"
	"github.com/openmined/gamebox/internal/client/syncer"
	"github.com/openmined/gamebox/internal/manifest"
	"golang.org/x/sync/errgroup"
)

const reconnectMax = time.Minute

// EventSource streams save notifications from the server.
type EventSource interface {
	Events(ctx context.Context) (<-chan manifest.SaveEvent, error)
}

// FolderSyncer is the part of the syncer the daemon drives.
type FolderSyncer interface {
	Folders(ctx context.Context, game string) ([]planner.SaveFolder, error)
	SyncFolder(ctx context.Context, f planner.SaveFolder, dir syncer.Direction) error
}

type Daemon struct {
	Syncer   FolderSyncer
	Source   EventSource
	Games    []string
	DeviceID string
	Debounce time.Duration

	// one folder sync at a time; pull and push of the same folder must not
	// interleave
	mu sync.Mutex
}

// Run does an initial two-way sync of every folder, then follows local
// changes and server notifications until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	folders := make(map[string]planner.SaveFolder)
	var list []planner.SaveFolder
	for _, game := range d.Games {
		fs, err := d.Syncer.Folders(ctx, game)
		if err != nil {
			slog.Warn("watch skipped game", "game", game, "error", err)
			continue
		}
		for _, f := range fs {
			folders[f.Game+"/"+f.Key] = f
			list = append(list, f)
			d.sync(ctx, f, syncer.Both)
		}
	}
	if len(list) == 0 {
		slog.Warn("watch has no folders to follow")
		<-ctx.Done()
		return nil
	}

	w := NewFolderWatcher(list, d.Debounce)
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case f := <-w.Changes():
				d.sync(gctx, f, syncer.Push)
			}
		}
	})
	g.Go(func() error {
		d.followRemote(gctx, folders)
		return nil
	})
	return g.Wait()
}

func (d *Daemon) followRemote(ctx context.Context, folders map[string]planner.SaveFolder) {
	if d.Source == nil {
		<-ctx.Done()
		return
	}

	backoff := time.Second
	for ctx.Err() == nil {
		events, err := d.Source.Events(ctx)
		if err != nil {
			slog.Warn("events connect failed", "error", err, "retry", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, reconnectMax)
			continue
		}
		backoff = time.Second

		d.drain(ctx, events, folders)
	}
}

func (d *Daemon) drain(ctx context.Context, events <-chan manifest.SaveEvent, folders map[string]planner.SaveFolder) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != manifest.EventSaveUpdated || (d.DeviceID != "" && ev.Device == d.DeviceID) {
				continue
			}
			f, found := folders[ev.Game+"/"+ev.Folder]
			if !found {
				continue
			}
			slog.Info("remote save changed", "game", ev.Game, "path", ev.File.Path)
			d.sync(ctx, f, syncer.Pull)
		}
	}
}

func (d *Daemon) sync(ctx context.Context, f planner.SaveFolder, dir syncer.Direction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.Syncer.SyncFolder(ctx, f, dir); err != nil {
		slog.Warn("save sync failed", "game", f.Game, "folder", f.Template, "dir", dir, "error", err)
	}
}
