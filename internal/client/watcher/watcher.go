// Package watcher keeps save folders in sync while games run: local writes
// are pushed and server notifications are pulled.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/openmined/gamebox/internal/client/planner"
	"github.com/openmined/gamebox/internal/utils"
	"github.com/rjeczalik/notify"
)

const (
	DefaultDebounce = 2 * time.Second
	rawBufferSize   = 256
)

// FolderWatcher reports which sync folders changed on disk. Bursts of
// events for one folder collapse into a single report after the debounce
// window, since games tend to write a save as many small writes.
type FolderWatcher struct {
	folders  []planner.SaveFolder
	debounce time.Duration

	raw  chan notify.EventInfo
	out  chan planner.SaveFolder
	done chan struct{}
	wg   sync.WaitGroup

	mu     sync.Mutex
	timers map[int]*time.Timer
}

func NewFolderWatcher(folders []planner.SaveFolder, debounce time.Duration) *FolderWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &FolderWatcher{
		folders:  folders,
		debounce: debounce,
		raw:      make(chan notify.EventInfo, rawBufferSize),
		out:      make(chan planner.SaveFolder, len(folders)+1),
		done:     make(chan struct{}),
		timers:   make(map[int]*time.Timer),
	}
}

// Start creates missing folders and begins watching them recursively.
func (w *FolderWatcher) Start(ctx context.Context) error {
	for _, f := range w.folders {
		if err := utils.EnsureDir(f.Root); err != nil {
			return err
		}
		if err := notify.Watch(filepath.Join(f.Root, "..."), w.raw, notify.Write, notify.Create, notify.Rename, notify.Remove); err != nil {
			notify.Stop(w.raw)
			return err
		}
		slog.Debug("watching", "game", f.Game, "dir", f.Root)
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *FolderWatcher) Changes() <-chan planner.SaveFolder {
	return w.out
}

func (w *FolderWatcher) Stop() {
	notify.Stop(w.raw)
	close(w.done)
	w.wg.Wait()
}

func (w *FolderWatcher) loop(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		for _, t := range w.timers {
			t.Stop()
		}
		w.mu.Unlock()
		w.wg.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev := <-w.raw:
			idx, rel := w.match(ev.Path())
			if idx < 0 || w.ignored(rel, w.folders[idx].Excludes) {
				continue
			}
			w.schedule(idx)
		}
	}
}

// match returns the folder with the longest root containing path.
func (w *FolderWatcher) match(path string) (int, string) {
	best, bestLen, bestRel := -1, -1, ""
	for i, f := range w.folders {
		rel, err := utils.RelSlash(f.Root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
			continue
		}
		if len(f.Root) > bestLen {
			best, bestLen, bestRel = i, len(f.Root), rel
		}
	}
	return best, bestRel
}

func (w *FolderWatcher) ignored(rel string, excludes []string) bool {
	base := rel[strings.LastIndex(rel, "/")+1:]
	// in-flight downloads
	if strings.HasPrefix(base, ".") && strings.HasSuffix(base, ".part") {
		return true
	}
	return planner.Excluded(rel, excludes)
}

func (w *FolderWatcher) schedule(idx int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[idx]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[idx] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, idx)
		w.mu.Unlock()

		select {
		case w.out <- w.folders[idx]:
		case <-w.done:
		}
	})
}
