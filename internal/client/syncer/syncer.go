// Package syncer drives a full library sync: manifests, bulk files and save
// folders, one game at a time.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/openmined/gamebox/internal/client/cache"
	"github.com/openmined/gamebox/internal/client/config"
	"github.com/openmined/gamebox/internal/client/pathres"
	"github.com/openmined/gamebox/internal/client/planner"
	"github.com/openmined/gamebox/internal/client/transfer"
	"github.com/openmined/gamebox/internal/manifest"
	"github.com/openmined/gamebox/internal/utils"
)

const lockFile = ".gamebox.lock"

var ErrLibraryBusy = errors.New("library is being synced by another process")

// Remote is everything the syncer needs from the server.
type Remote interface {
	transfer.Remote
	cache.Fetcher
	ListGames(ctx context.Context) ([]manifest.GameInfo, error)
	ListSaves(ctx context.Context, game, folder string) ([]manifest.SaveFileRecord, error)
}

type Syncer struct {
	libraryDir string
	remote     Remote
	store      *cache.Store
	resolver   *pathres.Resolver
	engine     *transfer.Engine
	lock       *flock.Flock
}

type Option func(*options)

type options struct {
	events   chan<- transfer.Event
	resolver *pathres.Resolver
}

// WithEvents forwards transfer lifecycle events to ch.
func WithEvents(ch chan<- transfer.Event) Option {
	return func(o *options) { o.events = ch }
}

// WithResolver replaces the resolver built from the config.
func WithResolver(r *pathres.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

func New(cfg *config.Config, remote Remote, opts ...Option) (*Syncer, error) {
	if cfg.LibraryDir == "" {
		return nil, config.ErrNoLibraryDir
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.resolver == nil {
		var ropts []pathres.Option
		if cfg.CompatPrefix != "" {
			ropts = append(ropts, pathres.WithCompat(cfg.CompatPrefix, cfg.CompatUser))
		}
		if cfg.LenientPaths {
			ropts = append(ropts, pathres.Lenient())
		}
		o.resolver = pathres.New(ropts...)
	}

	engineOpts := []transfer.Option{transfer.WithWorkers(cfg.Workers)}
	if o.events != nil {
		engineOpts = append(engineOpts, transfer.WithEvents(o.events))
	}

	return &Syncer{
		libraryDir: cfg.LibraryDir,
		remote:     remote,
		store:      cache.New(cfg.CacheDir, remote),
		resolver:   o.resolver,
		engine:     transfer.NewEngine(remote, engineOpts...),
		lock:       flock.New(filepath.Join(cfg.LibraryDir, lockFile)),
	}, nil
}

func (s *Syncer) Store() *cache.Store {
	return s.store
}

// Lock takes the library-wide process lock. It fails fast with
// ErrLibraryBusy when another process holds it.
func (s *Syncer) Lock() (func(), error) {
	if err := utils.EnsureDir(s.libraryDir); err != nil {
		return nil, err
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock library: %w", err)
	}
	if !ok {
		return nil, ErrLibraryBusy
	}
	return func() { _ = s.lock.Unlock() }, nil
}

// SyncLibrary syncs the named games, or every game the server lists when
// none are given. A failing game is logged and skipped; the combined
// failures are returned at the end. Cancellation is checked between games.
func (s *Syncer) SyncLibrary(ctx context.Context, games []string) error {
	if len(games) == 0 {
		list, err := s.remote.ListGames(ctx)
		if err != nil {
			return fmt.Errorf("list games: %w", err)
		}
		for _, g := range list {
			games = append(games, g.Name)
		}
	}

	var errs []error
	for _, game := range games {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := s.SyncGame(ctx, game); err != nil {
			slog.Warn("sync game failed", "game", game, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", game, err))
		}
	}
	return errors.Join(errs...)
}

// SyncGame brings one game's install files and saves up to date.
func (s *Syncer) SyncGame(ctx context.Context, game string) error {
	if err := s.SyncBulk(ctx, game); err != nil {
		return err
	}
	return s.SyncSaves(ctx, game, Both)
}

// SyncBulk fetches install files that are missing or have the wrong size.
func (s *Syncer) SyncBulk(ctx context.Context, game string) error {
	m, err := s.store.GetOrFetch(ctx, game)
	if err != nil {
		return err
	}

	jobs, err := planner.PlanBulk(m, s.libraryDir)
	if err != nil {
		return fmt.Errorf("plan bulk: %w", err)
	}
	slog.Info("sync", "game", game, "op", "bulk", "files", len(m.Files), "transfers", len(jobs))
	if len(jobs) > 0 {
		s.engine.RunBatch(ctx, jobs)
	}
	return nil
}

// Folders resolves the game's sync folders for this host.
func (s *Syncer) Folders(ctx context.Context, game string) ([]planner.SaveFolder, error) {
	meta, err := s.store.GetMetadata(ctx, game)
	if err != nil {
		return nil, err
	}

	gc := &pathres.GameContext{
		InstallRoot: s.libraryDir,
		GameFolder:  game,
		Compat:      s.resolver.UsesCompat(meta),
	}

	var (
		folders    []planner.SaveFolder
		unresolved []error
	)
	for _, tmpl := range meta.Folders() {
		root, err := s.resolver.Resolve(tmpl, gc)
		if err != nil {
			// one bad template must not hide the folders that do resolve
			slog.Warn("skipping sync folder", "game", game, "folder", tmpl, "error", err)
			unresolved = append(unresolved, fmt.Errorf("sync folder %q: %w", tmpl, err))
			continue
		}
		folders = append(folders, planner.SaveFolder{
			Game:     game,
			Key:      manifest.FolderKey(tmpl),
			Template: tmpl,
			Root:     root,
			Excludes: meta.ExcludePatterns(),
		})
	}
	if len(folders) == 0 && len(unresolved) > 0 {
		return nil, errors.Join(unresolved...)
	}
	return folders, nil
}

// SyncSaves reconciles every sync folder of a game in the given direction.
func (s *Syncer) SyncSaves(ctx context.Context, game string, dir Direction) error {
	folders, err := s.Folders(ctx, game)
	if err != nil {
		return err
	}
	for _, f := range folders {
		if err := s.SyncFolder(ctx, f, dir); err != nil {
			return err
		}
	}
	return nil
}

// SyncFolder reconciles one sync folder.
func (s *Syncer) SyncFolder(ctx context.Context, f planner.SaveFolder, dir Direction) error {
	remote, err := s.remote.ListSaves(ctx, f.Game, f.Key)
	if err != nil {
		return fmt.Errorf("list saves: %w", err)
	}

	var down, up []transfer.Job
	if dir != Push {
		if down, err = planner.PlanSaveDownload(f, remote); err != nil {
			return fmt.Errorf("plan save download: %w", err)
		}
	}
	if dir != Pull {
		local, err := planner.ScanFolder(f.Root, f.Excludes)
		if err != nil {
			return fmt.Errorf("scan %s: %w", f.Root, err)
		}
		up = planner.PlanSaveUpload(f, local, remote)
	}
	if dir == Both {
		down, up = resolveConflicts(down, up, remote)
	}

	jobs := append(down, up...)
	slog.Info("sync", "game", f.Game, "op", "saves", "folder", f.Template, "down", len(down), "up", len(up))
	if len(jobs) > 0 {
		s.engine.RunBatch(ctx, jobs)
	}
	return nil
}
