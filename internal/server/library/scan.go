package library

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/gamebox/internal/manifest"
	"github.com/openmined/gamebox/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

var defaultIgnoreLines = []string{
	manifest.IgnoreFile,
	"*.part",
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
}

// loadIgnore compiles the default rules plus the game's .gameboxignore.
func loadIgnore(root string) (*gitignore.GitIgnore, error) {
	lines := append([]string(nil), defaultIgnoreLines...)

	f, err := os.Open(filepath.Join(root, manifest.IgnoreFile))
	if errors.Is(err, fs.ErrNotExist) {
		return gitignore.CompileIgnoreLines(lines...), nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", manifest.IgnoreFile, err)
	}
	return gitignore.CompileIgnoreLines(lines...), nil
}

// Scan walks a game's install tree and rewrites its manifest. An existing
// metadata file is kept as is; otherwise a minimal one is written. Engine
// detection is not attempted.
func (l *Library) Scan(ctx context.Context, game string) (*manifest.Manifest, error) {
	root, err := l.InstallRoot(game)
	if err != nil {
		return nil, err
	}
	if !utils.DirExists(root) {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, game)
	}

	ignore, err := loadIgnore(root)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var records []manifest.BulkFileRecord
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := utils.RelSlash(root, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if ignore.MatchesPath(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || ignore.MatchesPath(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		records = append(records, manifest.BulkFileRecord{
			Name:         path.Base(rel),
			Path:         rel,
			Size:         info.Size(),
			LastModified: utils.TruncSecond(info.ModTime()),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", game, err)
	}

	if err := hashRecords(ctx, root, records); err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })

	m := &manifest.Manifest{Game: game, Files: records}
	if err := l.writeManifest(m); err != nil {
		return nil, err
	}
	if err := l.ensureMetadata(game); err != nil {
		return nil, err
	}

	slog.Info("library scan", "game", game, "files", len(records),
		"size", humanize.Bytes(uint64(m.TotalSize())), "took", time.Since(start))
	return m, nil
}

func hashRecords(ctx context.Context, root string, records []manifest.BulkFileRecord) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := utils.FileDigest(filepath.Join(root, filepath.FromSlash(records[i].Path)))
			if err != nil {
				return fmt.Errorf("hash %s: %w", records[i].Path, err)
			}
			records[i].Hash = d
			return nil
		})
	}
	return g.Wait()
}

func (l *Library) writeManifest(m *manifest.Manifest) error {
	p := filepath.Join(l.manifestDir, m.Game, manifest.ManifestFile)
	return utils.WriteFileAtomic(p, time.Time{}, func(w io.Writer) error {
		return manifest.WriteCSV(w, m.Files)
	})
}

func (l *Library) ensureMetadata(game string) error {
	p := l.metadataPath(game)
	if utils.FileExists(p) {
		return nil
	}
	meta := &manifest.Metadata{Name: game}
	return meta.Save(p)
}

// ScanAll rescans every game directory under Dir. Failures are logged and
// joined; the remaining games are still scanned.
func (l *Library) ScanAll(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}

	var scanned []string
	var errs []error
	for _, e := range entries {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if !e.IsDir() || !ValidGameName(e.Name()) {
			continue
		}
		if _, err := l.Scan(ctx, e.Name()); err != nil {
			slog.Error("library scan", "game", e.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		scanned = append(scanned, e.Name())
	}
	return scanned, errors.Join(errs...)
}
