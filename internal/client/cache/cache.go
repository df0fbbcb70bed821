// Package cache is the client's on-disk manifest store. Manifests are
// replaced wholesale; nothing is merged or versioned.
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/openmined/gamebox/internal/manifest"
	"github.com/openmined/gamebox/internal/utils"
)

const metadataCacheFile = "metadata.json"

var ErrNoManifest = errors.New("no manifest")

// Fetcher is the subset of the server API the store needs.
type Fetcher interface {
	FetchManifest(ctx context.Context, game string) ([]byte, error)
	FetchMetadata(ctx context.Context, game string) (*manifest.Metadata, error)
}

type Store struct {
	dir    string
	remote Fetcher
}

// New returns a store rooted at <cacheDir>/manifests.
func New(cacheDir string, remote Fetcher) *Store {
	return &Store{dir: filepath.Join(cacheDir, "manifests"), remote: remote}
}

func (s *Store) gameDir(game string) string {
	return filepath.Join(s.dir, url.PathEscape(game))
}

func (s *Store) manifestPath(game string) string {
	return filepath.Join(s.gameDir(game), manifest.ManifestFile)
}

func (s *Store) metadataPath(game string) string {
	return filepath.Join(s.gameDir(game), metadataCacheFile)
}

// Cached reports whether a manifest for game is on disk.
func (s *Store) Cached(game string) bool {
	return utils.FileExists(s.manifestPath(game))
}

// GetOrFetch returns the cached manifest, fetching and persisting it first
// when absent. A failed fetch leaves nothing cached and returns an error
// wrapping ErrNoManifest.
func (s *Store) GetOrFetch(ctx context.Context, game string) (*manifest.Manifest, error) {
	path := s.manifestPath(game)

	if f, err := os.Open(path); err == nil {
		defer f.Close()
		files, err := manifest.ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("cached manifest %s: %w", game, err)
		}
		return &manifest.Manifest{Game: game, Files: files}, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	raw, err := s.remote.FetchManifest(ctx, game)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrNoManifest, game, err)
	}
	files, err := manifest.ReadCSV(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrNoManifest, game, err)
	}

	if err := writeBytes(path, raw); err != nil {
		return nil, fmt.Errorf("persist manifest %s: %w", game, err)
	}
	return &manifest.Manifest{Game: game, Files: files}, nil
}

// GetMetadata follows the same cache policy as GetOrFetch for the game's
// metadata record.
func (s *Store) GetMetadata(ctx context.Context, game string) (*manifest.Metadata, error) {
	path := s.metadataPath(game)

	if data, err := os.ReadFile(path); err == nil {
		var meta manifest.Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("cached metadata %s: %w", game, err)
		}
		return &meta, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	meta, err := s.remote.FetchMetadata(ctx, game)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata %s: %w", game, err)
	}
	if meta.Name == "" {
		meta.Name = game
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeBytes(path, data); err != nil {
		return nil, fmt.Errorf("persist metadata %s: %w", game, err)
	}
	return meta, nil
}

// Invalidate drops the cached manifest and metadata of game.
func (s *Store) Invalidate(game string) error {
	err := os.RemoveAll(s.gameDir(game))
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", game, err)
	}
	return nil
}

func writeBytes(path string, data []byte) error {
	return utils.WriteFileAtomic(path, time.Time{}, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
