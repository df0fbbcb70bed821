// Package library exposes the server's game catalog: installation trees under
// Dir and a manifest.csv/metadata.yaml pair per game under ManifestDir.
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openmined/gamebox/internal/manifest"
	"github.com/openmined/gamebox/internal/utils"
)

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidGameName = errors.New("invalid game name")
)

// manifestDirName is the default ManifestDir under Dir.
const manifestDirName = ".gamebox"

type Config struct {
	Dir         string `mapstructure:"dir"`
	ManifestDir string `mapstructure:"manifest_dir"`
}

func (c *Config) Validate() error {
	if c.Dir == "" {
		return errors.New("library `dir` is required")
	}
	dir, err := utils.ResolvePath(c.Dir)
	if err != nil {
		return fmt.Errorf("library dir: %w", err)
	}
	c.Dir = dir
	if c.ManifestDir == "" {
		c.ManifestDir = filepath.Join(c.Dir, manifestDirName)
	}
	if c.ManifestDir, err = utils.ResolvePath(c.ManifestDir); err != nil {
		return fmt.Errorf("library manifest_dir: %w", err)
	}
	return nil
}

type Library struct {
	dir         string
	manifestDir string
}

func New(cfg *Config) *Library {
	return &Library{dir: cfg.Dir, manifestDir: cfg.ManifestDir}
}

// ValidGameName rejects names that cannot be a single directory entry.
func ValidGameName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}

func (l *Library) Dir() string { return l.dir }

func (l *Library) InstallRoot(game string) (string, error) {
	if !ValidGameName(game) {
		return "", fmt.Errorf("%w: %q", ErrInvalidGameName, game)
	}
	return filepath.Join(l.dir, game), nil
}

func (l *Library) ManifestPath(game string) (string, error) {
	if !ValidGameName(game) {
		return "", fmt.Errorf("%w: %q", ErrInvalidGameName, game)
	}
	p := filepath.Join(l.manifestDir, game, manifest.ManifestFile)
	if !utils.FileExists(p) {
		return "", fmt.Errorf("%w: %s", ErrGameNotFound, game)
	}
	return p, nil
}

func (l *Library) metadataPath(game string) string {
	return filepath.Join(l.manifestDir, game, manifest.MetadataFile)
}

// Metadata loads a game's metadata record. A game with a manifest but no
// metadata file gets a record carrying only its name.
func (l *Library) Metadata(game string) (*manifest.Metadata, error) {
	if _, err := l.ManifestPath(game); err != nil {
		return nil, err
	}
	meta, err := manifest.LoadMetadata(l.metadataPath(game))
	if errors.Is(err, fs.ErrNotExist) {
		return &manifest.Metadata{Name: game}, nil
	} else if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", game, err)
	}
	if meta.Name == "" {
		meta.Name = game
	}
	return meta, nil
}

// FilePath maps a manifest-relative path to the file on disk.
func (l *Library) FilePath(game, rel string) (string, error) {
	root, err := l.InstallRoot(game)
	if err != nil {
		return "", err
	}
	p, err := utils.SafeJoin(root, strings.TrimPrefix(rel, "/"))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, rel)
	}
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, rel)
	}
	return p, nil
}

// Games lists every game that has a manifest, sorted by name.
func (l *Library) Games() ([]manifest.GameInfo, error) {
	entries, err := os.ReadDir(l.manifestDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []manifest.GameInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}

	games := make([]manifest.GameInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !ValidGameName(e.Name()) {
			continue
		}
		meta, err := l.Metadata(e.Name())
		if errors.Is(err, ErrGameNotFound) {
			continue
		} else if err != nil {
			slog.Warn("library skipping game", "game", e.Name(), "error", err)
			continue
		}
		games = append(games, manifest.GameInfo{Name: e.Name(), Engine: meta.Engine})
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Name < games[j].Name })
	return games, nil
}
