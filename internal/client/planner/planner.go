// Package planner diffs local state against a manifest or a remote save
// listing and produces the transfers needed to reconcile them.
package planner

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/gamebox/internal/client/transfer"
	"github.com/openmined/gamebox/internal/manifest"
	"github.com/openmined/gamebox/internal/utils"
)

// PlanBulk returns a job for every manifest entry whose destination under
// installRoot/<game> is missing or has a different size. Content hashes are
// not re-verified once the size matches.
func PlanBulk(m *manifest.Manifest, installRoot string) ([]transfer.Job, error) {
	gameRoot := filepath.Join(installRoot, m.Game)
	seen := mapset.NewThreadUnsafeSet[string]()

	var jobs []transfer.Job
	for _, rec := range m.Files {
		if !seen.Add(rec.Path) {
			continue
		}
		dest, err := utils.SafeJoin(gameRoot, rec.Path)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(dest)
		switch {
		case err == nil && !info.IsDir() && info.Size() == rec.Size:
			continue
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}

		jobs = append(jobs, transfer.Job{
			Kind:    transfer.KindBulk,
			Source:  BulkLocator(m.Game, rec.Path),
			Dest:    dest,
			Size:    rec.Size,
			Replace: err == nil,
			Game:    m.Game,
			RelPath: rec.Path,
		})
	}
	return jobs, nil
}

// SaveFolder identifies one resolved sync folder of a game.
type SaveFolder struct {
	Game     string
	Key      string // manifest.FolderKey of the template
	Template string
	Root     string // resolved local path
	Excludes []string
}

// PlanSaveDownload returns a job for each remote record that is absent
// locally or whose local mtime differs at whole-second precision.
func PlanSaveDownload(folder SaveFolder, remote []manifest.SaveFileRecord) ([]transfer.Job, error) {
	seen := mapset.NewThreadUnsafeSet[string]()

	var jobs []transfer.Job
	for _, rec := range remote {
		if !seen.Add(rec.Path) {
			continue
		}
		dest, err := utils.SafeJoin(folder.Root, rec.Path)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(dest)
		if err == nil && utils.SameSecond(info.ModTime(), rec.LastModified) {
			continue
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}

		jobs = append(jobs, transfer.Job{
			Kind:    transfer.KindSaveDownload,
			Source:  SaveLocator(folder.Game, folder.Key, rec.Path),
			Dest:    dest,
			Size:    rec.Size,
			ModTime: utils.TruncSecond(rec.LastModified),
			Game:    folder.Game,
			Folder:  folder.Key,
			RelPath: rec.Path,
		})
	}
	return jobs, nil
}

// PlanSaveUpload returns a job for each local record with no remote
// counterpart or a differing timestamp. Matching is exact on the relative
// path and the first remote record wins.
func PlanSaveUpload(folder SaveFolder, local, remote []manifest.SaveFileRecord) []transfer.Job {
	byPath := make(map[string]manifest.SaveFileRecord, len(remote))
	for _, rec := range remote {
		if _, dup := byPath[rec.Path]; !dup {
			byPath[rec.Path] = rec
		}
	}

	var jobs []transfer.Job
	for _, rec := range local {
		if r, ok := byPath[rec.Path]; ok && utils.SameSecond(r.LastModified, rec.LastModified) {
			continue
		}
		jobs = append(jobs, transfer.Job{
			Kind:    transfer.KindSaveUpload,
			Source:  filepath.Join(folder.Root, filepath.FromSlash(rec.Path)),
			Size:    rec.Size,
			Game:    folder.Game,
			Folder:  folder.Key,
			RelPath: rec.Path,
		})
	}
	return jobs
}

// ScanFolder lists regular files under root, skipping excluded paths. A
// missing root yields an empty listing.
func ScanFolder(root string, excludes []string) ([]manifest.SaveFileRecord, error) {
	var out []manifest.SaveFileRecord
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if path == root {
			return nil
		}

		rel, err := utils.RelSlash(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if Excluded(rel+"/", excludes) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || Excluded(rel, excludes) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, manifest.SaveFileRecord{
			Name:         d.Name(),
			Path:         rel,
			Size:         info.Size(),
			LastModified: utils.TruncSecond(info.ModTime()),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Excluded reports whether rel matches any pattern. Plain patterns match as
// substrings; patterns with glob syntax are matched with doublestar against
// the whole path, or the base name when the pattern has no slash.
func Excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if !strings.ContainsAny(p, "*?[{") {
			if strings.Contains(rel, p) {
				return true
			}
			continue
		}

		target := strings.TrimSuffix(rel, "/")
		if !strings.Contains(p, "/") {
			target = target[strings.LastIndex(target, "/")+1:]
		}
		if ok, _ := doublestar.Match(p, target); ok {
			return true
		}
	}
	return false
}
