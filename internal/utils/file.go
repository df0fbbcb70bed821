package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"
)

// WriteFileAtomic writes to a temp file next to dst and renames it into
// place once fill returns without error. A non-zero mtime is applied before
// the rename.
func WriteFileAtomic(dst string, mtime time.Time, fill func(w io.Writer) error) error {
	return WriteFileAtomicVia(filepath.Dir(dst), dst, mtime, fill)
}

// WriteFileAtomicVia is WriteFileAtomic with the temp file created in
// tmpDir, which must be on the same filesystem as dst.
func WriteFileAtomicVia(tmpDir, dst string, mtime time.Time, fill func(w io.Writer) error) error {
	if err := EnsureParent(dst); err != nil {
		return fmt.Errorf("create parent: %w", err)
	}
	if err := EnsureDir(tmpDir); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}

	tmp, err := os.CreateTemp(tmpDir, "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	// CreateTemp uses 0600
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}

	if !mtime.IsZero() {
		if err := os.Chtimes(tmpPath, mtime, mtime); err != nil {
			return fmt.Errorf("set mtime: %w", err)
		}
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// FileDigest returns the sha256 digest of a file in `sha256:<hex>` form.
func FileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return digest.SHA256.FromReader(f)
}

// TruncSecond drops sub-second precision and normalizes to UTC. Timestamps
// are compared at whole-second precision across the wire.
func TruncSecond(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func SameSecond(a, b time.Time) bool {
	return TruncSecond(a).Equal(TruncSecond(b))
}
