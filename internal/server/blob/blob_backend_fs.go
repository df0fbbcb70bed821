package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/openmined/gamebox/internal/utils"
)

// stagingDir holds in-flight uploads under the root. Key segments never
// start with a dot, so it cannot collide with a stored object.
const stagingDir = ".staging"

// FSBackend keeps objects as plain files under a root directory. The file
// mtime carries the object's LastModified.
type FSBackend struct {
	root    string
	staging string
}

func NewFSBackend(root string) (*FSBackend, error) {
	root, err := utils.ResolvePath(root)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDir(root); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FSBackend{root: root, staging: filepath.Join(root, stagingDir)}, nil
}

func (b *FSBackend) path(key string) (string, error) {
	if !ValidateKey(key) {
		return "", ErrInvalidKey
	}
	return utils.SafeJoin(b.root, key)
}

func (b *FSBackend) GetObject(_ context.Context, key string) (*GetObjectResponse, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	} else if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrObjectNotFound
	}
	return &GetObjectResponse{
		Body:         f,
		Size:         info.Size(),
		LastModified: utils.TruncSecond(info.ModTime()),
	}, nil
}

func (b *FSBackend) PutObject(_ context.Context, params *PutObjectParams) (*ObjectInfo, error) {
	p, err := b.path(params.Key)
	if err != nil {
		return nil, err
	}

	var written int64
	err = utils.WriteFileAtomicVia(b.staging, p, utils.TruncSecond(params.LastModified), func(w io.Writer) error {
		n, err := io.Copy(w, params.Body)
		written = n
		if err != nil {
			return err
		}
		if params.Size >= 0 && n != params.Size {
			return fmt.Errorf("size mismatch: declared %d, got %d", params.Size, n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("put %s: %w", params.Key, err)
	}

	return &ObjectInfo{
		Key:          params.Key,
		Size:         written,
		LastModified: formatTime(params.LastModified),
	}, nil
}

func (b *FSBackend) DeleteObject(_ context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (b *FSBackend) ListObjects(ctx context.Context) ([]*ObjectInfo, error) {
	var objects []*ObjectInfo
	err := filepath.WalkDir(b.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if p == b.staging {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		key, err := utils.RelSlash(b.root, p)
		if err != nil {
			return err
		}
		objects = append(objects, &ObjectInfo{
			Key:          key,
			Size:         info.Size(),
			LastModified: formatTime(info.ModTime()),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", b.root, err)
	}
	return objects, nil
}

var _ Backend = (*FSBackend)(nil)
