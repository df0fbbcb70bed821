package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrInvalidKey     = errors.New("invalid key")
	ErrObjectNotFound = errors.New("object not found")
)

// Backend stores save objects. LastModified is the client-reported file
// time, not the upload time, so a backend must persist it alongside the body.
type Backend interface {
	// GetObject opens an object for reading. Missing keys return ErrObjectNotFound.
	GetObject(ctx context.Context, key string) (*GetObjectResponse, error)

	// PutObject stores an object, replacing any previous one under the key.
	PutObject(ctx context.Context, params *PutObjectParams) (*ObjectInfo, error)

	DeleteObject(ctx context.Context, key string) error

	// ListObjects returns every object in the store.
	ListObjects(ctx context.Context) ([]*ObjectInfo, error)
}

type GetObjectResponse struct {
	Body         io.ReadCloser
	Size         int64
	LastModified time.Time
}

type PutObjectParams struct {
	Key          string
	Size         int64
	LastModified time.Time
	Body         io.Reader
}

// ObjectInfo is a row of the save index.
type ObjectInfo struct {
	Key          string `db:"key"`
	Size         int64  `db:"size"`
	LastModified string `db:"last_modified"`
}

func (o *ObjectInfo) ModTime() time.Time {
	t, err := time.Parse(time.RFC3339, o.LastModified)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
