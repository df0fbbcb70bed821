package transfer

import (
	"context"
	"io"
	"time"

	"github.com/openmined/gamebox/internal/manifest"
)

type Kind uint8

const (
	KindBulk Kind = iota
	KindSaveDownload
	KindSaveUpload
)

func (k Kind) String() string {
	switch k {
	case KindBulk:
		return "bulk"
	case KindSaveDownload:
		return "save-down"
	case KindSaveUpload:
		return "save-up"
	}
	return "unknown"
}

// Job is one planned transfer. For downloads Source is a remote locator and
// Dest a local path; for uploads Source is the local file and the remote
// namespace comes from Game, Folder and RelPath.
type Job struct {
	Kind    Kind
	Source  string
	Dest    string
	Size    int64
	ModTime time.Time // expected final timestamp, zero when the server decides
	Replace bool      // bulk only: destination exists but is stale

	Game    string
	Folder  string
	RelPath string
}

// Payload is an open download.
type Payload struct {
	Body         io.ReadCloser
	Size         int64
	LastModified time.Time
}

// Remote is the server side of the transfer engine.
type Remote interface {
	Fetch(ctx context.Context, locator string) (*Payload, error)
	UploadSave(ctx context.Context, game, folder string, rec manifest.SaveFileRecord, body io.Reader) error
}

// Event is emitted to the batch consumer.
type Event interface {
	event()
}

type BatchStarted struct {
	Count int
	Bytes int64
}

type ItemStarted struct {
	Job Job
}

type ItemFinished struct {
	Job     Job
	Bytes   int64
	Skipped bool
	Err     error
}

// BatchFinished closes a batch. The counts are informational only.
type BatchFinished struct {
	Done    int
	Skipped int
	Failed  int
	NotRun  int
	Bytes   int64
	Elapsed time.Duration
}

func (BatchStarted) event()  {}
func (ItemStarted) event()   {}
func (ItemFinished) event()  {}
func (BatchFinished) event() {}
