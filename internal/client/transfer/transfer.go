// Package transfer runs planned transfers with bounded parallelism.
package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/gamebox/internal/manifest"
	"github.com/openmined/gamebox/internal/queue"
	"github.com/openmined/gamebox/internal/utils"
	"github.com/shirou/gopsutil/v4/cpu"
	"golang.org/x/sync/semaphore"
)

const copyBufferSize = 256 << 10

type Engine struct {
	remote  Remote
	workers int64
	events  chan<- Event
	bufs    sync.Pool
}

type Option func(*Engine)

// WithWorkers caps the number of concurrent transfers. Zero or less means
// one per logical processor.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = int64(n)
		}
	}
}

// WithEvents delivers lifecycle events to ch. Sends block once ch is full,
// so the consumer must keep draining it until BatchFinished.
func WithEvents(ch chan<- Event) Option {
	return func(e *Engine) { e.events = ch }
}

func NewEngine(remote Remote, opts ...Option) *Engine {
	e := &Engine{
		remote:  remote,
		workers: int64(logicalCPUs()),
		bufs: sync.Pool{New: func() any {
			b := make([]byte, copyBufferSize)
			return &b
		}},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func logicalCPUs() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func (e *Engine) Workers() int {
	return int(e.workers)
}

// RunBatch executes jobs, smallest first. ctx is checked before each job
// takes a slot; jobs already running are not interrupted. A failed job is
// logged and reported through ItemFinished, siblings keep going, and no
// aggregate error is returned.
func (e *Engine) RunBatch(ctx context.Context, jobs []Job) {
	start := time.Now()

	pending := queue.NewPriorityQueue[Job]()
	var total int64
	for _, job := range jobs {
		pending.Enqueue(job, job.Size)
		total += job.Size
	}
	e.emit(BatchStarted{Count: len(jobs), Bytes: total})

	var (
		wg                    sync.WaitGroup
		done, skipped, failed atomic.Int64
		moved                 atomic.Int64
		started               int
	)
	sem := semaphore.NewWeighted(e.workers)
	work := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			break
		}
		job, ok := pending.Dequeue()
		if !ok {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		started++

		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			defer sem.Release(1)

			e.emit(ItemStarted{Job: job})
			n, skip, err := e.run(work, job)
			switch {
			case err != nil:
				failed.Add(1)
				slog.Warn("transfer failed", "kind", job.Kind, "src", job.Source, "dst", job.Dest, "error", err)
			case skip:
				skipped.Add(1)
			default:
				done.Add(1)
				moved.Add(n)
				slog.Debug("transfer", "kind", job.Kind, "dst", job.Dest, "size", humanize.Bytes(uint64(n)))
			}
			e.emit(ItemFinished{Job: job, Bytes: n, Skipped: skip, Err: err})
		}(job)
	}

	wg.Wait()

	e.emit(BatchFinished{
		Done:    int(done.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
		NotRun:  len(jobs) - started,
		Bytes:   moved.Load(),
		Elapsed: time.Since(start),
	})
}

func (e *Engine) emit(ev Event) {
	if e.events != nil {
		e.events <- ev
	}
}

func (e *Engine) run(ctx context.Context, job Job) (int64, bool, error) {
	switch job.Kind {
	case KindBulk:
		if !job.Replace && utils.FileExists(job.Dest) {
			return 0, true, nil
		}
		return e.download(ctx, job)
	case KindSaveDownload:
		return e.download(ctx, job)
	case KindSaveUpload:
		n, err := e.upload(ctx, job)
		return n, false, err
	}
	return 0, false, fmt.Errorf("unknown job kind %d", job.Kind)
}

func (e *Engine) download(ctx context.Context, job Job) (int64, bool, error) {
	payload, err := e.remote.Fetch(ctx, job.Source)
	if err != nil {
		return 0, false, err
	}
	defer payload.Body.Close()

	mtime := job.ModTime
	if job.Kind == KindBulk || mtime.IsZero() {
		mtime = payload.LastModified
	}

	bufp := e.bufs.Get().(*[]byte)
	defer e.bufs.Put(bufp)

	var n int64
	err = utils.WriteFileAtomic(job.Dest, mtime, func(w io.Writer) error {
		var cerr error
		n, cerr = io.CopyBuffer(w, payload.Body, *bufp)
		if cerr != nil {
			return fmt.Errorf("stream body: %w", cerr)
		}
		if payload.Size >= 0 && n != payload.Size {
			return fmt.Errorf("short body: got %d of %d bytes", n, payload.Size)
		}
		return nil
	})
	return n, false, err
}

func (e *Engine) upload(ctx context.Context, job Job) (int64, error) {
	f, err := os.Open(job.Source)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	rec := manifest.SaveFileRecord{
		Name:         path.Base(job.RelPath),
		Path:         job.RelPath,
		Size:         info.Size(),
		LastModified: utils.TruncSecond(info.ModTime()),
	}
	if err := e.remote.UploadSave(ctx, job.Game, job.Folder, rec, f); err != nil {
		return 0, err
	}
	return rec.Size, nil
}
