package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// MultiLogHandler fans a record out to every handler that accepts its level.
type MultiLogHandler struct {
	handlers []slog.Handler
}

func NewMultiLogHandler(handlers ...slog.Handler) *MultiLogHandler {
	return &MultiLogHandler{handlers: handlers}
}

func (h *MultiLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *MultiLogHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *MultiLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (h *MultiLogHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (h *MultiLogHandler) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = fn(handler)
	}
	return &MultiLogHandler{handlers: next}
}

// LogInterceptor prefixes every complete line written through it with a
// running line number and a timestamp. Partial lines are held until the
// newline arrives or Close is called.
type LogInterceptor struct {
	mu     sync.Mutex
	target io.Writer
	line   uint64
	buf    bytes.Buffer
	now    func() time.Time
}

func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{target: target, now: time.Now}
}

func (i *LogInterceptor) Write(p []byte) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.buf.Write(p)
	for {
		idx := bytes.IndexByte(i.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSuffix(i.buf.Next(idx+1), []byte("\n"))
		if err := i.emit(bytes.TrimSuffix(line, []byte("\r"))); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (i *LogInterceptor) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.buf.Len() == 0 {
		return nil
	}
	rest := append([]byte(nil), i.buf.Bytes()...)
	i.buf.Reset()
	return i.emit(rest)
}

func (i *LogInterceptor) emit(line []byte) error {
	i.line++
	_, err := fmt.Fprintf(i.target, "line=%d ts=%s %s\n", i.line, i.now().Format(time.RFC3339), line)
	return err
}
