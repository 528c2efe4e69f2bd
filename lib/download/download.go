// Package download watches a directory for a browser-initiated file
// download to finish. The browser exposes no completion event to the
// controlling process, so the only reliable signal is a file of the
// expected extension whose size has stopped changing.
package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/download")

var ErrTimeout = fmt.Errorf("timed out waiting for the export file to download")

type Options struct {
	// how often to rescan the directory. defaults to 1s
	PollInterval time.Duration
	// how long the file size must hold steady before the download
	// counts as complete. defaults to 2s
	StableInterval time.Duration
	// overall ceiling. defaults to 10 minutes
	Timeout time.Duration
	// files at or below this size are ignored; an export is never this
	// small but a just-created placeholder often is. defaults to 1KB
	MinSize int64
}

func (o Options) withDefaults() Options {
	if o.PollInterval == 0 {
		o.PollInterval = time.Second
	}
	if o.StableInterval == 0 {
		o.StableInterval = 2 * time.Second
	}
	if o.Timeout == 0 {
		o.Timeout = 10 * time.Minute
	}
	if o.MinSize == 0 {
		o.MinSize = 1024
	}
	return o
}

// Clear removes every file with the given extension from the directory
// so a stale export from a previous run can never be mistaken for the
// one about to be produced. Call it before triggering the export.
func Clear(dir, ext string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !matches(entry.Name(), ext) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// spreadsheet editors drop `~`-prefixed lock files next to the real one
func matches(name, ext string) bool {
	return strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) &&
		!strings.HasPrefix(name, "~")
}

// Await polls the directory until a file with the expected extension
// exists, is non-trivially sized and has a stable size across two
// samples. Returns the file's path, or ErrTimeout.
func Await(ctx context.Context, dir, ext string, opts Options) (string, error) {
	ctx, span := tracer.Start(ctx, "Await")
	defer span.End()
	span.SetAttributes(attribute.String("dir", dir), attribute.String("ext", ext))

	opts = opts.withDefaults()
	deadline := time.Now().Add(opts.Timeout)

	for {
		if time.Now().After(deadline) {
			span.SetStatus(codes.Error, ErrTimeout.Error())
			return "", ErrTimeout
		}

		path, size, err := candidate(dir, ext, opts.MinSize)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to scan download dir")
			return "", err
		}
		if path != "" {
			if err := sleep(ctx, opts.StableInterval); err != nil {
				return "", err
			}
			info, err := os.Stat(path)
			if err == nil && info.Size() == size {
				span.SetAttributes(
					attribute.String("file", path),
					attribute.Int64("size", size),
				)
				return path, nil
			}
			// still growing (or replaced), keep polling
			continue
		}

		if err := sleep(ctx, opts.PollInterval); err != nil {
			return "", err
		}
	}
}

func candidate(dir, ext string, minSize int64) (string, int64, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !matches(entry.Name(), ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() > minSize {
			return filepath.Join(dir, entry.Name()), info.Size(), nil
		}
	}
	return "", 0, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
