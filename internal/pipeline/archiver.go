// Package pipeline holds the background jobs that run beside the engine.
// The only job today is the execution report archiver.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/arbeng/triarb/internal/domain"
)

// multipartThreshold is the report size above which the archiver switches to
// a multipart upload.
const multipartThreshold = 8 * 1024 * 1024

// MultipartWriter is an optional extension of domain.BlobWriter for blob
// backends that support multipart uploads of large objects.
type MultipartWriter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver periodically exports execution records to cold storage as JSON
// lines, one object per run. Each run covers the window since the previous
// successful run; a failed run leaves the window open so nothing is lost.
type Archiver struct {
	store    domain.ExecutionStore
	blob     domain.BlobWriter
	interval time.Duration
	prefix   string
	logger   *slog.Logger

	since time.Time
}

// NewArchiver creates an Archiver exporting every interval under the given
// object key prefix.
func NewArchiver(store domain.ExecutionStore, blob domain.BlobWriter, interval time.Duration, prefix string, logger *slog.Logger) *Archiver {
	return &Archiver{
		store:    store,
		blob:     blob,
		interval: interval,
		prefix:   prefix,
		logger:   logger.With(slog.String("component", "archiver")),
		since:    time.Now().UTC(),
	}
}

// Run drives the archive loop until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "archiver starting",
		slog.Duration("interval", a.interval),
		slog.String("prefix", a.prefix),
	)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.ArchiveOnce(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive run failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// ArchiveOnce exports all executions recorded since the last successful run.
// A run with no records uploads nothing and still advances the window.
func (a *Archiver) ArchiveOnce(ctx context.Context) error {
	now := time.Now().UTC()

	execs, err := a.store.ListSince(ctx, a.since)
	if err != nil {
		return fmt.Errorf("pipeline: list executions: %w", err)
	}
	if len(execs) == 0 {
		a.since = now
		return nil
	}

	body, err := marshalJSONL(execs)
	if err != nil {
		return fmt.Errorf("pipeline: marshal executions: %w", err)
	}

	path := a.objectPath(now)
	if err := a.upload(ctx, path, body); err != nil {
		return fmt.Errorf("pipeline: upload %s: %w", path, err)
	}

	a.logger.InfoContext(ctx, "executions archived",
		slog.Int("count", len(execs)),
		slog.String("path", path),
	)
	a.since = now
	return nil
}

// upload picks single-shot or multipart depending on the report size.
func (a *Archiver) upload(ctx context.Context, path string, body []byte) error {
	if len(body) >= multipartThreshold {
		if mw, ok := a.blob.(MultipartWriter); ok {
			return mw.PutMultipart(ctx, path, bytes.NewReader(body), 0)
		}
	}
	return a.blob.Put(ctx, path, bytes.NewReader(body), "application/x-ndjson")
}

// objectPath lays reports out by date so a bucket listing reads like a
// calendar: <prefix>/2026/08/30/executions-154500.jsonl
func (a *Archiver) objectPath(now time.Time) string {
	return fmt.Sprintf("%s/%s/executions-%s.jsonl",
		a.prefix, now.Format("2006/01/02"), now.Format("150405"))
}

// marshalJSONL renders records as newline-delimited JSON.
func marshalJSONL(execs []domain.Execution) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, exec := range execs {
		if err := enc.Encode(exec); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
