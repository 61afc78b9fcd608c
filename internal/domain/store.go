package domain

import (
	"context"
	"io"
	"time"
)

// ExecutionStore persists cycle executions for after-the-fact audit.
// GetByID returns ErrNotFound when no execution has the given ID.
type ExecutionStore interface {
	Create(ctx context.Context, exec Execution) error
	GetByID(ctx context.Context, id string) (Execution, error)
	ListSince(ctx context.Context, since time.Time) ([]Execution, error)
}

// BlobWriter uploads an object to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
