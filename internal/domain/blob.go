package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// SnapshotArchiver writes a full snapshot collection to cold storage and
// returns the object path.
type SnapshotArchiver interface {
	Archive(ctx context.Context, markets []Market, at time.Time) (string, error)
}
