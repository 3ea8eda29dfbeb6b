package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/winzzers/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"
	// multipartThreshold switches large snapshots to the upload manager.
	multipartThreshold = 8 << 20
)

// Archiver implements domain.SnapshotArchiver. Each call writes one JSONL
// object, one market per line, under
//
//	{prefix}/markets/YYYY/MM/DD/HHMMSS.jsonl
//
// Archives are append-only; nothing here deletes or rewrites old objects.
type Archiver struct {
	writer domain.BlobWriter
	prefix string
}

// NewArchiver creates an Archiver. An empty prefix defaults to "archive".
func NewArchiver(writer domain.BlobWriter, prefix string) *Archiver {
	if prefix == "" {
		prefix = "archive"
	}
	return &Archiver{writer: writer, prefix: prefix}
}

// Archive uploads markets and returns the object key.
func (a *Archiver) Archive(ctx context.Context, markets []domain.Market, at time.Time) (string, error) {
	buf, err := marshalJSONL(markets)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	path := a.path(at)
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %d markets: %w", len(markets), err)
	}
	return path, nil
}

func (a *Archiver) path(at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s/markets/%s/%s.jsonl", a.prefix, at.Format("2006/01/02"), at.Format("150405"))
}

func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.SnapshotArchiver = (*Archiver)(nil)
