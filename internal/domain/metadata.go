package domain

import "context"

// MetadataSink accepts off-chain market metadata.
type MetadataSink interface {
	SaveMetadata(ctx context.Context, meta MarketMetadata) error
}

// MetadataStore persists and reads back market metadata.
type MetadataStore interface {
	MetadataSink
	GetMetadata(ctx context.Context, marketID uint64) (MarketMetadata, error)
}
