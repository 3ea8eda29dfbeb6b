package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/winzzers/internal/domain"
)

// MetadataStore implements domain.MetadataStore with one hash per market:
//
//	market:meta:{id}  marketId, title, description, tags (JSON array), createdAt (unix ms)
//
// Every field is stored as a string.
type MetadataStore struct {
	rdb *redis.Client
	now func() time.Time
}

// NewMetadataStore creates a MetadataStore backed by c.
func NewMetadataStore(c *Client) *MetadataStore {
	return &MetadataStore{rdb: c.Underlying(), now: time.Now}
}

func metadataKey(id uint64) string { return "market:meta:" + strconv.FormatUint(id, 10) }

// SaveMetadata writes every field of meta. A zero CreatedAt is replaced by
// the current time.
func (ms *MetadataStore) SaveMetadata(ctx context.Context, meta domain.MarketMetadata) error {
	fields, err := metadataFields(meta, ms.now())
	if err != nil {
		return err
	}
	if err := ms.rdb.HSet(ctx, metadataKey(meta.MarketID), fields).Err(); err != nil {
		return fmt.Errorf("redis: save metadata %d: %w", meta.MarketID, err)
	}
	return nil
}

// GetMetadata reads back a metadata hash or returns domain.ErrNotFound.
func (ms *MetadataStore) GetMetadata(ctx context.Context, marketID uint64) (domain.MarketMetadata, error) {
	fields, err := ms.rdb.HGetAll(ctx, metadataKey(marketID)).Result()
	if err != nil {
		return domain.MarketMetadata{}, fmt.Errorf("redis: get metadata %d: %w", marketID, err)
	}
	if len(fields) == 0 {
		return domain.MarketMetadata{}, domain.ErrNotFound
	}
	meta, err := metadataFromFields(marketID, fields)
	if err != nil {
		return domain.MarketMetadata{}, fmt.Errorf("redis: decode metadata %d: %w", marketID, err)
	}
	return meta, nil
}

func metadataFields(meta domain.MarketMetadata, now time.Time) (map[string]any, error) {
	tags := meta.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("redis: marshal tags: %w", err)
	}
	createdAt := meta.CreatedAt
	if createdAt == 0 {
		createdAt = now.UnixMilli()
	}
	return map[string]any{
		"marketId":    strconv.FormatUint(meta.MarketID, 10),
		"title":       meta.Title,
		"description": meta.Description,
		"tags":        string(tagsJSON),
		"createdAt":   strconv.FormatInt(createdAt, 10),
	}, nil
}

func metadataFromFields(id uint64, fields map[string]string) (domain.MarketMetadata, error) {
	meta := domain.MarketMetadata{
		MarketID:    id,
		Title:       fields["title"],
		Description: fields["description"],
		Tags:        []string{},
	}
	if raw := fields["tags"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta.Tags); err != nil {
			return domain.MarketMetadata{}, fmt.Errorf("tags: %w", err)
		}
	}
	if raw := fields["createdAt"]; raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.MarketMetadata{}, fmt.Errorf("createdAt: %w", err)
		}
		meta.CreatedAt = ms
	}
	return meta, nil
}

var _ domain.MetadataStore = (*MetadataStore)(nil)
