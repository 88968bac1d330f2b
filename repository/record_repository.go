// ABOUTME: This file defines the local entity cache the sync loop reconciles against
// ABOUTME: Records are keyed record/<entity>/<id> so one entity type can be scanned or cleared

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sync-bridge/models"
)

// RecordRepository defines storage operations for cached entity records
type RecordRepository interface {
	// Get retrieves one cached record, or ErrRecordNotFound
	Get(ctx context.Context, entityType, id string) (*models.EntityRecord, error)

	// Save persists a record, overwriting any cached version
	Save(ctx context.Context, record *models.EntityRecord) error

	// ListByEntityType returns all cached records of one entity type
	ListByEntityType(ctx context.Context, entityType string) ([]*models.EntityRecord, error)

	// ClearEntityType removes all cached records of one entity type
	ClearEntityType(ctx context.Context, entityType string) error

	// ClearAll removes every cached record
	ClearAll(ctx context.Context) error
}

// KVRecordRepository stores records as JSON under per-record keys
type KVRecordRepository struct {
	store KeyValueStore
}

// NewKVRecordRepository creates a record repository over the given store
func NewKVRecordRepository(store KeyValueStore) *KVRecordRepository {
	return &KVRecordRepository{store: store}
}

// Get retrieves one cached record, or ErrRecordNotFound
func (r *KVRecordRepository) Get(ctx context.Context, entityType, id string) (*models.EntityRecord, error) {
	value, err := r.store.Get(ctx, recordKey(entityType, id))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var record models.EntityRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, fmt.Errorf("failed to decode cached record: %w", err)
	}
	return &record, nil
}

// Save persists a record, overwriting any cached version
func (r *KVRecordRepository) Save(ctx context.Context, record *models.EntityRecord) error {
	if record == nil || record.ID == "" || record.EntityType == "" {
		return fmt.Errorf("cannot cache record without id and entity type")
	}

	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return r.store.Set(ctx, recordKey(record.EntityType, record.ID), value)
}

// ListByEntityType returns all cached records of one entity type
func (r *KVRecordRepository) ListByEntityType(ctx context.Context, entityType string) ([]*models.EntityRecord, error) {
	keys, err := r.store.ListKeys(ctx, prefixRecord+entityType+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	records := make([]*models.EntityRecord, 0, len(keys))
	for _, key := range keys {
		value, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				continue // removed between list and read
			}
			return nil, fmt.Errorf("failed to read record %s: %w", key, err)
		}

		var record models.EntityRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", key, err)
		}
		records = append(records, &record)
	}
	return records, nil
}

// ClearEntityType removes all cached records of one entity type
func (r *KVRecordRepository) ClearEntityType(ctx context.Context, entityType string) error {
	return r.clearPrefix(ctx, prefixRecord+entityType+"/")
}

// ClearAll removes every cached record
func (r *KVRecordRepository) ClearAll(ctx context.Context) error {
	return r.clearPrefix(ctx, prefixRecord)
}

func (r *KVRecordRepository) clearPrefix(ctx context.Context, prefix string) error {
	keys, err := r.store.ListKeys(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to list records for clear: %w", err)
	}
	for _, key := range keys {
		if err := r.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("failed to remove record %s: %w", key, err)
		}
	}
	return nil
}

func recordKey(entityType, id string) string {
	return prefixRecord + entityType + "/" + id
}
