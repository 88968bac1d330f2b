// ABOUTME: This file persists operations dropped from the queue after exhausting retries
// ABOUTME: Keys embed the failure timestamp so listings come back in drop order

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"sync-bridge/models"
)

// DeadLetterRepository defines storage operations for permanently failed operations
type DeadLetterRepository interface {
	// Record persists a dropped operation with its final error
	Record(ctx context.Context, record *models.DeadLetterRecord) error

	// List returns all dead letters in drop order
	List(ctx context.Context) ([]*models.DeadLetterRecord, error)

	// Purge removes all dead letters and returns how many were removed
	Purge(ctx context.Context) (int, error)
}

// KVDeadLetterRepository stores dead letters as JSON under timestamped keys
type KVDeadLetterRepository struct {
	store  KeyValueStore
	logger *slog.Logger
}

// NewKVDeadLetterRepository creates a dead letter repository over the given store
func NewKVDeadLetterRepository(store KeyValueStore, logger *slog.Logger) *KVDeadLetterRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVDeadLetterRepository{store: store, logger: logger}
}

// Record persists a dropped operation with its final error
func (r *KVDeadLetterRepository) Record(ctx context.Context, record *models.DeadLetterRecord) error {
	if record == nil {
		return fmt.Errorf("cannot record nil dead letter")
	}

	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode dead letter: %w", err)
	}

	key := deadLetterKey(record)
	if err := r.store.Set(ctx, key, value); err != nil {
		return fmt.Errorf("failed to persist dead letter: %w", err)
	}

	r.logger.Warn("Operation moved to dead letter store",
		"operation_id", record.Operation.ID.String(),
		"kind", string(record.Operation.Kind),
		"target_entity", record.Operation.TargetEntity,
		"error_kind", record.ErrorKind,
		"reason", record.Reason)
	return nil
}

// List returns all dead letters in drop order
func (r *KVDeadLetterRepository) List(ctx context.Context) ([]*models.DeadLetterRecord, error) {
	keys, err := r.store.ListKeys(ctx, prefixDeadLetter)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	records := make([]*models.DeadLetterRecord, 0, len(keys))
	for _, key := range keys {
		value, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to read dead letter %s: %w", key, err)
		}

		var record models.DeadLetterRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return nil, fmt.Errorf("failed to decode dead letter %s: %w", key, err)
		}
		records = append(records, &record)
	}
	return records, nil
}

// Purge removes all dead letters and returns how many were removed
func (r *KVDeadLetterRepository) Purge(ctx context.Context) (int, error) {
	keys, err := r.store.ListKeys(ctx, prefixDeadLetter)
	if err != nil {
		return 0, fmt.Errorf("failed to list dead letters for purge: %w", err)
	}

	for _, key := range keys {
		if err := r.store.Remove(ctx, key); err != nil {
			return 0, fmt.Errorf("failed to remove dead letter %s: %w", key, err)
		}
	}

	if len(keys) > 0 {
		r.logger.Info("Purged dead letter store", "count", len(keys))
	}
	return len(keys), nil
}

// deadLetterTimeLayout zero-pads fractional seconds so every key has the
// same width and byte order matches drop order
const deadLetterTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// deadLetterKey builds a byte-sortable key from failure time and operation id
func deadLetterKey(record *models.DeadLetterRecord) string {
	return prefixDeadLetter +
		record.FailedAt.UTC().Format(deadLetterTimeLayout) + "_" +
		record.Operation.ID.String()
}
