// ABOUTME: This file implements storage for per-entity sync cursors and the status snapshot
// ABOUTME: Cursors live under sync_cursor/<entity>; the snapshot under a fixed key

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"sync-bridge/models"
)

// SyncStateRepository defines storage operations for cursors and sync status
type SyncStateRepository interface {
	// GetCursor returns the cursor for an entity type. An absent cursor is
	// a zero cursor (full initial pull), not an error.
	GetCursor(ctx context.Context, entityType string) (*models.SyncCursor, error)

	// SaveCursor persists a cursor, replacing any previous one
	SaveCursor(ctx context.Context, cursor *models.SyncCursor) error

	// ListCursors returns all persisted cursors
	ListCursors(ctx context.Context) ([]*models.SyncCursor, error)

	// ClearCursors removes every persisted cursor
	ClearCursors(ctx context.Context) error

	// GetStatus returns the last sync status snapshot, or ErrStatusNotFound
	GetStatus(ctx context.Context) (*models.SyncStatus, error)

	// SaveStatus persists the sync status snapshot
	SaveStatus(ctx context.Context, status *models.SyncStatus) error
}

// KVSyncStateRepository stores cursors and status as JSON in the key-value store
type KVSyncStateRepository struct {
	store  KeyValueStore
	logger *slog.Logger
}

// NewKVSyncStateRepository creates a sync state repository over the given store
func NewKVSyncStateRepository(store KeyValueStore, logger *slog.Logger) *KVSyncStateRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVSyncStateRepository{store: store, logger: logger}
}

// GetCursor returns the cursor for an entity type, zero-valued when absent
func (r *KVSyncStateRepository) GetCursor(ctx context.Context, entityType string) (*models.SyncCursor, error) {
	value, err := r.store.Get(ctx, prefixSyncCursor+entityType)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return models.NewSyncCursor(entityType), nil
		}
		return nil, fmt.Errorf("failed to read sync cursor: %w", err)
	}

	var cursor models.SyncCursor
	if err := json.Unmarshal(value, &cursor); err != nil {
		return nil, fmt.Errorf("failed to decode sync cursor: %w", err)
	}
	return &cursor, nil
}

// SaveCursor persists a cursor, replacing any previous one
func (r *KVSyncStateRepository) SaveCursor(ctx context.Context, cursor *models.SyncCursor) error {
	if cursor == nil || cursor.EntityType == "" {
		return fmt.Errorf("cannot save cursor without entity type")
	}

	value, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("failed to encode sync cursor: %w", err)
	}
	if err := r.store.Set(ctx, prefixSyncCursor+cursor.EntityType, value); err != nil {
		return err
	}

	r.logger.Debug("Advanced sync cursor",
		"entity_type", cursor.EntityType,
		"last_synced_at", cursor.LastSyncedAt)
	return nil
}

// ListCursors returns all persisted cursors
func (r *KVSyncStateRepository) ListCursors(ctx context.Context) ([]*models.SyncCursor, error) {
	keys, err := r.store.ListKeys(ctx, prefixSyncCursor)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync cursors: %w", err)
	}

	cursors := make([]*models.SyncCursor, 0, len(keys))
	for _, key := range keys {
		entityType := strings.TrimPrefix(key, prefixSyncCursor)
		cursor, err := r.GetCursor(ctx, entityType)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, cursor)
	}
	return cursors, nil
}

// ClearCursors removes every persisted cursor
func (r *KVSyncStateRepository) ClearCursors(ctx context.Context) error {
	keys, err := r.store.ListKeys(ctx, prefixSyncCursor)
	if err != nil {
		return fmt.Errorf("failed to list sync cursors for clear: %w", err)
	}

	for _, key := range keys {
		if err := r.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("failed to remove cursor %s: %w", key, err)
		}
	}

	r.logger.Info("Cleared sync cursors", "count", len(keys))
	return nil
}

// GetStatus returns the last sync status snapshot, or ErrStatusNotFound
func (r *KVSyncStateRepository) GetStatus(ctx context.Context) (*models.SyncStatus, error) {
	value, err := r.store.Get(ctx, keySyncStatus)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrStatusNotFound
		}
		return nil, fmt.Errorf("failed to read sync status: %w", err)
	}

	var status models.SyncStatus
	if err := json.Unmarshal(value, &status); err != nil {
		return nil, fmt.Errorf("failed to decode sync status: %w", err)
	}
	return &status, nil
}

// SaveStatus persists the sync status snapshot
func (r *KVSyncStateRepository) SaveStatus(ctx context.Context, status *models.SyncStatus) error {
	if status == nil {
		return fmt.Errorf("cannot save nil sync status")
	}

	value, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode sync status: %w", err)
	}
	return r.store.Set(ctx, keySyncStatus, value)
}
