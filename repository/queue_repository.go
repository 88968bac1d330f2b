// ABOUTME: This file defines durable storage for the pending-operation queue
// ABOUTME: The queue is one serialized list so FIFO order survives restarts intact

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"sync-bridge/models"
)

// QueueRepository defines storage operations for the pending-operation queue
type QueueRepository interface {
	// Load returns the queued operations in enqueue order. Empty queue is
	// an empty slice, not an error.
	Load(ctx context.Context) ([]*models.PendingOperation, error)

	// Save replaces the whole queue with the given operations
	Save(ctx context.Context, ops []*models.PendingOperation) error

	// Append adds one operation to the tail of the queue
	Append(ctx context.Context, op *models.PendingOperation) error

	// Checkpoint replaces the first covered operations of the stored queue
	// with replacement, keeping everything appended after that prefix
	Checkpoint(ctx context.Context, covered int, replacement []*models.PendingOperation) error

	// Count returns the number of queued operations
	Count(ctx context.Context) (int, error)
}

// KVQueueRepository stores the queue as one JSON list under a fixed key.
// A mutex serializes the read-modify-write of Append against Save.
type KVQueueRepository struct {
	store KeyValueStore
	mu    sync.Mutex
}

// NewKVQueueRepository creates a queue repository over the given store
func NewKVQueueRepository(store KeyValueStore) *KVQueueRepository {
	return &KVQueueRepository{store: store}
}

// Load returns the queued operations in enqueue order
func (r *KVQueueRepository) Load(ctx context.Context) ([]*models.PendingOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx)
}

// Save replaces the whole queue with the given operations
func (r *KVQueueRepository) Save(ctx context.Context, ops []*models.PendingOperation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(ctx, ops)
}

// Append adds one operation to the tail of the queue
func (r *KVQueueRepository) Append(ctx context.Context, op *models.PendingOperation) error {
	if op == nil || !op.Kind.Valid() {
		return fmt.Errorf("cannot enqueue invalid operation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ops, err := r.loadLocked(ctx)
	if err != nil {
		return err
	}
	ops = append(ops, op)
	return r.saveLocked(ctx, ops)
}

// Checkpoint replaces the first covered operations with replacement while
// keeping the current tail, so operations appended after the caller loaded
// its snapshot are preserved
func (r *KVQueueRepository) Checkpoint(ctx context.Context, covered int, replacement []*models.PendingOperation) error {
	if covered < 0 {
		return fmt.Errorf("cannot checkpoint a negative prefix")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.loadLocked(ctx)
	if err != nil {
		return err
	}
	if covered > len(current) {
		covered = len(current)
	}

	merged := make([]*models.PendingOperation, 0, len(replacement)+len(current)-covered)
	merged = append(merged, replacement...)
	merged = append(merged, current[covered:]...)
	return r.saveLocked(ctx, merged)
}

// Count returns the number of queued operations
func (r *KVQueueRepository) Count(ctx context.Context) (int, error) {
	ops, err := r.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(ops), nil
}

func (r *KVQueueRepository) loadLocked(ctx context.Context) ([]*models.PendingOperation, error) {
	value, err := r.store.Get(ctx, keyPendingQueue)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return []*models.PendingOperation{}, nil
		}
		return nil, fmt.Errorf("failed to read pending queue: %w", err)
	}

	var ops []*models.PendingOperation
	if err := json.Unmarshal(value, &ops); err != nil {
		return nil, fmt.Errorf("failed to decode pending queue: %w", err)
	}
	return ops, nil
}

func (r *KVQueueRepository) saveLocked(ctx context.Context, ops []*models.PendingOperation) error {
	if ops == nil {
		ops = []*models.PendingOperation{}
	}

	value, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("failed to encode pending queue: %w", err)
	}
	return r.store.Set(ctx, keyPendingQueue, value)
}
