// ABOUTME: Repository layer interfaces over the durable key-value store
// ABOUTME: Defines storage contracts and the key layout shared by all repositories

package repository

import (
	"context"
	"fmt"
)

// KeyValueStore is the durable persistence surface every repository builds on.
// Implementations must survive process restarts (bbolt) or be explicitly
// ephemeral (in-memory, for tests and diskless runs).
type KeyValueStore interface {
	// Get returns the value stored under key, or ErrKeyNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any previous value
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// ListKeys returns all keys with the given prefix in lexicographic order
	ListKeys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the underlying storage
	Close() error
}

// Repository error definitions
var (
	ErrKeyNotFound      = fmt.Errorf("key not found in durable store")
	ErrSessionNotFound  = fmt.Errorf("auth session not found in storage")
	ErrIdentityNotFound = fmt.Errorf("service identity not found in storage")
	ErrRecordNotFound   = fmt.Errorf("entity record not found in storage")
	ErrStatusNotFound   = fmt.Errorf("sync status not found in storage")
)

// Key layout. Everything the bridge persists lives under these names so a
// store can be inspected or cleared per concern.
const (
	keySession         = "session"
	keyServiceIdentity = "service_identity"
	keyPendingQueue    = "pending_operations"
	keySyncStatus      = "sync_status"
	prefixSyncCursor   = "sync_cursor/"
	prefixRecord       = "record/"
	prefixDeadLetter   = "dead_letter/"
)
