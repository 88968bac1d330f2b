// ABOUTME: This file implements the durable key-value store on top of bbolt
// ABOUTME: Single bucket, JSON values, byte-sorted prefix scans

package repository

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const bridgeBucket = "bridge"

// BoltStore provides a bbolt-backed KeyValueStore that survives restarts
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens (or creates) the store file at the provided path
func OpenBoltStore(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	store := &BoltStore{db: db}
	if err := store.ensureBucket(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying bbolt database
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the value stored under key, or ErrKeyNotFound
func (s *BoltStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bridgeBucket))
		if bucket == nil {
			return fmt.Errorf("bridge bucket is missing")
		}
		stored := bucket.Get([]byte(key))
		if stored == nil {
			return ErrKeyNotFound
		}
		// The slice is only valid inside the transaction
		value = append([]byte(nil), stored...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value under key, overwriting any previous value
func (s *BoltStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("store key is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bridgeBucket))
		if bucket == nil {
			return fmt.Errorf("bridge bucket is missing")
		}
		return bucket.Put([]byte(key), value)
	})
}

// Remove deletes the key. Removing an absent key is not an error.
func (s *BoltStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bridgeBucket))
		if bucket == nil {
			return fmt.Errorf("bridge bucket is missing")
		}
		return bucket.Delete([]byte(key))
	})
}

// ListKeys returns all keys with the given prefix in byte-sorted order
func (s *BoltStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bridgeBucket))
		if bucket == nil {
			return fmt.Errorf("bridge bucket is missing")
		}

		c := bucket.Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *BoltStore) ensureBucket() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bridgeBucket))
		if err != nil {
			return fmt.Errorf("create bridge bucket: %w", err)
		}
		return nil
	})
}
