// ABOUTME: This file defines the locally cached entity record used during sync
// ABOUTME: Records carry opaque field maps; shape transformation is the caller's concern

package models

import (
	"time"
)

// EntityRecord represents one remote entity instance held in the local cache
type EntityRecord struct {
	ID         string                 `json:"id"`
	EntityType string                 `json:"entity_type"`
	ModifiedAt time.Time              `json:"modified_at"`
	Fields     map[string]interface{} `json:"fields"`
}

// NewEntityRecord creates a cache record for an entity instance
func NewEntityRecord(id, entityType string, modifiedAt time.Time, fields map[string]interface{}) *EntityRecord {
	return &EntityRecord{
		ID:         id,
		EntityType: entityType,
		ModifiedAt: modifiedAt,
		Fields:     fields,
	}
}

// NewerThan reports whether this record was modified strictly after t
func (r *EntityRecord) NewerThan(t time.Time) bool {
	return r.ModifiedAt.After(t)
}
