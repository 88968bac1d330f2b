// ABOUTME: This file defines sync watermarks and the process-wide sync status snapshot
// ABOUTME: Cursors advance strictly forward per entity type, never rolled back

package models

import (
	"time"
)

// SyncOutcome classifies the result of a sync pass
type SyncOutcome string

const (
	SyncOutcomeSuccess SyncOutcome = "success"
	SyncOutcomeError   SyncOutcome = "error"
)

// SyncCursor represents the per-entity watermark of the last successful pull
type SyncCursor struct {
	EntityType   string    `json:"entity_type"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// NewSyncCursor creates a cursor starting at the zero time (full initial pull)
func NewSyncCursor(entityType string) *SyncCursor {
	return &SyncCursor{
		EntityType: entityType,
	}
}

// Advance moves the cursor forward. Older timestamps are ignored.
func (c *SyncCursor) Advance(t time.Time) {
	if t.After(c.LastSyncedAt) {
		c.LastSyncedAt = t
	}
}

// SyncStats carries counters from a single sync pass
type SyncStats struct {
	OperationsApplied  int `json:"operations_applied"`
	OperationsRetained int `json:"operations_retained"`
	OperationsDropped  int `json:"operations_dropped"`
	RecordsPulled      int `json:"records_pulled"`
	RecordsUpdated     int `json:"records_updated"`
	ConflictsLocalWin  int `json:"conflicts_local_win"`
	ConflictsRemoteWin int `json:"conflicts_remote_win"`
}

// SyncStatus represents the read-only snapshot exposed to external observers
type SyncStatus struct {
	LastSyncAt  time.Time   `json:"last_sync_at"`
	Outcome     SyncOutcome `json:"outcome"`
	ErrorDetail string      `json:"error_detail,omitempty"`
	Stats       SyncStats   `json:"stats"`
}

// NewSyncStatus creates a status snapshot for a finished sync pass
func NewSyncStatus(outcome SyncOutcome, errorDetail string, stats SyncStats) *SyncStatus {
	return &SyncStatus{
		LastSyncAt:  time.Now(),
		Outcome:     outcome,
		ErrorDetail: errorDetail,
		Stats:       stats,
	}
}

// Succeeded reports whether the last sync pass completed without error
func (s *SyncStatus) Succeeded() bool {
	return s != nil && s.Outcome == SyncOutcomeSuccess
}
