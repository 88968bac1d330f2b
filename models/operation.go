// ABOUTME: This file defines pending mutations queued while the backend is unreachable
// ABOUTME: Includes dead-letter records for operations dropped after exhausting retries

package models

import (
	"time"

	"github.com/google/uuid"
)

// OperationKind enumerates the mutation types replayed against the backend
type OperationKind string

const (
	OperationCreate OperationKind = "create"
	OperationUpdate OperationKind = "update"
	OperationDelete OperationKind = "delete"
)

// Valid reports whether the kind is one of the replayable mutation types
func (k OperationKind) Valid() bool {
	switch k {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// PendingOperation represents a deferred write awaiting replay against the backend
type PendingOperation struct {
	ID           uuid.UUID              `json:"id"`
	Kind         OperationKind          `json:"kind"`
	TargetEntity string                 `json:"target_entity"`
	Payload      map[string]interface{} `json:"payload"`
	EnqueuedAt   time.Time              `json:"enqueued_at"`
	RetryCount   int                    `json:"retry_count"`
	LastError    string                 `json:"last_error,omitempty"`
}

// NewPendingOperation creates a queued operation with a fresh id and zero retries
func NewPendingOperation(kind OperationKind, targetEntity string, payload map[string]interface{}) *PendingOperation {
	return &PendingOperation{
		ID:           uuid.New(),
		Kind:         kind,
		TargetEntity: targetEntity,
		Payload:      payload,
		EnqueuedAt:   time.Now(),
		RetryCount:   0,
	}
}

// MarkFailed records a failed replay attempt. RetryCount never decreases.
func (op *PendingOperation) MarkFailed(errMsg string) {
	op.RetryCount++
	op.LastError = errMsg
}

// ExceedsRetryLimit checks if the operation has used up its retry budget
func (op *PendingOperation) ExceedsRetryLimit(maxRetries int) bool {
	return op.RetryCount >= maxRetries
}

// DeadLetterRecord persists an operation dropped from the queue with its final error
type DeadLetterRecord struct {
	Operation PendingOperation `json:"operation"`
	Reason    string           `json:"reason"`
	ErrorKind string           `json:"error_kind"`
	FailedAt  time.Time        `json:"failed_at"`
}

// NewDeadLetterRecord captures a dropped operation for later inspection
func NewDeadLetterRecord(op *PendingOperation, reason, errorKind string) *DeadLetterRecord {
	return &DeadLetterRecord{
		Operation: *op,
		Reason:    reason,
		ErrorKind: errorKind,
		FailedAt:  time.Now(),
	}
}
