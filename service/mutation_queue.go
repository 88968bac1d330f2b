//go:generate mockgen -source=mutation_queue.go -destination=../mocks/queue_dispatcher_mock.go -package=mocks QueueDispatcher

// ABOUTME: This file implements the durable offline mutation queue with bounded replay
// ABOUTME: Drains in FIFO batches, retaining transient failures and dead-lettering the rest

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"sync-bridge/driver"
	"sync-bridge/models"
	"sync-bridge/repository"
	"sync-bridge/utils"
)

// ErrDrainInProgress indicates a concurrent drain was skipped
var ErrDrainInProgress = errors.New("queue drain already in progress")

const (
	defaultDrainBatchSize = 10
	defaultOpRetryLimit   = 3
)

// QueueDispatcher replays queued mutations against the backend; the RPC
// gateway implements it
type QueueDispatcher interface {
	CallPrivileged(ctx context.Context, procedure string, args map[string]interface{}) (json.RawMessage, error)
}

// DrainResult summarizes one drain pass over the queue
type DrainResult struct {
	Applied  int `json:"applied"`
	Retained int `json:"retained"`
	Dropped  int `json:"dropped"`
}

// QueueMetrics is a point-in-time snapshot of queue activity across drains
type QueueMetrics struct {
	TotalEnqueued int64 `json:"total_enqueued"`
	TotalApplied  int64 `json:"total_applied"`
	TotalRetained int64 `json:"total_retained"`
	TotalDropped  int64 `json:"total_dropped"`
	DrainRuns     int64 `json:"drain_runs"`
	DrainSkips    int64 `json:"drain_skips"`
}

// queueCounters backs QueueMetrics; atomics because Enqueue and Drain run
// concurrently
type queueCounters struct {
	totalEnqueued atomic.Int64
	totalApplied  atomic.Int64
	totalRetained atomic.Int64
	totalDropped  atomic.Int64
	drainRuns     atomic.Int64
	drainSkips    atomic.Int64
}

// MutationQueue holds writes that could not reach the backend and replays
// them later in enqueue order. Operations survive process restarts; failed
// replays are retried across drains up to a cap, then moved to the
// dead-letter store instead of being lost silently.
type MutationQueue struct {
	queueRepo   repository.QueueRepository
	deadLetters repository.DeadLetterRepository
	rpc         QueueDispatcher
	logger      *slog.Logger

	batchSize  int
	retryLimit int

	mu       sync.Mutex
	draining bool

	monitor  *utils.Monitor
	counters queueCounters
}

// NewMutationQueue creates a mutation queue with default batch size and
// retry cap
func NewMutationQueue(queueRepo repository.QueueRepository, deadLetters repository.DeadLetterRepository, rpc QueueDispatcher, logger *slog.Logger) *MutationQueue {
	if logger == nil {
		logger = slog.Default()
	}

	return &MutationQueue{
		queueRepo:   queueRepo,
		deadLetters: deadLetters,
		rpc:         rpc,
		logger:      logger,
		batchSize:   defaultDrainBatchSize,
		retryLimit:  defaultOpRetryLimit,
	}
}

// SetBatchSize overrides how many operations are applied between persistence
// checkpoints
func (q *MutationQueue) SetBatchSize(size int) {
	if size > 0 {
		q.batchSize = size
	}
}

// SetRetryLimit overrides how many failed replays an operation survives
// before it is dead-lettered
func (q *MutationQueue) SetRetryLimit(limit int) {
	if limit > 0 {
		q.retryLimit = limit
	}
}

// SetMonitor attaches a monitor that observes drain passes
func (q *MutationQueue) SetMonitor(monitor *utils.Monitor) {
	q.monitor = monitor
}

// Metrics returns a snapshot of the queue counters
func (q *MutationQueue) Metrics() QueueMetrics {
	return QueueMetrics{
		TotalEnqueued: q.counters.totalEnqueued.Load(),
		TotalApplied:  q.counters.totalApplied.Load(),
		TotalRetained: q.counters.totalRetained.Load(),
		TotalDropped:  q.counters.totalDropped.Load(),
		DrainRuns:     q.counters.drainRuns.Load(),
		DrainSkips:    q.counters.drainSkips.Load(),
	}
}

// Enqueue persists a new pending operation at the tail of the queue
func (q *MutationQueue) Enqueue(ctx context.Context, kind models.OperationKind, targetEntity string, payload map[string]interface{}) (*models.PendingOperation, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid operation kind: %q", kind)
	}
	if targetEntity == "" {
		return nil, fmt.Errorf("target entity must not be empty")
	}

	op := models.NewPendingOperation(kind, targetEntity, payload)
	if err := q.queueRepo.Append(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to persist pending operation: %w", err)
	}

	q.counters.totalEnqueued.Add(1)
	q.logger.Debug("Operation enqueued for replay",
		"operation_id", op.ID.String(),
		"kind", string(op.Kind),
		"target_entity", op.TargetEntity)

	return op, nil
}

// Pending returns the number of operations waiting for replay
func (q *MutationQueue) Pending(ctx context.Context) (int, error) {
	return q.queueRepo.Count(ctx)
}

// DeadLetters returns the operations dropped after exhausting their retries
func (q *MutationQueue) DeadLetters(ctx context.Context) ([]*models.DeadLetterRecord, error) {
	return q.deadLetters.List(ctx)
}

// PurgeDeadLetters removes all dead-letter records and returns how many were
// deleted
func (q *MutationQueue) PurgeDeadLetters(ctx context.Context) (int, error) {
	return q.deadLetters.Purge(ctx)
}

// Drain replays the queue in enqueue order, one attempt per operation:
//   - success removes the operation
//   - a transient failure increments its retry count and keeps it for the
//     next drain, until the cap moves it to the dead-letter store
//   - a terminal failure dead-letters it immediately
//
// The queue is persisted after every batch so a crash mid-drain loses at
// most one batch of bookkeeping, never an unapplied operation. Each
// checkpoint splices around operations enqueued after the drain started,
// so a concurrent Enqueue is never lost. A drain already in progress is
// not started twice; the second caller gets ErrDrainInProgress.
func (q *MutationQueue) Drain(ctx context.Context) (*DrainResult, error) {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		q.counters.drainSkips.Add(1)
		return nil, ErrDrainInProgress
	}
	q.draining = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	q.counters.drainRuns.Add(1)
	startTime := time.Now()

	ops, err := q.queueRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending operations: %w", err)
	}

	result := &DrainResult{}
	if len(ops) == 0 {
		return result, nil
	}

	q.logger.Info("Draining mutation queue", "pending", len(ops), "batch_size", q.batchSize)

	retained := make([]*models.PendingOperation, 0, len(ops))
	covered := len(ops)
	for start := 0; start < len(ops); start += q.batchSize {
		if err := ctx.Err(); err != nil {
			break
		}

		end := start + q.batchSize
		if end > len(ops) {
			end = len(ops)
		}

		for _, op := range ops[start:end] {
			if keep := q.replayOperation(ctx, op, result); keep {
				retained = append(retained, op)
			}
		}

		// Checkpoint: retained so far plus the untouched tail of the loaded
		// snapshot. The repository splices this against its current state,
		// so operations enqueued while the drain is replaying stay queued.
		replacement := make([]*models.PendingOperation, 0, len(retained)+len(ops)-end)
		replacement = append(replacement, retained...)
		replacement = append(replacement, ops[end:]...)
		if err := q.queueRepo.Checkpoint(ctx, covered, replacement); err != nil {
			return result, fmt.Errorf("failed to persist queue after batch: %w", err)
		}
		covered = len(replacement)
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	if q.monitor != nil {
		q.monitor.LogQueueDrain(ctx, result.Applied, result.Retained, result.Dropped, time.Since(startTime))
	}
	q.logger.Info("Drain finished",
		"applied", result.Applied,
		"retained", result.Retained,
		"dropped", result.Dropped)

	return result, nil
}

// replayOperation applies one operation and reports whether it stays queued
func (q *MutationQueue) replayOperation(ctx context.Context, op *models.PendingOperation, result *DrainResult) bool {
	procedure := op.TargetEntity + "." + string(op.Kind)
	_, err := q.rpc.CallPrivileged(ctx, procedure, op.Payload)

	switch {
	case err == nil:
		result.Applied++
		q.counters.totalApplied.Add(1)
		q.logger.Debug("Queued operation applied",
			"operation_id", op.ID.String(),
			"procedure", procedure)
		return false

	case driver.IsRetryable(err):
		op.MarkFailed(err.Error())
		if op.ExceedsRetryLimit(q.retryLimit) {
			q.dropOperation(ctx, op, "retry limit exhausted", err)
			result.Dropped++
			return false
		}
		result.Retained++
		q.counters.totalRetained.Add(1)
		q.logger.Warn("Queued operation failed, will retry next drain",
			"operation_id", op.ID.String(),
			"procedure", procedure,
			"retry_count", op.RetryCount,
			"retry_limit", q.retryLimit,
			"error", err)
		return true

	default:
		// Terminal outcomes cannot succeed on replay
		op.LastError = err.Error()
		q.dropOperation(ctx, op, "terminal failure", err)
		result.Dropped++
		return false
	}
}

// dropOperation moves a failed operation into the dead-letter store
func (q *MutationQueue) dropOperation(ctx context.Context, op *models.PendingOperation, reason string, cause error) {
	q.counters.totalDropped.Add(1)

	record := models.NewDeadLetterRecord(op, reason, string(driver.KindOf(cause)))
	if err := q.deadLetters.Record(ctx, record); err != nil {
		q.logger.Error("Failed to persist dead letter record",
			"operation_id", op.ID.String(),
			"reason", reason,
			"error", err)
	}
}
