//go:generate mockgen -source=sync_coordinator.go -destination=../mocks/sync_puller_mock.go -package=mocks -exclude_interfaces=OperationQueue

// ABOUTME: This file implements the periodic sync loop reconciling local and remote state
// ABOUTME: Drains the mutation queue, pulls incremental changes, and resolves conflicts last-write-wins

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sync-bridge/driver"
	"sync-bridge/models"
	"sync-bridge/repository"
	"sync-bridge/utils"
)

// ErrSyncInProgress indicates a concurrent sync pass was skipped
var ErrSyncInProgress = errors.New("sync already in progress")

const (
	defaultSyncInterval = 30 * time.Second
	defaultPassTimeout  = 5 * time.Minute
)

// SyncPuller fetches incremental entity changes; the RPC gateway implements it
type SyncPuller interface {
	CallPrivileged(ctx context.Context, procedure string, args map[string]interface{}) (json.RawMessage, error)
}

// OperationQueue is the mutation queue surface the coordinator drives
type OperationQueue interface {
	Drain(ctx context.Context) (*DrainResult, error)
	Enqueue(ctx context.Context, kind models.OperationKind, targetEntity string, payload map[string]interface{}) (*models.PendingOperation, error)
}

// SyncMetrics is a point-in-time snapshot of coordinator activity
type SyncMetrics struct {
	TotalRuns       int64         `json:"total_runs"`
	SkippedRuns     int64         `json:"skipped_runs"`
	FailedRuns      int64         `json:"failed_runs"`
	ForcedRuns      int64         `json:"forced_runs"`
	LastRunDuration time.Duration `json:"last_run_duration"`
}

// syncCounters backs SyncMetrics; atomics because the periodic loop and
// forced syncs run concurrently
type syncCounters struct {
	totalRuns    atomic.Int64
	skippedRuns  atomic.Int64
	failedRuns   atomic.Int64
	forcedRuns   atomic.Int64
	lastRunNanos atomic.Int64
}

// SyncCoordinator reconciles the local cache with the backend on a timer.
// Each pass drains the mutation queue first, then pulls records modified
// since the per-entity cursor and resolves conflicts last-write-wins. Pass
// failures are recorded in the persisted SyncStatus, never thrown at the
// periodic loop.
type SyncCoordinator struct {
	queue      OperationQueue
	rpc        SyncPuller
	recordRepo repository.RecordRepository
	stateRepo  repository.SyncStateRepository
	logger     *slog.Logger

	entityTypes []string
	passTimeout time.Duration

	mu      sync.Mutex
	syncing bool

	loopMu   sync.Mutex
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	monitor  *utils.Monitor
	counters syncCounters
}

// NewSyncCoordinator creates a coordinator syncing the given entity types
func NewSyncCoordinator(
	queue OperationQueue,
	rpc SyncPuller,
	recordRepo repository.RecordRepository,
	stateRepo repository.SyncStateRepository,
	entityTypes []string,
	logger *slog.Logger,
) *SyncCoordinator {
	if logger == nil {
		logger = slog.Default()
	}

	return &SyncCoordinator{
		queue:       queue,
		rpc:         rpc,
		recordRepo:  recordRepo,
		stateRepo:   stateRepo,
		logger:      logger,
		entityTypes: entityTypes,
		passTimeout: defaultPassTimeout,
	}
}

// SetPassTimeout overrides the deadline applied to each periodic pass
func (c *SyncCoordinator) SetPassTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.passTimeout = timeout
	}
}

// SetMonitor attaches a monitor that observes completed passes
func (c *SyncCoordinator) SetMonitor(monitor *utils.Monitor) {
	c.monitor = monitor
}

// Metrics returns a snapshot of the coordinator counters
func (c *SyncCoordinator) Metrics() SyncMetrics {
	return SyncMetrics{
		TotalRuns:       c.counters.totalRuns.Load(),
		SkippedRuns:     c.counters.skippedRuns.Load(),
		FailedRuns:      c.counters.failedRuns.Load(),
		ForcedRuns:      c.counters.forcedRuns.Load(),
		LastRunDuration: time.Duration(c.counters.lastRunNanos.Load()),
	}
}

// EntityTypes returns the entity types this coordinator reconciles
func (c *SyncCoordinator) EntityTypes() []string {
	return c.entityTypes
}

// StartPeriodic begins running PerformSync on a fixed interval until Stop
func (c *SyncCoordinator) StartPeriodic(interval time.Duration) {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	if c.running {
		c.logger.Warn("Sync loop is already running")
		return
	}
	if interval <= 0 {
		interval = defaultSyncInterval
	}

	c.logger.Info("Starting periodic sync",
		"interval", interval,
		"entity_types", c.entityTypes)

	c.ticker = time.NewTicker(interval)
	c.stopChan = make(chan struct{})
	c.running = true

	go c.runLoop(c.ticker, c.stopChan)
}

// Stop halts the periodic loop. A pass already in flight finishes on its own.
func (c *SyncCoordinator) Stop() {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	if !c.running {
		return
	}

	c.logger.Info("Stopping periodic sync")
	close(c.stopChan)
	c.ticker.Stop()
	c.running = false
}

// IsRunning reports whether the periodic loop is active
func (c *SyncCoordinator) IsRunning() bool {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	return c.running
}

func (c *SyncCoordinator) runLoop(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.runOnce()
		}
	}
}

func (c *SyncCoordinator) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), c.passTimeout)
	defer cancel()

	_, err := c.PerformSync(ctx)
	switch {
	case errors.Is(err, ErrSyncInProgress):
		c.logger.Info("Sync tick skipped, previous pass still running")
	case err != nil:
		c.logger.Error("Periodic sync pass failed", "error", err)
	}
}

// PerformSync runs one full reconciliation pass: drain the queue, then pull
// and merge changes for every configured entity type. Per-entity failures
// are recorded in the returned SyncStatus rather than returned as errors;
// the error return is reserved for the reentrancy guard and cancellation.
func (c *SyncCoordinator) PerformSync(ctx context.Context) (*models.SyncStatus, error) {
	c.mu.Lock()
	if c.syncing {
		c.mu.Unlock()
		c.counters.skippedRuns.Add(1)
		return nil, ErrSyncInProgress
	}
	c.syncing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.syncing = false
		c.mu.Unlock()
	}()

	startTime := time.Now()
	c.counters.totalRuns.Add(1)
	c.logger.Debug("Sync pass starting", "entity_types", c.entityTypes)

	stats := models.SyncStats{}
	var failures []string

	drainResult, err := c.queue.Drain(ctx)
	switch {
	case errors.Is(err, ErrDrainInProgress):
		c.logger.Info("Queue drain skipped, already in progress")
	case err != nil:
		failures = append(failures, fmt.Sprintf("drain: %v", err))
	default:
		stats.OperationsApplied = drainResult.Applied
		stats.OperationsRetained = drainResult.Retained
		stats.OperationsDropped = drainResult.Dropped
	}

	for _, entityType := range c.entityTypes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.pullEntity(ctx, entityType, &stats); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", entityType, err))
			c.logger.Warn("Entity pull failed, cursor not advanced",
				"entity_type", entityType,
				"error", err)
		}
	}

	status := c.recordOutcome(ctx, stats, failures)
	duration := time.Since(startTime)
	c.counters.lastRunNanos.Store(int64(duration))
	if len(failures) > 0 {
		c.counters.failedRuns.Add(1)
	}
	if c.monitor != nil {
		c.monitor.LogSyncPass(ctx, string(status.Outcome),
			stats.RecordsPulled,
			stats.ConflictsLocalWin+stats.ConflictsRemoteWin,
			duration)
	}

	c.logger.Info("Sync pass finished",
		"outcome", string(status.Outcome),
		"applied", stats.OperationsApplied,
		"pulled", stats.RecordsPulled,
		"conflicts_local", stats.ConflictsLocalWin,
		"conflicts_remote", stats.ConflictsRemoteWin,
		"duration", duration)

	return status, nil
}

// ForceSyncEntity pulls one entity type outside the periodic schedule. Unlike
// PerformSync it returns the pull error directly, since the caller asked for
// this entity explicitly.
func (c *SyncCoordinator) ForceSyncEntity(ctx context.Context, entityType string) (*models.SyncStatus, error) {
	if entityType == "" {
		return nil, fmt.Errorf("entity type must not be empty")
	}

	c.mu.Lock()
	if c.syncing {
		c.mu.Unlock()
		c.counters.skippedRuns.Add(1)
		return nil, ErrSyncInProgress
	}
	c.syncing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.syncing = false
		c.mu.Unlock()
	}()

	c.counters.forcedRuns.Add(1)
	c.logger.Info("Forced sync for entity type", "entity_type", entityType)

	stats := models.SyncStats{}
	var failures []string
	pullErr := c.pullEntity(ctx, entityType, &stats)
	if pullErr != nil {
		failures = append(failures, fmt.Sprintf("%s: %v", entityType, pullErr))
	}

	status := c.recordOutcome(ctx, stats, failures)
	return status, pullErr
}

// Status returns the last persisted sync snapshot. Until the first pass has
// completed it returns repository.ErrStatusNotFound.
func (c *SyncCoordinator) Status(ctx context.Context) (*models.SyncStatus, error) {
	return c.stateRepo.GetStatus(ctx)
}

// ClearSyncState wipes all cursors and cached records so the next pass
// performs a full pull
func (c *SyncCoordinator) ClearSyncState(ctx context.Context) error {
	if err := c.stateRepo.ClearCursors(ctx); err != nil {
		return fmt.Errorf("failed to clear sync cursors: %w", err)
	}
	if err := c.recordRepo.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear cached records: %w", err)
	}
	c.logger.Info("Sync state cleared, next pass will pull from scratch")
	return nil
}

// pullEntity fetches records modified since the entity's cursor and merges
// them into the local cache. The cursor advances only after every pulled
// record has been resolved.
func (c *SyncCoordinator) pullEntity(ctx context.Context, entityType string, stats *models.SyncStats) error {
	cursor, err := c.stateRepo.GetCursor(ctx, entityType)
	if err != nil {
		return fmt.Errorf("failed to load sync cursor: %w", err)
	}

	procedure := entityType + ".pull_changes"
	args := map[string]interface{}{
		"since": cursor.LastSyncedAt.UTC().Format(time.RFC3339Nano),
	}

	raw, err := c.rpc.CallPrivileged(ctx, procedure, args)
	if err != nil {
		return err
	}

	var remote []*models.EntityRecord
	if err := json.Unmarshal(raw, &remote); err != nil {
		return driver.NewProtocolError(procedure, fmt.Sprintf("malformed change feed: %v", err))
	}

	if len(remote) == 0 {
		c.logger.Debug("No remote changes", "entity_type", entityType)
		return nil
	}

	maxModified := cursor.LastSyncedAt
	for _, rec := range remote {
		if rec == nil || rec.ID == "" {
			c.logger.Warn("Skipping change feed entry without id", "entity_type", entityType)
			continue
		}
		rec.EntityType = entityType

		stats.RecordsPulled++
		if rec.ModifiedAt.After(maxModified) {
			maxModified = rec.ModifiedAt
		}

		if err := c.resolveRecord(ctx, rec, stats); err != nil {
			return err
		}
	}

	cursor.Advance(maxModified)
	if err := c.stateRepo.SaveCursor(ctx, cursor); err != nil {
		return fmt.Errorf("failed to advance sync cursor: %w", err)
	}

	return nil
}

// resolveRecord applies last-write-wins between a pulled record and the
// local copy. Remote wins ties; a strictly newer local copy is pushed
// upstream through the queue instead of being overwritten.
func (c *SyncCoordinator) resolveRecord(ctx context.Context, remote *models.EntityRecord, stats *models.SyncStats) error {
	local, err := c.recordRepo.Get(ctx, remote.EntityType, remote.ID)
	if err != nil && !errors.Is(err, repository.ErrRecordNotFound) {
		return fmt.Errorf("failed to read local record %s/%s: %w", remote.EntityType, remote.ID, err)
	}

	if local != nil && local.NewerThan(remote.ModifiedAt) {
		stats.ConflictsLocalWin++
		c.logger.Debug("Local record newer, pushing upstream",
			"entity_type", remote.EntityType,
			"record_id", remote.ID,
			"local_modified_at", local.ModifiedAt,
			"remote_modified_at", remote.ModifiedAt)

		payload := map[string]interface{}{
			"id":          local.ID,
			"modified_at": local.ModifiedAt.UTC().Format(time.RFC3339Nano),
			"fields":      local.Fields,
		}
		if _, err := c.queue.Enqueue(ctx, models.OperationUpdate, remote.EntityType, payload); err != nil {
			return fmt.Errorf("failed to enqueue local version of %s/%s: %w", remote.EntityType, remote.ID, err)
		}
		return nil
	}

	if local != nil {
		stats.ConflictsRemoteWin++
	}
	if err := c.recordRepo.Save(ctx, remote); err != nil {
		return fmt.Errorf("failed to store record %s/%s: %w", remote.EntityType, remote.ID, err)
	}
	stats.RecordsUpdated++

	return nil
}

// recordOutcome persists the SyncStatus snapshot for external observers
func (c *SyncCoordinator) recordOutcome(ctx context.Context, stats models.SyncStats, failures []string) *models.SyncStatus {
	outcome := models.SyncOutcomeSuccess
	detail := ""
	if len(failures) > 0 {
		outcome = models.SyncOutcomeError
		detail = strings.Join(failures, "; ")
	}

	status := models.NewSyncStatus(outcome, detail, stats)
	if err := c.stateRepo.SaveStatus(ctx, status); err != nil {
		c.logger.Error("Failed to persist sync status", "error", err)
	}
	return status
}
