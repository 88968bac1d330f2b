// ABOUTME: Tests for the sync coordinator pull loop and last-write-wins conflict resolution
// ABOUTME: Verifies cursor advancement, failure isolation, reentrancy, and the periodic loop

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"sync-bridge/driver"
	"sync-bridge/mocks"
	"sync-bridge/models"
	"sync-bridge/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type coordinatorFixture struct {
	coordinator *SyncCoordinator
	queueRepo   repository.QueueRepository
	recordRepo  repository.RecordRepository
	stateRepo   repository.SyncStateRepository
	puller      *mocks.MockSyncPuller
	dispatcher  *mocks.MockQueueDispatcher
}

// newCoordinatorForTest wires a coordinator over in-memory storage with a
// real mutation queue, mocking only the two RPC surfaces.
func newCoordinatorForTest(t *testing.T, ctrl *gomock.Controller, entityTypes ...string) *coordinatorFixture {
	t.Helper()

	store := repository.NewMemoryStore()
	queueRepo := repository.NewKVQueueRepository(store)
	deadLetters := repository.NewKVDeadLetterRepository(store, nil)
	recordRepo := repository.NewKVRecordRepository(store)
	stateRepo := repository.NewKVSyncStateRepository(store, nil)

	dispatcher := mocks.NewMockQueueDispatcher(ctrl)
	queue := NewMutationQueue(queueRepo, deadLetters, dispatcher, nil)
	puller := mocks.NewMockSyncPuller(ctrl)

	return &coordinatorFixture{
		coordinator: NewSyncCoordinator(queue, puller, recordRepo, stateRepo, entityTypes, nil),
		queueRepo:   queueRepo,
		recordRepo:  recordRepo,
		stateRepo:   stateRepo,
		puller:      puller,
		dispatcher:  dispatcher,
	}
}

func TestSyncCoordinator_PerformSync_PullsAndStoresRecords(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fx := newCoordinatorForTest(t, ctrl, "partner")

	var since string
	fx.puller.EXPECT().CallPrivileged(gomock.Any(), "partner.pull_changes", gomock.Any()).
		DoAndReturn(func(ctx context.Context, procedure string, args map[string]interface{}) (json.RawMessage, error) {
			since, _ = args["since"].(string)
			return json.RawMessage(`[
				{"id": "p-1", "modified_at": "2026-08-20T10:00:00Z", "fields": {"name": "ACME"}},
				{"id": "p-2", "modified_at": "2026-08-21T09:30:00Z", "fields": {"name": "Globex"}}
			]`), nil
		})

	ctx := context.Background()
	status, err := fx.coordinator.PerformSync(ctx)

	require.NoError(t, err)
	assert.True(t, status.Succeeded())
	assert.Equal(t, "0001-01-01T00:00:00Z", since, "First pull starts from the zero watermark")
	assert.Equal(t, 2, status.Stats.RecordsPulled)
	assert.Equal(t, 2, status.Stats.RecordsUpdated)

	stored, err := fx.recordRepo.Get(ctx, "partner", "p-1")
	require.NoError(t, err)
	assert.Equal(t, "ACME", stored.Fields["name"])

	cursor, err := fx.stateRepo.GetCursor(ctx, "partner")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 21, 9, 30, 0, 0, time.UTC), cursor.LastSyncedAt.UTC())

	persisted, err := fx.coordinator.Status(ctx)
	require.NoError(t, err)
	assert.True(t, persisted.Succeeded())
}

func TestSyncCoordinator_PerformSync_RemoteNewerOverwritesLocal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fx := newCoordinatorForTest(t, ctrl, "partner")

	ctx := context.Background()
	local := models.NewEntityRecord("p-1", "partner",
		time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		map[string]interface{}{"name": "Stale Name"})
	require.NoError(t, fx.recordRepo.Save(ctx, local))

	fx.puller.EXPECT().CallPrivileged(gomock.Any(), "partner.pull_changes", gomock.Any()).
		Return(json.RawMessage(`[
			{"id": "p-1", "modified_at": "2026-08-20T11:00:00Z", "fields": {"name": "Fresh Name"}}
		]`), nil)

	status, err := fx.coordinator.PerformSync(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, status.Stats.ConflictsRemoteWin)
	assert.Equal(t, 0, status.Stats.ConflictsLocalWin)

	stored, err := fx.recordRepo.Get(ctx, "partner", "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Fresh Name", stored.Fields["name"])

	ops, err := fx.queueRepo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops, "Remote-wins resolution pushes nothing upstream")
}

func TestSyncCoordinator_PerformSync_LocalNewerPushedUpstream(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fx := newCoordinatorForTest(t, ctrl, "partner")

	ctx := context.Background()
	local := models.NewEntityRecord("p-1", "partner",
		time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		map[string]interface{}{"name": "Offline Edit"})
	require.NoError(t, fx.recordRepo.Save(ctx, local))

	fx.puller.EXPECT().CallPrivileged(gomock.Any(), "partner.pull_changes", gomock.Any()).
		Return(json.RawMessage(`[
			{"id": "p-1", "modified_at": "2026-08-20T11:00:00Z", "fields": {"name": "Older Remote"}}
		]`), nil)

	status, err := fx.coordinator.PerformSync(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, status.Stats.ConflictsLocalWin)
	assert.Equal(t, 0, status.Stats.RecordsUpdated)

	// The local copy survives untouched
	stored, err := fx.recordRepo.Get(ctx, "partner", "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Offline Edit", stored.Fields["name"])
	assert.Equal(t, local.ModifiedAt.UTC(), stored.ModifiedAt.UTC())

	// Exactly one upstream push is queued for the next drain
	ops, err := fx.queueRepo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OperationUpdate, ops[0].Kind)
	assert.Equal(t, "partner", ops[0].TargetEntity)
	assert.Equal(t, "p-1", ops[0].Payload["id"])

	fields, ok := ops[0].Payload["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Offline Edit", fields["name"])

	// The pull still advances the cursor past the remote change
	cursor, err := fx.stateRepo.GetCursor(ctx, "partner")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 20, 11, 0, 0, 0, time.UTC), cursor.LastSyncedAt.UTC())
}

func TestSyncCoordinator_PerformSync_TimestampTieRemoteWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fx := newCoordinatorForTest(t, ctrl, "partner")

	ctx := context.Background()
	modifiedAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	local := models.NewEntityRecord("p-1", "partner", modifiedAt,
		map[string]interface{}{"name": "Local Copy"})
	require.NoError(t, fx.recordRepo.Save(ctx, local))

	fx.puller.EXPECT().CallPrivileged(gomock.Any(), "partner.pull_changes", gomock.Any()).
		Return(json.RawMessage(`[
			{"id": "p-1", "modified_at": "2026-08-20T10:00:00Z", "fields": {"name": "Remote Copy"}}
		]`), nil)

	status, err := fx.coordinator.PerformSync(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, status.Stats.ConflictsRemoteWin)

	stored, err := fx.recordRepo.Get(ctx, "partner", "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Remote Copy", stored.Fields["name"])
}

func TestSyncCoordinator_PerformSync_DrainsQueueBeforePulling(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fx := newCoordinatorForTest(t, ctrl, "partner")

	ctx := context.Background()
	op := models.NewPendingOperation(models.OperationCreate, "partner", map[string]interface{}{"name": "Queued"})
	require.NoError(t, fx.queueRepo.Append(ctx, op))

	gomock.InOrder(
		fx.dispatcher.EXPECT().CallPrivileged(gomock.Any(), "partner.create", gomock.Any()).
			Return(json.RawMessage(`true`), nil),
		fx.puller.EXPECT().CallPrivileged(gomock.Any(), "partner.pull_changes", gomock.Any()).
			Return(json.RawMessage(`[]`), nil),
	)

	status, err := fx.coordinator.PerformSync(ctx)

	require.NoError(t, err)
	assert.True(t, status.Succeeded())
	assert.Equal(t, 1, status.Stats.OperationsApplied)
}

func TestSyncCoordinator_PerformSync_EntityFailureRecordedNotThrown(t *testing.T) {
	tests := map[string]struct {
		pullResult     json.RawMessage
		pullErr        error
		expectInDetail string
	}{
		"transport_failure": {
			pullErr:        driver.NewNetworkError("partner.pull_changes", fmt.Errorf("connection refused")),
			expectInDetail: "partner",
		},
		"malformed_change_feed": {
			pullResult:     json.RawMessage(`{"not": "an array"}`),
			expectInDetail: "malformed change feed",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			fx := newCoordinatorForTest(t, ctrl, "partner")
			fx.puller.EXPECT().CallPrivileged(gomock.Any(), "partner.pull_changes", gomock.Any()).
				Return(tc.pullResult, tc.pullErr)

			ctx := context.Background()
			status, err := fx.coordinator.PerformSync(ctx)

			require.NoError(t, err, "Entity failures are recorded, not thrown")
			assert.Equal(t, models.SyncOutcomeError, status.Outcome)
			assert.Contains(t, status.ErrorDetail, tc.expectInDetail)
			assert.Equal(t, int64(1), fx.coordinator.Metrics().FailedRuns)

			// A failed pull must not move the watermark
			cursor, cursorErr := fx.stateRepo.GetCursor(ctx, "partner")
			require.NoError(t, cursorErr)
			assert.True(t, cursor.LastSyncedAt.IsZero())
		})
	}
}

func TestSyncCoordinator_PerformSync_IsolatesFailuresPerEntity(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fx := newCoordinatorForTest(t, ctrl, "partner", "sale.order")

	fx.puller.EXPECT().CallPrivileged(gomock.Any(), "partner.pull_changes", gomock.Any()).
		Return(nil, driver.NewNetworkError("partner.pull_changes", fmt.Errorf("connection refused")))
	fx.puller.EXPECT().CallPrivileged(gomock.Any(), "sale.order.pull_changes", gomock.Any()).
		Return(json.RawMessage(`[
			{"id": "so-1", "modified_at": "2026-08-20T10:00:00Z", "fields": {"state": "draft"}}
		]`), nil)

	ctx := context.Background()
	status, err := fx.coordinator.PerformSync(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.SyncOutcomeError, status.Outcome)
	assert.Equal(t, 1, status.Stats.RecordsPulled, "The healthy entity still syncs")

	stored, err := fx.recordRepo.Get(ctx, "sale.order", "so-1")
	require.NoError(t, err)
	assert.Equal(t, "draft", stored.Fields["state"])
}

func TestSyncCoordinator_PerformSync_ReentrantCallSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fx := newCoordinatorForTest(t, ctrl, "partner")

	started := make(chan struct{})
	release := make(chan struct{})
	fx.puller.EXPECT().CallPrivileged(gomock.Any(), "partner.pull_changes", gomock.Any()).
		DoAndReturn(func(ctx context.Context, procedure string, args map[string]interface{}) (json.RawMessage, error) {
			close(started)
			<-release
			return json.RawMessage(`[]`), nil
		}).Times(1)

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		status, err := fx.coordinator.PerformSync(ctx)
		assert.NoError(t, err)
		assert.True(t, status.Succeeded())
	}()

	<-started
	_, err := fx.coordinator.PerformSync(ctx)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), fx.coordinator.Metrics().SkippedRuns)
	assert.Equal(t, int64(1), fx.coordinator.Metrics().TotalRuns)
}

func TestSyncCoordinator_ForceSyncEntity(t *testing.T) {
	tests := map[string]struct {
		entityType  string
		mockSetup   func(*coordinatorFixture)
		expectError bool
	}{
		"successful_forced_pull": {
			entityType: "sale.order",
			mockSetup: func(fx *coordinatorFixture) {
				fx.puller.EXPECT().CallPrivileged(gomock.Any(), "sale.order.pull_changes", gomock.Any()).
					Return(json.RawMessage(`[
						{"id": "so-9", "modified_at": "2026-08-22T08:00:00Z", "fields": {"state": "done"}}
					]`), nil)
			},
		},
		"pull_failure_returned_to_caller": {
			entityType: "sale.order",
			mockSetup: func(fx *coordinatorFixture) {
				fx.puller.EXPECT().CallPrivileged(gomock.Any(), "sale.order.pull_changes", gomock.Any()).
					Return(nil, driver.NewNetworkError("sale.order.pull_changes", fmt.Errorf("connection refused")))
			},
			expectError: true,
		},
		"empty_entity_type_rejected": {
			entityType:  "",
			mockSetup:   func(fx *coordinatorFixture) {},
			expectError: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			fx := newCoordinatorForTest(t, ctrl, "partner")
			tc.mockSetup(fx)

			ctx := context.Background()
			status, err := fx.coordinator.ForceSyncEntity(ctx, tc.entityType)

			if tc.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.True(t, status.Succeeded())
			assert.Equal(t, 1, status.Stats.RecordsPulled)

			stored, err := fx.recordRepo.Get(ctx, "sale.order", "so-9")
			require.NoError(t, err)
			assert.Equal(t, "done", stored.Fields["state"])
		})
	}
}

func TestSyncCoordinator_StartPeriodic_RunsAndRestarts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fx := newCoordinatorForTest(t, ctrl, "partner")

	pulled := make(chan struct{}, 16)
	fx.puller.EXPECT().CallPrivileged(gomock.Any(), "partner.pull_changes", gomock.Any()).
		DoAndReturn(func(ctx context.Context, procedure string, args map[string]interface{}) (json.RawMessage, error) {
			select {
			case pulled <- struct{}{}:
			default:
			}
			return json.RawMessage(`[]`), nil
		}).MinTimes(1)

	fx.coordinator.StartPeriodic(20 * time.Millisecond)
	assert.True(t, fx.coordinator.IsRunning())

	// Starting again while running is a logged no-op
	fx.coordinator.StartPeriodic(20 * time.Millisecond)
	assert.True(t, fx.coordinator.IsRunning())

	select {
	case <-pulled:
	case <-time.After(2 * time.Second):
		t.Fatal("no sync pass before timeout")
	}

	fx.coordinator.Stop()
	assert.False(t, fx.coordinator.IsRunning())

	// Stopping twice is safe
	fx.coordinator.Stop()

	// The loop can be restarted after a stop
	fx.coordinator.StartPeriodic(20 * time.Millisecond)
	assert.True(t, fx.coordinator.IsRunning())

	select {
	case <-pulled:
	case <-time.After(2 * time.Second):
		t.Fatal("no sync pass after restart")
	}

	fx.coordinator.Stop()
	assert.False(t, fx.coordinator.IsRunning())
}

func TestSyncCoordinator_ClearSyncState(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fx := newCoordinatorForTest(t, ctrl, "partner")

	ctx := context.Background()
	cursor := models.NewSyncCursor("partner")
	cursor.Advance(time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC))
	require.NoError(t, fx.stateRepo.SaveCursor(ctx, cursor))

	record := models.NewEntityRecord("p-1", "partner", time.Now(), map[string]interface{}{"name": "ACME"})
	require.NoError(t, fx.recordRepo.Save(ctx, record))

	require.NoError(t, fx.coordinator.ClearSyncState(ctx))

	reloaded, err := fx.stateRepo.GetCursor(ctx, "partner")
	require.NoError(t, err)
	assert.True(t, reloaded.LastSyncedAt.IsZero(), "Cleared cursors reset to the zero watermark")

	_, err = fx.recordRepo.Get(ctx, "partner", "p-1")
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
}

func TestSyncCoordinator_Status_NotFoundBeforeFirstPass(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fx := newCoordinatorForTest(t, ctrl, "partner")

	_, err := fx.coordinator.Status(context.Background())
	assert.ErrorIs(t, err, repository.ErrStatusNotFound)
}
