// ABOUTME: Tests for the durable mutation queue drain semantics
// ABOUTME: Verifies FIFO replay, retry retention, dead-lettering, and the reentrancy guard

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"sync-bridge/driver"
	"sync-bridge/mocks"
	"sync-bridge/models"
	"sync-bridge/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newMutationQueueForTest(t *testing.T, rpc QueueDispatcher) (*MutationQueue, repository.QueueRepository, repository.DeadLetterRepository) {
	t.Helper()

	store := repository.NewMemoryStore()
	queueRepo := repository.NewKVQueueRepository(store)
	deadLetters := repository.NewKVDeadLetterRepository(store, nil)
	return NewMutationQueue(queueRepo, deadLetters, rpc, nil), queueRepo, deadLetters
}

func TestMutationQueue_Enqueue(t *testing.T) {
	tests := map[string]struct {
		kind         models.OperationKind
		targetEntity string
		expectError  bool
	}{
		"create_operation_accepted": {
			kind:         models.OperationCreate,
			targetEntity: "partner",
		},
		"delete_operation_accepted": {
			kind:         models.OperationDelete,
			targetEntity: "sale.order",
		},
		"unknown_kind_rejected": {
			kind:         models.OperationKind("merge"),
			targetEntity: "partner",
			expectError:  true,
		},
		"empty_entity_rejected": {
			kind:        models.OperationUpdate,
			expectError: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			queue, _, _ := newMutationQueueForTest(t, mocks.NewMockQueueDispatcher(ctrl))

			ctx := context.Background()
			op, err := queue.Enqueue(ctx, tc.kind, tc.targetEntity, map[string]interface{}{"name": "ACME"})

			if tc.expectError {
				assert.Error(t, err)
				pending, countErr := queue.Pending(ctx)
				require.NoError(t, countErr)
				assert.Equal(t, 0, pending)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.kind, op.Kind)
			assert.Equal(t, 0, op.RetryCount)

			pending, err := queue.Pending(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, pending)
		})
	}
}

func TestMutationQueue_Drain_AppliesInEnqueueOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dispatcher := mocks.NewMockQueueDispatcher(ctrl)

	var procedures []string
	dispatcher.EXPECT().CallPrivileged(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, procedure string, args map[string]interface{}) (json.RawMessage, error) {
			procedures = append(procedures, procedure)
			return json.RawMessage(`true`), nil
		}).Times(3)

	queue, _, _ := newMutationQueueForTest(t, dispatcher)

	ctx := context.Background()
	_, err := queue.Enqueue(ctx, models.OperationCreate, "partner", map[string]interface{}{"name": "ACME"})
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, models.OperationUpdate, "partner", map[string]interface{}{"id": 7})
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, models.OperationDelete, "sale.order", map[string]interface{}{"id": 12})
	require.NoError(t, err)

	result, err := queue.Drain(ctx)

	assert.NoError(t, err)
	assert.Equal(t, &DrainResult{Applied: 3}, result)
	assert.Equal(t, []string{"partner.create", "partner.update", "sale.order.delete"}, procedures)

	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}

func TestMutationQueue_Drain_TransientFailureRetainedUntilCap(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dispatcher := mocks.NewMockQueueDispatcher(ctrl)
	dispatcher.EXPECT().CallPrivileged(gomock.Any(), "partner.create", gomock.Any()).
		Return(nil, driver.NewNetworkError("partner.create", fmt.Errorf("connection refused"))).
		Times(3)

	queue, queueRepo, deadLetters := newMutationQueueForTest(t, dispatcher)

	ctx := context.Background()
	op, err := queue.Enqueue(ctx, models.OperationCreate, "partner", map[string]interface{}{"name": "ACME"})
	require.NoError(t, err)

	// Two drains keep the operation with an incremented retry count
	for wantRetries := 1; wantRetries <= 2; wantRetries++ {
		result, err := queue.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, &DrainResult{Retained: 1}, result)

		ops, err := queueRepo.Load(ctx)
		require.NoError(t, err)
		require.Len(t, ops, 1)
		assert.Equal(t, op.ID, ops[0].ID)
		assert.Equal(t, wantRetries, ops[0].RetryCount)
		assert.NotEmpty(t, ops[0].LastError)
	}

	// The third failed replay exhausts the retry budget
	result, err := queue.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, &DrainResult{Dropped: 1}, result)

	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)

	records, err := deadLetters.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, op.ID, records[0].Operation.ID)
	assert.Equal(t, "retry limit exhausted", records[0].Reason)
	assert.Equal(t, string(driver.ErrorKindNetwork), records[0].ErrorKind)
	assert.Equal(t, 3, records[0].Operation.RetryCount)
}

func TestMutationQueue_Drain_TerminalFailureDroppedImmediately(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dispatcher := mocks.NewMockQueueDispatcher(ctrl)
	dispatcher.EXPECT().CallPrivileged(gomock.Any(), "partner.create", gomock.Any()).
		Return(nil, driver.NewValidationError("partner.create", 422, "name is required")).
		Times(1)

	queue, _, _ := newMutationQueueForTest(t, dispatcher)

	ctx := context.Background()
	op, err := queue.Enqueue(ctx, models.OperationCreate, "partner", map[string]interface{}{})
	require.NoError(t, err)

	result, err := queue.Drain(ctx)

	assert.NoError(t, err)
	assert.Equal(t, &DrainResult{Dropped: 1}, result)

	pending, err := queue.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)

	records, err := queue.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, op.ID, records[0].Operation.ID)
	assert.Equal(t, "terminal failure", records[0].Reason)
	assert.Equal(t, string(driver.ErrorKindValidation), records[0].ErrorKind)
	assert.Equal(t, 0, records[0].Operation.RetryCount, "Terminal drops do not consume the retry budget")

	purged, err := queue.PurgeDeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	records, err = queue.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMutationQueue_Drain_MixedOutcomesPreserveQueueOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dispatcher := mocks.NewMockQueueDispatcher(ctrl)
	dispatcher.EXPECT().CallPrivileged(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, procedure string, args map[string]interface{}) (json.RawMessage, error) {
			switch args["name"] {
			case "transient":
				return nil, driver.NewTimeoutError(procedure, context.DeadlineExceeded)
			case "terminal":
				return nil, driver.NewValidationError(procedure, 422, "rejected")
			default:
				return json.RawMessage(`true`), nil
			}
		}).Times(4)

	queue, queueRepo, _ := newMutationQueueForTest(t, dispatcher)

	ctx := context.Background()
	_, err := queue.Enqueue(ctx, models.OperationCreate, "partner", map[string]interface{}{"name": "first"})
	require.NoError(t, err)
	kept, err := queue.Enqueue(ctx, models.OperationCreate, "partner", map[string]interface{}{"name": "transient"})
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, models.OperationCreate, "partner", map[string]interface{}{"name": "terminal"})
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, models.OperationCreate, "partner", map[string]interface{}{"name": "last"})
	require.NoError(t, err)

	result, err := queue.Drain(ctx)

	assert.NoError(t, err)
	assert.Equal(t, &DrainResult{Applied: 2, Retained: 1, Dropped: 1}, result)

	ops, err := queueRepo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, kept.ID, ops[0].ID, "Only the transient failure stays queued")
}

// checkpointSpyQueueRepo counts drain checkpoints while delegating storage
type checkpointSpyQueueRepo struct {
	repository.QueueRepository
	checkpoints int
}

func (s *checkpointSpyQueueRepo) Checkpoint(ctx context.Context, covered int, replacement []*models.PendingOperation) error {
	s.checkpoints++
	return s.QueueRepository.Checkpoint(ctx, covered, replacement)
}

func TestMutationQueue_Drain_CheckpointsAfterEveryBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dispatcher := mocks.NewMockQueueDispatcher(ctrl)
	dispatcher.EXPECT().CallPrivileged(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(json.RawMessage(`true`), nil).Times(5)

	store := repository.NewMemoryStore()
	spy := &checkpointSpyQueueRepo{QueueRepository: repository.NewKVQueueRepository(store)}
	deadLetters := repository.NewKVDeadLetterRepository(store, nil)
	queue := NewMutationQueue(spy, deadLetters, dispatcher, nil)
	queue.SetBatchSize(2)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := queue.Enqueue(ctx, models.OperationCreate, "partner", map[string]interface{}{"seq": i})
		require.NoError(t, err)
	}

	result, err := queue.Drain(ctx)

	assert.NoError(t, err)
	assert.Equal(t, &DrainResult{Applied: 5}, result)
	assert.Equal(t, 3, spy.checkpoints, "Five operations in batches of two need three checkpoints")
}

func TestMutationQueue_Drain_SecondCallerSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	started := make(chan struct{})
	release := make(chan struct{})

	dispatcher := mocks.NewMockQueueDispatcher(ctrl)
	dispatcher.EXPECT().CallPrivileged(gomock.Any(), "partner.create", gomock.Any()).
		DoAndReturn(func(ctx context.Context, procedure string, args map[string]interface{}) (json.RawMessage, error) {
			close(started)
			<-release
			return json.RawMessage(`true`), nil
		}).Times(1)

	queue, _, _ := newMutationQueueForTest(t, dispatcher)

	ctx := context.Background()
	_, err := queue.Enqueue(ctx, models.OperationCreate, "partner", map[string]interface{}{"name": "ACME"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		result, drainErr := queue.Drain(ctx)
		assert.NoError(t, drainErr)
		assert.Equal(t, 1, result.Applied)
	}()

	<-started
	_, err = queue.Drain(ctx)
	assert.ErrorIs(t, err, ErrDrainInProgress)

	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), queue.Metrics().DrainSkips)
	assert.Equal(t, int64(1), queue.Metrics().DrainRuns)
}

func TestMutationQueue_Drain_EnqueueDuringDrainSurvives(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	started := make(chan struct{})
	release := make(chan struct{})

	dispatcher := mocks.NewMockQueueDispatcher(ctrl)
	dispatcher.EXPECT().CallPrivileged(gomock.Any(), "partner.create", gomock.Any()).
		DoAndReturn(func(ctx context.Context, procedure string, args map[string]interface{}) (json.RawMessage, error) {
			close(started)
			<-release
			return json.RawMessage(`true`), nil
		}).Times(1)

	queue, queueRepo, _ := newMutationQueueForTest(t, dispatcher)

	ctx := context.Background()
	_, err := queue.Enqueue(ctx, models.OperationCreate, "partner", map[string]interface{}{"name": "ACME"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		result, drainErr := queue.Drain(ctx)
		assert.NoError(t, drainErr)
		assert.Equal(t, 1, result.Applied)
	}()

	// Enqueue while the drain is mid-replay, before its checkpoint lands
	<-started
	late, err := queue.Enqueue(ctx, models.OperationUpdate, "partner", map[string]interface{}{"name": "ACME Corp"})
	require.NoError(t, err)

	close(release)
	wg.Wait()

	ops, err := queueRepo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1, "The operation enqueued during the drain must stay queued")
	assert.Equal(t, late.ID, ops[0].ID)
}

func TestMutationQueue_Drain_EmptyQueueNoOp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No dispatcher calls expected
	queue, _, _ := newMutationQueueForTest(t, mocks.NewMockQueueDispatcher(ctrl))

	result, err := queue.Drain(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, &DrainResult{}, result)
}
