package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"japan-tracker/internal/domain"
	redisstate "japan-tracker/internal/infra/state/redis"
	"japan-tracker/internal/repository"
	"japan-tracker/internal/repository/mocks"
	"japan-tracker/internal/service"
	"japan-tracker/internal/tasks"
)

var errRedisDown = errors.New("dial tcp: connection refused")

func sampleState() domain.TrackerState {
	state := domain.NewTrackerState()
	state.Cycle(1)
	state.Cycle(1)
	state.Cycle(13)
	return state
}

// --- 测试 Save 方法 ---

func TestStatePersister_Save_EnqueuesSnapshot(t *testing.T) {
	// Arrange
	mockStateRepo := new(mocks.StateRepository)
	mockEnqueuer := new(mocks.TaskEnqueuer)
	persister := service.NewStatePersister(mockStateRepo, nil, mockEnqueuer)
	ctx := context.Background()
	state := sampleState()

	mockStateRepo.On("SaveTrackerState", ctx, "c1", state).Return(uint64(3), nil).Once()
	mockEnqueuer.On("EnqueueContext", ctx, mock.MatchedBy(func(task *asynq.Task) bool {
		payload, err := tasks.ParseTrackerSnapshotPayload(task.Payload())
		return err == nil && task.Type() == tasks.TypeTrackerSnapshot &&
			payload.ClientID == "c1" && payload.Revision == 3
	})).Return(&asynq.TaskInfo{ID: "task-1"}, nil).Once()

	// Act
	err := persister.Save(ctx, "c1", state)

	// Assert
	assert.NoError(t, err)
	mockStateRepo.AssertExpectations(t)
	mockEnqueuer.AssertExpectations(t)
}

func TestStatePersister_Save_StorageFailureIsWrapped(t *testing.T) {
	// Arrange
	mockStateRepo := new(mocks.StateRepository)
	mockEnqueuer := new(mocks.TaskEnqueuer)
	persister := service.NewStatePersister(mockStateRepo, nil, mockEnqueuer)
	ctx := context.Background()
	state := sampleState()
	mockStateRepo.On("SaveTrackerState", ctx, "c1", state).Return(uint64(0), errRedisDown).Once()

	// Act
	err := persister.Save(ctx, "c1", state)

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrStorageUnavailable)
	assert.True(t, service.IsNonFatal(err))
	mockEnqueuer.AssertNotCalled(t, "EnqueueContext", mock.Anything, mock.Anything)
}

func TestStatePersister_Save_EnqueueFailureIsIgnored(t *testing.T) {
	mockStateRepo := new(mocks.StateRepository)
	mockEnqueuer := new(mocks.TaskEnqueuer)
	persister := service.NewStatePersister(mockStateRepo, nil, mockEnqueuer)
	ctx := context.Background()
	state := sampleState()
	mockStateRepo.On("SaveTrackerState", ctx, "c1", state).Return(uint64(1), nil).Once()
	mockEnqueuer.On("EnqueueContext", ctx, mock.Anything).Return(nil, errRedisDown).Once()

	err := persister.Save(ctx, "c1", state)

	assert.NoError(t, err, "快照入队失败不影响保存结果")
	mockEnqueuer.AssertExpectations(t)
}

func TestStatePersister_Save_MissingClientID(t *testing.T) {
	mockStateRepo := new(mocks.StateRepository)
	persister := service.NewStatePersister(mockStateRepo, nil, nil)

	err := persister.Save(context.Background(), "", sampleState())

	assert.ErrorIs(t, err, service.ErrStorageUnavailable)
	mockStateRepo.AssertNotCalled(t, "SaveTrackerState", mock.Anything, mock.Anything, mock.Anything)
}

// --- 测试 Load 方法 ---

func TestStatePersister_Load_Hit(t *testing.T) {
	mockStateRepo := new(mocks.StateRepository)
	mockSnapshotRepo := new(mocks.SnapshotRepository)
	persister := service.NewStatePersister(mockStateRepo, mockSnapshotRepo, nil)
	ctx := context.Background()
	state := sampleState()
	mockStateRepo.On("GetTrackerState", ctx, "c1").Return(state, nil).Once()

	loaded, ok := persister.Load(ctx, "c1")

	assert.True(t, ok)
	assert.True(t, loaded.Equal(state))
	mockSnapshotRepo.AssertNotCalled(t, "GetSnapshot", mock.Anything, mock.Anything)
}

func TestStatePersister_Load_MalformedIsAbsent(t *testing.T) {
	mockStateRepo := new(mocks.StateRepository)
	mockSnapshotRepo := new(mocks.SnapshotRepository)
	persister := service.NewStatePersister(mockStateRepo, mockSnapshotRepo, nil)
	ctx := context.Background()
	mockStateRepo.On("GetTrackerState", ctx, "c1").
		Return(nil, domain.ErrMalformedState).Once()

	loaded, ok := persister.Load(ctx, "c1")

	assert.False(t, ok)
	assert.Nil(t, loaded)
	mockSnapshotRepo.AssertNotCalled(t, "GetSnapshot", mock.Anything, mock.Anything)
}

func TestStatePersister_Load_FallsBackToSnapshotAndRestores(t *testing.T) {
	// Arrange
	mockStateRepo := new(mocks.StateRepository)
	mockSnapshotRepo := new(mocks.SnapshotRepository)
	persister := service.NewStatePersister(mockStateRepo, mockSnapshotRepo, nil)
	ctx := context.Background()
	state := sampleState()
	snapshot := &domain.TrackerSnapshot{ClientID: "c1", Revision: 5}
	require.NoError(t, snapshot.SetState(state))

	mockStateRepo.On("GetTrackerState", ctx, "c1").Return(nil, repository.ErrNotFound).Once()
	mockSnapshotRepo.On("GetSnapshot", ctx, "c1").Return(snapshot, nil).Once()
	mockStateRepo.On("GetRevision", ctx, "c1").Return(uint64(5), nil).Once()
	mockStateRepo.On("RestoreTrackerState", ctx, "c1", mock.MatchedBy(func(restored domain.TrackerState) bool {
		return restored.Equal(state)
	})).Return(nil).Once()

	// Act
	loaded, ok := persister.Load(ctx, "c1")

	// Assert
	assert.True(t, ok)
	assert.True(t, loaded.Equal(state))
	mockStateRepo.AssertExpectations(t)
	mockSnapshotRepo.AssertExpectations(t)
}

func TestStatePersister_Load_IgnoresStaleSnapshot(t *testing.T) {
	mockStateRepo := new(mocks.StateRepository)
	mockSnapshotRepo := new(mocks.SnapshotRepository)
	persister := service.NewStatePersister(mockStateRepo, mockSnapshotRepo, nil)
	ctx := context.Background()
	snapshot := &domain.TrackerSnapshot{ClientID: "c1", Revision: 5}
	require.NoError(t, snapshot.SetState(sampleState()))

	mockStateRepo.On("GetTrackerState", ctx, "c1").Return(nil, repository.ErrNotFound).Once()
	mockSnapshotRepo.On("GetSnapshot", ctx, "c1").Return(snapshot, nil).Once()
	// 快照之后发生过重置
	mockStateRepo.On("GetRevision", ctx, "c1").Return(uint64(6), nil).Once()

	loaded, ok := persister.Load(ctx, "c1")

	assert.False(t, ok)
	assert.Nil(t, loaded)
	mockStateRepo.AssertNotCalled(t, "RestoreTrackerState", mock.Anything, mock.Anything, mock.Anything)
}

func TestStatePersister_Load_NoSnapshot(t *testing.T) {
	mockStateRepo := new(mocks.StateRepository)
	mockSnapshotRepo := new(mocks.SnapshotRepository)
	persister := service.NewStatePersister(mockStateRepo, mockSnapshotRepo, nil)
	ctx := context.Background()
	mockStateRepo.On("GetTrackerState", ctx, "c1").Return(nil, repository.ErrNotFound).Once()
	mockSnapshotRepo.On("GetSnapshot", ctx, "c1").Return(nil, repository.ErrSnapshotNotFound).Once()

	_, ok := persister.Load(ctx, "c1")

	assert.False(t, ok)
	mockSnapshotRepo.AssertExpectations(t)
}

func TestStatePersister_Load_RedisDownIgnoresSnapshot(t *testing.T) {
	mockStateRepo := new(mocks.StateRepository)
	mockSnapshotRepo := new(mocks.SnapshotRepository)
	persister := service.NewStatePersister(mockStateRepo, mockSnapshotRepo, nil)
	ctx := context.Background()
	mockStateRepo.On("GetTrackerState", ctx, "c1").Return(nil, errRedisDown).Once()

	// 修订号无法校验，快照可能是一次删除失败的重置之前的状态
	loaded, ok := persister.Load(ctx, "c1")

	assert.False(t, ok)
	assert.Nil(t, loaded)
	mockSnapshotRepo.AssertNotCalled(t, "GetSnapshot", mock.Anything, mock.Anything)
	mockStateRepo.AssertNotCalled(t, "RestoreTrackerState", mock.Anything, mock.Anything, mock.Anything)
}

// --- 测试 Clear 方法 ---

func TestStatePersister_Clear(t *testing.T) {
	mockStateRepo := new(mocks.StateRepository)
	mockSnapshotRepo := new(mocks.SnapshotRepository)
	persister := service.NewStatePersister(mockStateRepo, mockSnapshotRepo, nil)
	ctx := context.Background()
	mockStateRepo.On("DeleteTrackerState", ctx, "c1").Return(uint64(4), nil).Once()
	mockSnapshotRepo.On("DeleteSnapshot", ctx, "c1").Return(nil).Once()

	err := persister.Clear(ctx, "c1")

	assert.NoError(t, err)
	mockStateRepo.AssertExpectations(t)
	mockSnapshotRepo.AssertExpectations(t)
}

func TestStatePersister_Clear_RedisFailure(t *testing.T) {
	mockStateRepo := new(mocks.StateRepository)
	mockSnapshotRepo := new(mocks.SnapshotRepository)
	persister := service.NewStatePersister(mockStateRepo, mockSnapshotRepo, nil)
	ctx := context.Background()
	mockStateRepo.On("DeleteTrackerState", ctx, "c1").Return(uint64(0), errRedisDown).Once()

	err := persister.Clear(ctx, "c1")

	assert.ErrorIs(t, err, service.ErrStorageUnavailable)
	mockSnapshotRepo.AssertNotCalled(t, "DeleteSnapshot", mock.Anything, mock.Anything)
}

func TestStatePersister_Clear_SnapshotFailureIsIgnored(t *testing.T) {
	mockStateRepo := new(mocks.StateRepository)
	mockSnapshotRepo := new(mocks.SnapshotRepository)
	persister := service.NewStatePersister(mockStateRepo, mockSnapshotRepo, nil)
	ctx := context.Background()
	mockStateRepo.On("DeleteTrackerState", ctx, "c1").Return(uint64(4), nil).Once()
	mockSnapshotRepo.On("DeleteSnapshot", ctx, "c1").Return(errors.New("db down")).Once()

	err := persister.Clear(ctx, "c1")

	assert.NoError(t, err, "修订号已递增，旧快照不会再被加载")
}

// --- 使用 miniredis 的往返测试 ---

func TestStatePersister_SaveThenLoad_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	persister := service.NewStatePersister(redisstate.NewRedisStateRepository(client, "test:"), nil, nil)
	ctx := context.Background()
	state := sampleState()
	state.Cycle(47)

	require.NoError(t, persister.Save(ctx, "c1", state))
	loaded, ok := persister.Load(ctx, "c1")

	require.True(t, ok)
	assert.True(t, loaded.Equal(state), "保存后加载应得到相同映射")

	require.NoError(t, persister.Clear(ctx, "c1"))
	_, ok = persister.Load(ctx, "c1")
	assert.False(t, ok, "清除后记录不存在")
}
