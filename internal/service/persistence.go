package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"japan-tracker/internal/domain"
	"japan-tracker/internal/repository"
	"japan-tracker/internal/tasks"
)

// TaskEnqueuer 是 *asynq.Client 的子集，便于在测试中替换
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// StatePersister 负责客户端状态的保存、加载和清除。
// Redis 是主存储；MySQL 快照由 Worker 异步写入，仅在 Redis 记录缺失时作为备用。
type StatePersister struct {
	stateRepo    repository.StateRepository
	snapshotRepo repository.SnapshotRepository // 可为 nil，此时不使用持久快照
	enqueuer     TaskEnqueuer                  // 可为 nil，此时不入队快照任务
}

// NewStatePersister 创建 StatePersister 实例。
func NewStatePersister(stateRepo repository.StateRepository, snapshotRepo repository.SnapshotRepository, enqueuer TaskEnqueuer) *StatePersister {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for StatePersister")
	}
	return &StatePersister{
		stateRepo:    stateRepo,
		snapshotRepo: snapshotRepo,
		enqueuer:     enqueuer,
	}
}

// Save 将完整映射写入 Redis，成功后入队快照任务。
// 写入失败返回包装了 ErrStorageUnavailable 的错误；入队失败只记录日志。
func (p *StatePersister) Save(ctx context.Context, clientID string, state domain.TrackerState) error {
	logCtx := logrus.WithFields(logrus.Fields{"client_id": clientID, "operation": "Save"})
	if clientID == "" {
		return fmt.Errorf("%w: missing client id", ErrStorageUnavailable)
	}

	revision, err := p.stateRepo.SaveTrackerState(ctx, clientID, state)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to save tracker state, continuing with in-memory state")
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	logCtx = logCtx.WithField("revision", revision)
	logCtx.Debug("Tracker state saved")

	p.enqueueSnapshot(ctx, logCtx, clientID, revision, state)
	return nil
}

func (p *StatePersister) enqueueSnapshot(ctx context.Context, logCtx *logrus.Entry, clientID string, revision uint64, state domain.TrackerState) {
	if p.enqueuer == nil {
		return
	}
	task, err := tasks.NewTrackerSnapshotTask(clientID, revision, state)
	if err != nil {
		logCtx.WithError(err).Error("Failed to create snapshot task")
		return
	}
	info, err := p.enqueuer.EnqueueContext(ctx, task)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to enqueue snapshot task")
		return
	}
	if info != nil {
		logCtx.WithField("task_id", info.ID).Debug("Snapshot task enqueued")
	}
}

// Load 读取客户端状态。记录缺失或无法解析时返回 (nil, false)，从不返回错误。
// 实现 "Redis 优先，数据库备用，回填 Redis" 策略。
func (p *StatePersister) Load(ctx context.Context, clientID string) (domain.TrackerState, bool) {
	logCtx := logrus.WithFields(logrus.Fields{"client_id": clientID, "operation": "Load"})
	if clientID == "" {
		return nil, false
	}

	// 1. 尝试从 Redis 读取
	state, err := p.stateRepo.GetTrackerState(ctx, clientID)
	switch {
	case err == nil:
		return state, true
	case errors.Is(err, domain.ErrMalformedState):
		// 记录存在但已损坏，按全新状态处理
		logCtx.WithError(err).Warn("Stored tracker state is malformed, ignoring")
		return nil, false
	case errors.Is(err, repository.ErrNotFound):
		logCtx.Debug("Tracker state not found in Redis")
	default:
		// 无法读取修订号时快照可能早于一次重置，不能使用
		logCtx.WithError(err).Warn("Failed to read tracker state from Redis, starting fresh")
		return nil, false
	}

	// 2. 尝试从数据库快照恢复
	return p.loadSnapshot(ctx, logCtx, clientID)
}

func (p *StatePersister) loadSnapshot(ctx context.Context, logCtx *logrus.Entry, clientID string) (domain.TrackerState, bool) {
	if p.snapshotRepo == nil {
		return nil, false
	}
	snapshot, err := p.snapshotRepo.GetSnapshot(ctx, clientID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logCtx.WithError(err).Warn("Failed to get snapshot from database")
		}
		return nil, false
	}

	// 快照的修订号低于 Redis 中的当前修订号，说明之后发生过重置
	current, err := p.stateRepo.GetRevision(ctx, clientID)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to get revision, ignoring snapshot")
		return nil, false
	}
	if current > snapshot.Revision {
		logCtx.WithFields(logrus.Fields{
			"snapshot_revision": snapshot.Revision,
			"current_revision":  current,
		}).Info("Snapshot is stale, ignoring")
		return nil, false
	}

	state, err := snapshot.ParseState()
	if err != nil {
		logCtx.WithError(err).Warn("Failed to parse snapshot state from database")
		return nil, false
	}
	logCtx.WithField("revision", snapshot.Revision).Info("Tracker state loaded from database snapshot")

	// 3. 回填 Redis
	if err := p.stateRepo.RestoreTrackerState(ctx, clientID, state); err != nil {
		logCtx.WithError(err).Warn("Failed to restore tracker state to Redis")
	}
	return state, true
}

// Clear 删除 Redis 记录和数据库快照，并递增修订号使排队中的快照任务失效。
func (p *StatePersister) Clear(ctx context.Context, clientID string) error {
	logCtx := logrus.WithFields(logrus.Fields{"client_id": clientID, "operation": "Clear"})
	if clientID == "" {
		return fmt.Errorf("%w: missing client id", ErrStorageUnavailable)
	}

	revision, err := p.stateRepo.DeleteTrackerState(ctx, clientID)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to delete tracker state")
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	if p.snapshotRepo != nil {
		if err := p.snapshotRepo.DeleteSnapshot(ctx, clientID); err != nil {
			// 旧快照的修订号已低于当前修订号，Load 不会再使用它
			logCtx.WithError(err).Warn("Failed to delete database snapshot")
		}
	}
	logCtx.WithField("revision", revision).Info("Tracker state cleared")
	return nil
}
