package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	// 导入内部包
	"japan-tracker/internal/domain"
	"japan-tracker/internal/repository"
	"japan-tracker/internal/tasks"
)

// TrackerSnapshotHandler 处理快照任务：把 Redis 中保存过的状态写入 MySQL
type TrackerSnapshotHandler struct {
	snapshotRepo repository.SnapshotRepository
	stateRepo    repository.StateRepository // 用于读取当前修订号
}

// NewTrackerSnapshotHandler 创建 Handler 实例
func NewTrackerSnapshotHandler(snapshotRepo repository.SnapshotRepository, stateRepo repository.StateRepository) *TrackerSnapshotHandler {
	if snapshotRepo == nil {
		panic("SnapshotRepository cannot be nil for TrackerSnapshotHandler")
	}
	if stateRepo == nil {
		panic("StateRepository cannot be nil for TrackerSnapshotHandler")
	}
	return &TrackerSnapshotHandler{snapshotRepo: snapshotRepo, stateRepo: stateRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *TrackerSnapshotHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	payload, err := tasks.ParseTrackerSnapshotPayload(t.Payload())
	if err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithFields(logrus.Fields{"client_id": payload.ClientID, "revision": payload.Revision})

	// 1. 重置或更新的保存已经取代了这个任务
	current, err := h.stateRepo.GetRevision(ctx, payload.ClientID)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to get current revision")
		return fmt.Errorf("failed to get revision for client %s: %w", payload.ClientID, err)
	}
	if current > payload.Revision {
		logCtx.WithField("current_revision", current).Info("Snapshot task superseded, skipping")
		return nil
	}

	// 2. 解析状态
	state, err := domain.ParseTrackerState([]byte(payload.State))
	if err != nil {
		logCtx.WithError(err).Error("Snapshot task carries malformed state")
		return fmt.Errorf("malformed state: %v: %w", err, asynq.SkipRetry)
	}
	snapshot := &domain.TrackerSnapshot{ClientID: payload.ClientID, Revision: payload.Revision}
	if err := snapshot.SetState(state); err != nil {
		return fmt.Errorf("failed to build snapshot: %v: %w", err, asynq.SkipRetry)
	}

	// 3. 写入数据库，修订号不高于已存储的快照时不会覆盖
	applied, err := h.snapshotRepo.UpsertSnapshot(ctx, snapshot)
	if err != nil {
		logCtx.WithError(err).Error("Failed to upsert snapshot")
		return fmt.Errorf("failed to upsert snapshot for client %s: %w", payload.ClientID, err)
	}

	logCtx.WithFields(logrus.Fields{"applied": applied, "visited": snapshot.Visited}).Info("Snapshot task processed successfully")
	return nil
}

// taskLogger 构造带任务信息的日志条目
func taskLogger(ctx context.Context, t *asynq.Task) *logrus.Entry {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	queue, _ := asynq.GetQueueName(ctx)
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"queue":     queue,
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})
}
