package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"japan-tracker/internal/repository"
)

// SnapshotSweepHandler 处理周期性的快照统计任务
type SnapshotSweepHandler struct {
	snapshotRepo repository.SnapshotRepository
}

// NewSnapshotSweepHandler 创建 Handler 实例
func NewSnapshotSweepHandler(snapshotRepo repository.SnapshotRepository) *SnapshotSweepHandler {
	if snapshotRepo == nil {
		panic("SnapshotRepository cannot be nil for SnapshotSweepHandler")
	}
	return &SnapshotSweepHandler{snapshotRepo: snapshotRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *SnapshotSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	count, err := h.snapshotRepo.CountSnapshots(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to count snapshots")
		// 周期任务下次会再运行，不需要重试
		return fmt.Errorf("failed to count snapshots: %v: %w", err, asynq.SkipRetry)
	}

	logCtx.WithField("snapshot_count", count).Info("Periodic snapshot sweep completed")
	return nil
}
