package repository

import (
	"context"

	"japan-tracker/internal/domain"
)

// SnapshotRepository 定义了状态快照在持久化存储（数据库）中的操作。
type SnapshotRepository interface {
	// GetSnapshot 获取客户端的快照，不存在时返回 ErrSnapshotNotFound。
	GetSnapshot(ctx context.Context, clientID string) (*domain.TrackerSnapshot, error)

	// UpsertSnapshot 写入快照。已存储修订号不低于 snapshot.Revision 时不做修改并返回 false。
	UpsertSnapshot(ctx context.Context, snapshot *domain.TrackerSnapshot) (bool, error)

	// DeleteSnapshot 删除客户端的快照，不存在时不报错。
	DeleteSnapshot(ctx context.Context, clientID string) error

	// CountSnapshots 统计已存储的快照数量
	CountSnapshots(ctx context.Context) (int64, error)
}
