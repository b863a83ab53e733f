package repository

import (
	"context"

	"japan-tracker/internal/domain"
)

// StateRepository 定义客户端实时状态相关的操作，由 Redis 实现。
// 每个客户端在固定的存储键下保存一份完整的 JSON 文本，并维护一个单调递增的修订号。
type StateRepository interface {
	// GetTrackerState 读取客户端的持久化状态（已补全）。
	// 记录不存在时返回 ErrNotFound；内容无法解析时返回包装了 domain.ErrMalformedState 的错误。
	GetTrackerState(ctx context.Context, clientID string) (domain.TrackerState, error)

	// SaveTrackerState 写入完整映射并原子地递增修订号，返回新的修订号。
	SaveTrackerState(ctx context.Context, clientID string, state domain.TrackerState) (uint64, error)

	// RestoreTrackerState 仅在记录不存在时写入（从 DB 快照回填），不改变修订号。
	RestoreTrackerState(ctx context.Context, clientID string, state domain.TrackerState) error

	// DeleteTrackerState 删除记录并递增修订号，使排队中的旧快照任务失效。
	DeleteTrackerState(ctx context.Context, clientID string) (uint64, error)

	// GetRevision 获取客户端当前修订号，从未写入过时为 0。
	GetRevision(ctx context.Context, clientID string) (uint64, error)

	// PublishStateEvent 向客户端的事件频道发布消息，供其他标签页同步。
	PublishStateEvent(ctx context.Context, clientID string, payload []byte) error
}
