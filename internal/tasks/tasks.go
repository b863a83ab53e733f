package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"japan-tracker/internal/domain"
)

// 定义任务类型常量
const (
	TypeTrackerSnapshot = "tracker:snapshot"       // 将客户端状态写入 MySQL 快照
	TypeSnapshotSweep   = "tracker:snapshot:sweep" // 周期任务，统计快照数量
)

// SnapshotQueue 快照任务使用的队列，优先级低于 critical
const SnapshotQueue = "default"

// TrackerSnapshotPayload 定义了快照任务的数据结构
type TrackerSnapshotPayload struct {
	ClientID string    `json:"client_id"`
	Revision uint64    `json:"revision"` // 保存时 Redis 中的修订号
	State    string    `json:"state"`    // 规范 JSON 文本，与 Redis 记录一致
	SavedAt  time.Time `json:"saved_at"`
}

// NewTrackerSnapshotTask 创建一个新的快照任务
func NewTrackerSnapshotTask(clientID string, revision uint64, state domain.TrackerState) (*asynq.Task, error) {
	data, err := state.MarshalCanonical()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tracker state for snapshot task: %w", err)
	}
	payload := TrackerSnapshotPayload{
		ClientID: clientID,
		Revision: revision,
		State:    string(data),
		SavedAt:  time.Now().UTC(),
	}
	// 将 Payload 序列化为 JSON 字节
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot task payload: %w", err)
	}
	return asynq.NewTask(TypeTrackerSnapshot, payloadBytes,
		asynq.Queue(SnapshotQueue),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// ParseTrackerSnapshotPayload 解析任务负载，客户端 ID 为空视为无效
func ParseTrackerSnapshotPayload(data []byte) (TrackerSnapshotPayload, error) {
	var payload TrackerSnapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal snapshot task payload: %w", err)
	}
	if payload.ClientID == "" {
		return payload, fmt.Errorf("snapshot task payload missing client_id")
	}
	return payload, nil
}

// NewSnapshotSweepTask 创建周期统计任务
func NewSnapshotSweepTask() *asynq.Task {
	return asynq.NewTask(TypeSnapshotSweep, nil, asynq.Queue("low"), asynq.MaxRetry(0))
}
