package domain

import (
	"fmt"
	"time"
)

// TrackerSnapshot 客户端状态在 MySQL 中的持久副本，Redis 记录缺失时用于恢复。
type TrackerSnapshot struct {
	ID        uint      `gorm:"primaryKey"`
	ClientID  string    `gorm:"size:64;uniqueIndex;not null"` // 每个客户端只保留最新一份
	Revision  uint64    `gorm:"not null"`                     // 与 Redis 中的修订号对应，用于丢弃过期任务
	StateJSON string    `gorm:"type:text;not null"`           // 与 Redis 记录相同的 JSON 文本
	Visited   int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index"`
}

// ParseState 将快照中的 JSON 文本解析为 TrackerState。
func (s *TrackerSnapshot) ParseState() (TrackerState, error) {
	state, err := ParseTrackerState([]byte(s.StateJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot state for client %s: %w", s.ClientID, err)
	}
	return state, nil
}

// SetState 用规范 JSON 填充快照内容
func (s *TrackerSnapshot) SetState(state TrackerState) error {
	data, err := state.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot state: %w", err)
	}
	s.StateJSON = string(data)
	s.Visited = state.CountByStatus(Visited)
	return nil
}
