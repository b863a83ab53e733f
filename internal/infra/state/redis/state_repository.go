package redisstate

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"japan-tracker/internal/domain"
	"japan-tracker/internal/repository"
)

// StorageKey 每个客户端保存状态时使用的固定键名
const StorageKey = "japanPrefectureStates"

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// DefaultKeyPrefix 未配置 REDIS_KEY_PREFIX 时使用的前缀 ("jt" = japan tracker)
const DefaultKeyPrefix = "jt:"

// --- Key Generation Helpers ---

// StateKey 例如 "jt:client:<id>:japanPrefectureStates"
func StateKey(prefix, clientID string) string {
	return fmt.Sprintf("%sclient:%s:%s", prefix, clientID, StorageKey)
}

func RevisionKey(prefix, clientID string) string {
	return fmt.Sprintf("%sclient:%s:revision", prefix, clientID)
}

// EventsChannel 客户端状态变更的 Pub/Sub 频道，Hub 按客户端订阅
func EventsChannel(prefix, clientID string) string {
	return fmt.Sprintf("%sclient:%s:events", prefix, clientID)
}

// --- StateRepository Interface Implementation ---

// GetTrackerState 读取客户端保存的 JSON 文本并补全为完整状态
func (r *RedisStateRepository) GetTrackerState(ctx context.Context, clientID string) (domain.TrackerState, error) {
	key := StateKey(r.keyPrefix, clientID)
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrStateNotFound
		}
		return nil, fmt.Errorf("redis: failed to get tracker state for client %s from %s: %w", clientID, key, err)
	}
	state, err := domain.ParseTrackerState(data)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to parse tracker state for client %s from %s: %w", clientID, key, err)
	}
	return state, nil
}

// SaveTrackerState 在同一个 MULTI 中写入完整映射并递增修订号
func (r *RedisStateRepository) SaveTrackerState(ctx context.Context, clientID string, state domain.TrackerState) (uint64, error) {
	data, err := state.MarshalCanonical()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to marshal tracker state for client %s: %w", clientID, err)
	}
	key := StateKey(r.keyPrefix, clientID)
	var incrCmd *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		incrCmd = pipe.Incr(ctx, RevisionKey(r.keyPrefix, clientID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis: failed to save tracker state for client %s on key %s: %w", clientID, key, err)
	}
	return uint64(incrCmd.Val()), nil
}

// RestoreTrackerState 使用 SETNX，避免覆盖并发写入的新状态
func (r *RedisStateRepository) RestoreTrackerState(ctx context.Context, clientID string, state domain.TrackerState) error {
	data, err := state.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("redis: failed to marshal tracker state for client %s: %w", clientID, err)
	}
	key := StateKey(r.keyPrefix, clientID)
	if err := r.client.SetNX(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis: failed to restore tracker state for client %s on key %s: %w", clientID, key, err)
	}
	return nil
}

// DeleteTrackerState 删除记录并递增修订号
func (r *RedisStateRepository) DeleteTrackerState(ctx context.Context, clientID string) (uint64, error) {
	key := StateKey(r.keyPrefix, clientID)
	var incrCmd *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		incrCmd = pipe.Incr(ctx, RevisionKey(r.keyPrefix, clientID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis: failed to delete tracker state for client %s on key %s: %w", clientID, key, err)
	}
	return uint64(incrCmd.Val()), nil
}

// GetRevision 获取客户端当前修订号
func (r *RedisStateRepository) GetRevision(ctx context.Context, clientID string) (uint64, error) {
	key := RevisionKey(r.keyPrefix, clientID)
	revStr, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil // Key 不存在视为修订号 0
		}
		return 0, fmt.Errorf("redis: failed to get revision for client %s from %s: %w", clientID, key, err)
	}
	rev, err := strconv.ParseUint(revStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: failed to parse revision '%s' for client %s from %s: %w", revStr, clientID, key, err)
	}
	return rev, nil
}

// PublishStateEvent 将状态变更发布到客户端的频道
func (r *RedisStateRepository) PublishStateEvent(ctx context.Context, clientID string, payload []byte) error {
	channel := EventsChannel(r.keyPrefix, clientID)
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"client_id":    clientID,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish state event to channel %s: %w", channel, err)
	}
	return nil
}
