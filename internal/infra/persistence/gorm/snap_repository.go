package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"japan-tracker/internal/domain"
	"japan-tracker/internal/repository"
)

// GormSnapshotRepository 是 SnapshotRepository 接口的 GORM 实现
type GormSnapshotRepository struct {
	db *gorm.DB
}

// NewGormSnapshotRepository 创建 GormSnapshotRepository 实例
func NewGormSnapshotRepository(db *gorm.DB) *GormSnapshotRepository {
	if db == nil {
		panic("database connection cannot be nil for GormSnapshotRepository")
	}
	return &GormSnapshotRepository{db: db}
}

// GetSnapshot 按 client_id 查询快照（每个客户端唯一）
func (r *GormSnapshotRepository) GetSnapshot(ctx context.Context, clientID string) (*domain.TrackerSnapshot, error) {
	var snapshot domain.TrackerSnapshot
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("gorm: failed to get snapshot for client %s: %w", clientID, err)
	}
	return &snapshot, nil
}

// UpsertSnapshot 在事务中加行锁比较修订号，只接受更新的修订
func (r *GormSnapshotRepository) UpsertSnapshot(ctx context.Context, snapshot *domain.TrackerSnapshot) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.TrackerSnapshot
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("client_id = ?", snapshot.ClientID).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(snapshot).Error; err != nil {
				return err
			}
			applied = true
			return nil
		case err != nil:
			return err
		}

		if existing.Revision >= snapshot.Revision {
			return nil // 已有更新的快照
		}
		snapshot.ID = existing.ID
		snapshot.CreatedAt = existing.CreatedAt
		if err := tx.Model(&existing).Updates(map[string]interface{}{
			"revision":   snapshot.Revision,
			"state_json": snapshot.StateJSON,
			"visited":    snapshot.Visited,
		}).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("gorm: failed to upsert snapshot (client %s, revision %d): %w", snapshot.ClientID, snapshot.Revision, err)
	}
	return applied, nil
}

// DeleteSnapshot 删除客户端的快照
func (r *GormSnapshotRepository) DeleteSnapshot(ctx context.Context, clientID string) error {
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Delete(&domain.TrackerSnapshot{}).Error
	if err != nil {
		return fmt.Errorf("gorm: failed to delete snapshot for client %s: %w", clientID, err)
	}
	return nil
}

// CountSnapshots 统计快照数量
func (r *GormSnapshotRepository) CountSnapshots(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.TrackerSnapshot{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("gorm: failed to count snapshots: %w", err)
	}
	return count, nil
}
