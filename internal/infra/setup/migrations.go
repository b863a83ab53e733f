package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"japan-tracker/internal/domain"
)

// MigrateDB 使用传入的 GORM 实例迁移数据库模式。
// 返回错误以便调用者知道迁移是否成功。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	// client_id 列带唯一索引，需限制长度 (size:64)，否则 MySQL 无法为 TEXT 建索引
	if err := db.AutoMigrate(&domain.TrackerSnapshot{}); err != nil {
		logrus.Errorf("Failed to auto-migrate tracker_snapshots table: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}
