package mahjong

import (
	"fmt"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
)

// migrateDB 负责自动迁移账本和月度聚合的表结构
func migrateDB() error {
	if err := database.DB.AutoMigrate(&GameResult{}, &MonthlyAggregate{}); err != nil {
		return fmt.Errorf("无法迁移mahjong表: %w", err)
	}
	fmt.Println("Mahjong数据库表迁移成功。")
	return nil
}

// PrimeCachedDB 是mahjong模块的初始化总入口
func PrimeCachedDB() error {
	if err := migrateDB(); err != nil {
		return err
	}
	if err := WarmupCache(); err != nil {
		return err
	}
	return nil
}
