package user

import (
	"fmt"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
)

// migrateDB 负责自动迁移数据库表结构
func migrateDB() error {
	if err := database.DB.AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("无法迁移user表: %w", err)
	}
	fmt.Println("User数据库表迁移成功。")
	return nil
}

// PrimeCachedDB 是user模块的初始化总入口
func PrimeCachedDB() error {
	if err := migrateDB(); err != nil {
		return err
	}
	if err := WarmupCache(); err != nil {
		return err
	}
	return nil
}
