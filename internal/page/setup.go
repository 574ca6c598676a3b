package page

import (
	"fmt"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
)

// PrimeDB 负责初始化page模块的数据库表结构。
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&MenuItem{}, &FaqEntry{}); err != nil {
		return fmt.Errorf("无法迁移page表: %w", err)
	}
	fmt.Println("Page数据库表迁移成功。")
	return nil
}
