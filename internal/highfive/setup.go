package highfive

import (
	"fmt"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
)

// PrimeDB 负责初始化highfive模块的数据库表结构。
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&Highfive{}); err != nil {
		return fmt.Errorf("无法迁移highfive表: %w", err)
	}
	fmt.Println("Highfive数据库表迁移成功。")
	return nil
}
