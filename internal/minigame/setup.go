package minigame

import (
	"fmt"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
)

// PrimeDB 负责初始化minigame模块的数据库表结构。
// 本模块没有Redis缓存，额度和最高分都直接以数据库为准。
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&DailyPlayRecord{}, &BonusClaim{}, &BestScore{}); err != nil {
		return fmt.Errorf("无法迁移minigame表: %w", err)
	}
	fmt.Println("Minigame数据库表迁移成功。")
	return nil
}
