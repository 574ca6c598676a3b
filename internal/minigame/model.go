package minigame

import "time"

// DailyPlayRecord 是每日游玩额度的消耗记录。
// 每成功消耗一次额度就写入一行；(用户, 类别, UTC+9日历日)内的行数
// 不得超过当日额度，由"锁定-计数-插入"事务保证。
type DailyPlayRecord struct {
	ID       uint   `gorm:"primarykey"`
	UserID   uint   `gorm:"not null;index:idx_daily_play_slot"`
	Category string `gorm:"type:varchar(16);not null;index:idx_daily_play_slot"`
	Day      string `gorm:"type:varchar(10);not null;index:idx_daily_play_slot"`

	CreatedAt time.Time
}

// BonusClaim 是一次性奖励令牌的兑换记录。
// (用户, 类别, 日)上的唯一约束是防止重复兑换的最终仲裁者：
// 并发兑换中只有一个INSERT能成功，其余以重复键错误失败。
type BonusClaim struct {
	ID       uint   `gorm:"primarykey"`
	UserID   uint   `gorm:"not null;uniqueIndex:idx_bonus_claim_slot"`
	Category string `gorm:"type:varchar(16);not null;uniqueIndex:idx_bonus_claim_slot"`
	Day      string `gorm:"type:varchar(10);not null;uniqueIndex:idx_bonus_claim_slot"`

	CreatedAt time.Time
}

// BestScore 记录用户在某个小游戏类别下的历史最高分。
type BestScore struct {
	ID       uint   `gorm:"primarykey"`
	UserID   uint   `gorm:"not null;uniqueIndex:idx_best_score_slot"`
	Category string `gorm:"type:varchar(16);not null;uniqueIndex:idx_best_score_slot"`
	Score    int    `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
