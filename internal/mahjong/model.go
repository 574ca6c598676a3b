package mahjong

import (
	"time"
)

// GameResult 定义了雀庄账本中的一条对局记录。
// Point 由 (Rank, FinalScore) 经CalcPoint确定性导出，重算必须幂等。
// IsTest 标记的记录只进入账本，不参与任何积分与排行榜统计。
type GameResult struct {
	ID         uint `gorm:"primarykey"`
	UserID     uint `gorm:"index;not null"`
	Rank       int  `gorm:"not null"`
	FinalScore int  `gorm:"not null"`
	Point      int  `gorm:"not null"`
	IsTest     bool `gorm:"not null;default:false;index"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// MonthlyAggregate 是按(用户, UTC+9日历月)物化的积分汇总。
// 它是可重建的缓存：每次触及非测试记录的写入后按月重算，
// 管理员的全量重建操作是最终的恢复路径。
type MonthlyAggregate struct {
	ID        uint   `gorm:"primarykey"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_monthly_user_month"`
	Month     string `gorm:"type:varchar(7);not null;uniqueIndex:idx_monthly_user_month;index"`
	TotalPt   int    `gorm:"not null;default:0"`
	GameCount int    `gorm:"not null;default:0"`

	UpdatedAt time.Time
}
