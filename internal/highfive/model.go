package highfive

import "time"

// Highfive 是一次用户间的击掌记录。
// (发送者, 接收者, UTC+9日历日)上的唯一约束保证同一对用户
// 每日最多击掌一次，并发发送由重复键错误裁决。
type Highfive struct {
	ID         uint   `gorm:"primarykey"`
	SenderID   uint   `gorm:"not null;uniqueIndex:idx_highfive_slot"`
	ReceiverID uint   `gorm:"not null;uniqueIndex:idx_highfive_slot;index"`
	Day        string `gorm:"type:varchar(10);not null;uniqueIndex:idx_highfive_slot"`

	CreatedAt time.Time
}
