package page

import "time"

// MenuItem 是菜单页的一个条目，由店员在后台维护。
type MenuItem struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"type:varchar(128);not null"`
	Category  string `gorm:"type:varchar(32);not null;index"`
	PriceYen  int    `gorm:"not null"`
	SortOrder int    `gorm:"not null;default:0"`
	Available bool   `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FaqEntry 是常见问题页的一个条目。
type FaqEntry struct {
	ID        uint   `gorm:"primarykey"`
	Question  string `gorm:"type:text;not null"`
	Answer    string `gorm:"type:text;not null"`
	SortOrder int    `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
