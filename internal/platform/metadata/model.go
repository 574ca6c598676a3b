package metadata

import "gorm.io/gorm"

// Metadata 是一个通用的键值表，存放不属于任何业务表的运维状态。
type Metadata struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;not null"`
	Value string `gorm:"not null"`
}
