package user

import (
	"time"

	"gorm.io/gorm"
)

// Role 定义了用户的权限角色
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ExpCategory 定义了经验值的六个类别。
// 店内的每一种可获得经验的活动都归属于其中一类。
type ExpCategory string

const (
	CategoryMahjong  ExpCategory = "mahjong"  // 雀庄对局
	CategoryBoard    ExpCategory = "board"    // 桌游
	CategoryPuzzle   ExpCategory = "puzzle"   // 解谜
	CategoryBreakout ExpCategory = "breakout" // 浏览器打砖块小游戏
	CategorySocial   ExpCategory = "social"   // 社交互动（highfive等）
	CategoryVisit    ExpCategory = "visit"    // 到店打卡
)

// AllCategories 列出所有合法的经验类别，用于请求校验。
var AllCategories = []ExpCategory{
	CategoryMahjong, CategoryBoard, CategoryPuzzle,
	CategoryBreakout, CategorySocial, CategoryVisit,
}

// ValidCategory 检查一个类别字符串是否合法。
func ValidCategory(c ExpCategory) bool {
	for _, v := range AllCategories {
		if v == c {
			return true
		}
	}
	return false
}

// User 定义了用户在数据库中的持久化模型。
// TotalPt 是该用户所有非测试对局point的累计缓存值（Running Total），
// 由账本写入事务增量维护，任何事务提交后都必须与账本求和一致。
type User struct {
	ID           uint   `gorm:"primarykey"`
	UUID         string `gorm:"type:varchar(36);uniqueIndex"`
	DisplayName  string `gorm:"type:varchar(64);uniqueIndex;not null"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string `gorm:"type:varchar(255);not null"`
	Role         Role   `gorm:"type:varchar(16);not null;default:user"`

	// 六个类别的经验计数器与总经验
	MahjongExp  int `gorm:"not null;default:0"`
	BoardExp    int `gorm:"not null;default:0"`
	PuzzleExp   int `gorm:"not null;default:0"`
	BreakoutExp int `gorm:"not null;default:0"`
	SocialExp   int `gorm:"not null;default:0"`
	VisitExp    int `gorm:"not null;default:0"`
	TotalExp    int `gorm:"not null;default:0"`

	// TotalPt 是雀庄账本的Running Total
	TotalPt int `gorm:"not null;default:0"`

	IsPublic    bool   `gorm:"not null;default:true"`
	AvatarImage []byte `gorm:"type:bytes"`
	Bio         string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// expColumn 将经验类别映射到对应的数据库列名。
func expColumn(c ExpCategory) string {
	switch c {
	case CategoryMahjong:
		return "mahjong_exp"
	case CategoryBoard:
		return "board_exp"
	case CategoryPuzzle:
		return "puzzle_exp"
	case CategoryBreakout:
		return "breakout_exp"
	case CategorySocial:
		return "social_exp"
	case CategoryVisit:
		return "visit_exp"
	}
	return ""
}

// CategoryExp 返回用户在指定类别下的经验值。
func (u *User) CategoryExp(c ExpCategory) int {
	switch c {
	case CategoryMahjong:
		return u.MahjongExp
	case CategoryBoard:
		return u.BoardExp
	case CategoryPuzzle:
		return u.PuzzleExp
	case CategoryBreakout:
		return u.BreakoutExp
	case CategorySocial:
		return u.SocialExp
	case CategoryVisit:
		return u.VisitExp
	}
	return 0
}
