package user

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
	"gorm.io/gorm"
)

// 服务层的哨兵错误，由handler映射为对应的HTTP状态码。
var (
	ErrDuplicateAccount = errors.New("显示名或邮箱已被使用")
	ErrInvalidLogin     = errors.New("邮箱或密码不正确")
	ErrUserNotFound     = errors.New("用户不存在")
)

// Register 创建一个新用户：生成UUID、哈希密码并写入数据库。
func Register(displayName, email, password string) (*User, error) {
	// 1. 生成用户的公开UUID
	newUUID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成UUID v7: %w", err)
	}

	// 2. 哈希密码
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	newUser := User{
		UUID:         newUUID.String(),
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
		IsPublic:     true,
	}

	// 3. 写入数据库；唯一索引冲突说明显示名或邮箱已被占用
	if err := database.DB.Create(&newUser).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("无法创建新用户: %w", err)
	}

	// 4. 尽力而为地刷新缓存
	CacheDisplayName(newUser.ID, newUser.DisplayName)
	CacheExpScore(newUser.ID, 0)

	return &newUser, nil
}

// Authenticate 校验邮箱和密码，成功时返回用户。
// 无论用户不存在还是密码错误，都返回同一个错误，避免泄露账户是否存在。
func Authenticate(email, password string) (*User, error) {
	var u User
	if err := database.DB.Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidLogin
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidLogin
	}
	return &u, nil
}

// FindByID 按主键查找用户。
func FindByID(id uint) (*User, error) {
	var u User
	if err := database.DB.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &u, nil
}

// FindByName 按显示名查找用户，用于解析对局参与者。
func FindByName(displayName string) (*User, error) {
	var u User
	if err := database.DB.Where("display_name = ?", displayName).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &u, nil
}

// ProfilePatch 定义了资料更新请求中可以修改的字段。
// nil表示不修改对应字段。
type ProfilePatch struct {
	Bio         *string
	IsPublic    *bool
	AvatarImage []byte
}

// UpdateProfile 更新用户的公开资料。
func UpdateProfile(userID uint, patch ProfilePatch) (*User, error) {
	u, err := FindByID(userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Bio != nil {
		updates["bio"] = *patch.Bio
	}
	if patch.IsPublic != nil {
		updates["is_public"] = *patch.IsPublic
	}
	if patch.AvatarImage != nil {
		updates["avatar_image"] = patch.AvatarImage
	}
	if len(updates) == 0 {
		return u, nil
	}

	if err := database.DB.Model(u).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("更新用户资料失败: %w", err)
	}
	return u, nil
}

// AddExperienceTx 在一个已有事务中为用户增加指定类别的经验。
// 类别计数器和总经验在同一条UPDATE中原子递增。
// 调用方负责在事务提交后刷新经验排名缓存。
func AddExperienceTx(tx *gorm.DB, userID uint, category ExpCategory, amount int) error {
	column := expColumn(category)
	if column == "" {
		return fmt.Errorf("无效的经验类别: %s", category)
	}
	result := tx.Model(&User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		column:      gorm.Expr(column+" + ?", amount),
		"total_exp": gorm.Expr("total_exp + ?", amount),
	})
	if result.Error != nil {
		return fmt.Errorf("增加经验失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GrantExperience 在独立事务中为用户增加经验，并在提交后刷新排名缓存。
func GrantExperience(userID uint, category ExpCategory, amount int) error {
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		return AddExperienceTx(tx, userID, category, amount)
	})
	if err != nil {
		return err
	}
	RefreshExpCache(userID)
	return nil
}

// RefreshExpCache 在经验变化提交后，将最新总经验同步到Redis排名。
// 尽力而为：读取或写入失败只记录日志，数据库仍是可信来源。
func RefreshExpCache(userID uint) {
	if !database.RedisReady() {
		return
	}
	var u User
	if err := database.DB.Select("id", "total_exp", "is_public").First(&u, userID).Error; err != nil {
		fmt.Printf("警告: 刷新经验缓存时无法读取用户 %d: %v\n", userID, err)
		return
	}
	if u.IsPublic {
		CacheExpScore(u.ID, u.TotalExp)
	}
}

// ExpRankingEntry 是经验排行榜的一行。
type ExpRankingEntry struct {
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
	TotalExp    int    `json:"total_exp"`
}

// GetExpRanking 返回总经验排行榜，优先走Redis ZSET，缓存不可用时回退到数据库。
func GetExpRanking(limit int) ([]ExpRankingEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	if database.RedisReady() {
		entries, err := expRankingFromRedis(limit)
		if err == nil {
			return entries, nil
		}
		fmt.Printf("警告: Redis经验排行榜读取失败，回退到数据库: %v\n", err)
	}

	return expRankingFromDB(limit)
}

func expRankingFromRedis(limit int) ([]ExpRankingEntry, error) {
	zs, err := database.RDB.ZRevRangeWithScores(database.Ctx, ExpRankingKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]ExpRankingEntry, 0, len(zs))
	for _, z := range zs {
		idStr, _ := z.Member.(string)
		var id uint
		if _, err := fmt.Sscan(idStr, &id); err != nil {
			continue
		}
		name, err := database.RDB.HGet(database.Ctx, NamesKey, idStr).Result()
		if err != nil {
			name = ""
		}
		entries = append(entries, ExpRankingEntry{
			UserID:      id,
			DisplayName: name,
			TotalExp:    int(z.Score),
		})
	}
	return entries, nil
}

func expRankingFromDB(limit int) ([]ExpRankingEntry, error) {
	var entries []ExpRankingEntry
	err := database.DB.Model(&User{}).
		Select("id AS user_id", "display_name", "total_exp").
		Where("is_public = ?", true).
		Order("total_exp DESC").Order("id ASC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("无法从数据库读取经验排行榜: %w", err)
	}
	return entries, nil
}
