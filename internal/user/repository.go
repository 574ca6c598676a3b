package user

import (
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
)

// --- Redis 键名常量 ---

const (
	// ExpRankingKey 是一个 Redis Sorted Set 的键，用于存储用户的总经验排名。
	// Score: 用户的TotalExp
	// Member: 用户ID的十进制字符串
	ExpRankingKey = "user:exp:ranking"

	// NamesKey 是一个 Redis Hash 的键，缓存用户ID到显示名的映射，
	// 供各类排行榜读取路径使用，避免逐行回表。
	NamesKey = "user:names"
)

// CacheDisplayName 将用户的显示名写入Redis缓存。尽力而为，失败只记录日志。
func CacheDisplayName(userID uint, displayName string) {
	if !database.RedisReady() {
		return
	}
	if err := database.RDB.HSet(database.Ctx, NamesKey, fmt.Sprint(userID), displayName).Err(); err != nil {
		fmt.Printf("警告: 无法缓存用户 %d 的显示名: %v\n", userID, err)
	}
}

// CacheExpScore 将用户的总经验写入排名ZSET。尽力而为，失败只记录日志。
func CacheExpScore(userID uint, totalExp int) {
	if !database.RedisReady() {
		return
	}
	err := database.RDB.ZAdd(database.Ctx, ExpRankingKey, &redis.Z{
		Score:  float64(totalExp),
		Member: fmt.Sprint(userID),
	}).Err()
	if err != nil {
		fmt.Printf("警告: 无法更新用户 %d 的经验排名缓存: %v\n", userID, err)
	}
}

// WarmupCache 从数据库加载所有公开用户，重建经验排名ZSET和显示名缓存。
func WarmupCache() error {
	if !database.RedisReady() {
		return nil
	}

	var users []User
	if err := database.DB.Select("id", "display_name", "total_exp", "is_public").Find(&users).Error; err != nil {
		return fmt.Errorf("无法从数据库读取用户数据: %w", err)
	}

	// 先清空旧缓存，再批量写入，保证缓存与数据库一致
	pipe := database.RDB.Pipeline()
	pipe.Del(database.Ctx, ExpRankingKey, NamesKey)
	for _, u := range users {
		pipe.HSet(database.Ctx, NamesKey, fmt.Sprint(u.ID), u.DisplayName)
		if u.IsPublic {
			pipe.ZAdd(database.Ctx, ExpRankingKey, &redis.Z{
				Score:  float64(u.TotalExp),
				Member: fmt.Sprint(u.ID),
			})
		}
	}
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("预热用户缓存到Redis失败: %w", err)
	}

	fmt.Printf("成功预热 %d 个用户到Redis。\n", len(users))
	return nil
}
