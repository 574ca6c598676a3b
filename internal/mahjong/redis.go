package mahjong

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/user"
	"github.com/riichi-cafe/mahjong-cafe-backend/pkg/jstime"
	"gorm.io/gorm"
)

// --- Redis 键名 ---

const (
	// LifetimeRankingKey 是一个 Redis Sorted Set，按Running Total对用户实时排序。
	// Score: 用户的total_pt；Member: 用户ID的十进制字符串
	LifetimeRankingKey = "mahjong:lifetime:ranking"

	// LifetimeStatsKey 是一个 Redis Hash，存储生涯排行榜每行的详细数据。
	// Field: 用户ID；Value: rankingStats 的JSON序列化字符串
	LifetimeStatsKey = "mahjong:lifetime:stats"
)

// monthlyRankingKey 返回某月排行榜ZSET的键名。
func monthlyRankingKey(month string) string {
	return "mahjong:monthly:ranking:" + month
}

// monthlyStatsKey 返回某月排行榜详细数据Hash的键名。
func monthlyStatsKey(month string) string {
	return "mahjong:monthly:stats:" + month
}

// rankingStats 定义了在排行榜Hash中以JSON格式存储的每行数据。
type rankingStats struct {
	TotalPt   int `json:"total_pt"`
	GameCount int `json:"game_count"`
}

// MirrorMonthlyToRedis 将某月的SQL月度聚合整体镜像到Redis。
// 旧镜像被清空后批量重写，保证镜像与聚合表一致。
func MirrorMonthlyToRedis(month string) error {
	if !database.RedisReady() {
		return nil
	}

	var rows []MonthlyAggregate
	if err := database.DB.Where("month = ?", month).Find(&rows).Error; err != nil {
		return fmt.Errorf("无法读取月度聚合 %s: %w", month, err)
	}

	pipe := database.RDB.Pipeline()
	pipe.Del(database.Ctx, monthlyRankingKey(month), monthlyStatsKey(month))
	for _, row := range rows {
		member := fmt.Sprint(row.UserID)
		statsJSON, _ := json.Marshal(rankingStats{TotalPt: row.TotalPt, GameCount: row.GameCount})
		pipe.ZAdd(database.Ctx, monthlyRankingKey(month), &redis.Z{
			Score:  float64(row.TotalPt),
			Member: member,
		})
		pipe.HSet(database.Ctx, monthlyStatsKey(month), member, statsJSON)
	}
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("镜像月度排行榜 %s 到Redis失败: %w", month, err)
	}
	return nil
}

// MirrorLifetimeEntry 在某用户的Running Total变化后，更新其生涯排行榜镜像。
// 管理员和没有非测试记录的用户不进入生涯排行榜，对应的镜像条目会被移除。
func MirrorLifetimeEntry(userID uint) error {
	if !database.RedisReady() {
		return nil
	}

	var owner user.User
	if err := database.DB.Select("id", "role", "total_pt").First(&owner, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return removeLifetimeEntry(userID)
		}
		return fmt.Errorf("无法读取用户 %d: %w", userID, err)
	}

	var gameCount int64
	err := database.DB.Model(&GameResult{}).
		Where("user_id = ? AND is_test = ?", userID, false).
		Count(&gameCount).Error
	if err != nil {
		return fmt.Errorf("无法统计用户 %d 的非测试局数: %w", userID, err)
	}

	if owner.Role == user.RoleAdmin || gameCount == 0 {
		return removeLifetimeEntry(userID)
	}

	member := fmt.Sprint(userID)
	statsJSON, _ := json.Marshal(rankingStats{TotalPt: owner.TotalPt, GameCount: int(gameCount)})
	pipe := database.RDB.Pipeline()
	pipe.ZAdd(database.Ctx, LifetimeRankingKey, &redis.Z{
		Score:  float64(owner.TotalPt),
		Member: member,
	})
	pipe.HSet(database.Ctx, LifetimeStatsKey, member, statsJSON)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("更新用户 %d 的生涯排行榜镜像失败: %w", userID, err)
	}
	return nil
}

func removeLifetimeEntry(userID uint) error {
	member := fmt.Sprint(userID)
	pipe := database.RDB.Pipeline()
	pipe.ZRem(database.Ctx, LifetimeRankingKey, member)
	pipe.HDel(database.Ctx, LifetimeStatsKey, member)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("移除用户 %d 的生涯排行榜镜像失败: %w", userID, err)
	}
	return nil
}

// monthlyRankingFromRedis 从Redis镜像读取某月排行榜。
// 镜像不存在时返回(nil, nil)，调用方回退到SQL。
func monthlyRankingFromRedis(month string, limit int) ([]RankingEntry, error) {
	exists, err := database.RDB.Exists(database.Ctx, monthlyRankingKey(month)).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, nil
	}
	return rankingFromRedis(monthlyRankingKey(month), monthlyStatsKey(month), limit)
}

// lifetimeRankingFromRedis 从Redis镜像读取生涯排行榜。
// 镜像不存在时返回(nil, nil)，调用方回退到SQL。
func lifetimeRankingFromRedis(limit int) ([]RankingEntry, error) {
	exists, err := database.RDB.Exists(database.Ctx, LifetimeRankingKey).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, nil
	}
	return rankingFromRedis(LifetimeRankingKey, LifetimeStatsKey, limit)
}

// rankingFromRedis 按分数从高到低读取一个排行榜ZSET，并组装完整的行数据。
func rankingFromRedis(rankingKey, statsKey string, limit int) ([]RankingEntry, error) {
	// 1. 从Sorted Set获取排好序的用户ID
	memberIDs, err := database.RDB.ZRevRange(database.Ctx, rankingKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(memberIDs) == 0 {
		return []RankingEntry{}, nil
	}

	// 2. 使用Pipeline一次性获取详细数据和显示名
	pipe := database.RDB.Pipeline()
	statsCmd := pipe.HMGet(database.Ctx, statsKey, memberIDs...)
	namesCmd := pipe.HMGet(database.Ctx, user.NamesKey, memberIDs...)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return nil, err
	}
	statsJSONs, _ := statsCmd.Result()
	names, _ := namesCmd.Result()

	// 3. 组合成排行榜行
	entries := make([]RankingEntry, 0, len(memberIDs))
	for i, idStr := range memberIDs {
		var id uint
		if _, err := fmt.Sscan(idStr, &id); err != nil {
			continue
		}
		var stats rankingStats
		if statsJSONs[i] != nil {
			_ = json.Unmarshal([]byte(statsJSONs[i].(string)), &stats)
		}
		name := ""
		if names[i] != nil {
			name, _ = names[i].(string)
		}
		entries = append(entries, RankingEntry{
			UserID:      id,
			DisplayName: name,
			TotalPt:     stats.TotalPt,
			GameCount:   stats.GameCount,
		})
	}
	sortRankingEntries(entries)
	return entries, nil
}

// sortRankingEntries 施加全局统一的排行榜次序：积分降序，同分按用户ID升序。
// ZSET对同分成员按成员字符串的字典序排列，与SQL路径的约定不同，读出后重排。
func sortRankingEntries(entries []RankingEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalPt != entries[j].TotalPt {
			return entries[i].TotalPt > entries[j].TotalPt
		}
		return entries[i].UserID < entries[j].UserID
	})
}

// WarmupCache 重建mahjong模块的全部Redis镜像：
// 当月的月度排行榜和完整的生涯排行榜。
// 过往月份的镜像按需由写入路径刷新，缺失时读取端自动回退到SQL。
func WarmupCache() error {
	if !database.RedisReady() {
		return nil
	}

	currentMonth := jstime.MonthString(jstime.Now())
	if err := MirrorMonthlyToRedis(currentMonth); err != nil {
		return err
	}

	// 全量重建生涯排行榜镜像
	entries, err := allLifetimeEntries()
	if err != nil {
		return err
	}
	pipe := database.RDB.Pipeline()
	pipe.Del(database.Ctx, LifetimeRankingKey, LifetimeStatsKey)
	for _, e := range entries {
		member := fmt.Sprint(e.UserID)
		statsJSON, _ := json.Marshal(rankingStats{TotalPt: e.TotalPt, GameCount: e.GameCount})
		pipe.ZAdd(database.Ctx, LifetimeRankingKey, &redis.Z{
			Score:  float64(e.TotalPt),
			Member: member,
		})
		pipe.HSet(database.Ctx, LifetimeStatsKey, member, statsJSON)
	}
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("预热生涯排行榜镜像失败: %w", err)
	}

	fmt.Printf("成功预热雀庄排行榜镜像（当月 %s，生涯 %d 人）。\n", currentMonth, len(entries))
	return nil
}

// allLifetimeEntries 返回全部符合生涯排行榜条件的用户，不截断。
func allLifetimeEntries() ([]RankingEntry, error) {
	var entries []RankingEntry
	err := database.DB.Model(&user.User{}).
		Select("users.id AS user_id", "users.display_name", "users.total_pt", "COUNT(game_results.id) AS game_count").
		Joins("JOIN game_results ON game_results.user_id = users.id AND game_results.is_test = ?", false).
		Where("users.role <> ?", user.RoleAdmin).
		Group("users.id").Group("users.display_name").Group("users.total_pt").
		Order("users.total_pt DESC").
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("无法读取生涯排行榜全量数据: %w", err)
	}
	return entries, nil
}
