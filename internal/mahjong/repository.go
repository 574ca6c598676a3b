package mahjong

import (
	"fmt"
	"time"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/metadata"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/user"
	"github.com/riichi-cafe/mahjong-cafe-backend/pkg/jstime"
	"gorm.io/gorm"
)

// 排行榜与审计查询的行数上限。
const (
	MonthlyRankingLimit     = 100
	LifetimeRankingMaxLimit = 200
	AdminListMaxLimit       = 500
)

// RefreshMonthly 在独立事务中按月重算月度聚合。
// 该月所有旧行被删除，并从非测试账本记录按用户分组重新写入。
func RefreshMonthly(month string) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		return refreshMonthlyTx(tx, month)
	})
}

func refreshMonthlyTx(tx *gorm.DB, month string) error {
	start, end, err := jstime.MonthRange(month)
	if err != nil {
		return err
	}

	// 1. 从账本按用户分组重算该月的积分与局数
	var rows []MonthlyAggregate
	err = tx.Model(&GameResult{}).
		Select("user_id", "SUM(point) AS total_pt", "COUNT(*) AS game_count").
		Where("is_test = ? AND created_at >= ? AND created_at < ?", false, start, end).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("无法重算月度聚合 %s: %w", month, err)
	}

	// 2. 删除该月的旧聚合行
	if err := tx.Where("month = ?", month).Delete(&MonthlyAggregate{}).Error; err != nil {
		return fmt.Errorf("无法清除月度聚合 %s 的旧数据: %w", month, err)
	}

	// 3. 写入新聚合行
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].ID = 0
		rows[i].Month = month
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("无法写入月度聚合 %s: %w", month, err)
	}
	return nil
}

// RebuildAllMonthly 是管理员的恢复路径：在一个事务中丢弃全部月度聚合，
// 并从账本出发逐月重算。怀疑聚合陈旧或损坏时使用。
func RebuildAllMonthly() error {
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		// 1. 丢弃全部旧聚合
		if err := tx.Where("1 = 1").Delete(&MonthlyAggregate{}).Error; err != nil {
			return fmt.Errorf("无法清空月度聚合: %w", err)
		}

		// 2. 确定账本中非测试记录覆盖的时间范围
		var bounds struct {
			MinAt *time.Time
			MaxAt *time.Time
		}
		err := tx.Model(&GameResult{}).
			Select("MIN(created_at) AS min_at", "MAX(created_at) AS max_at").
			Where("is_test = ?", false).
			Scan(&bounds).Error
		if err != nil {
			return fmt.Errorf("无法确定账本时间范围: %w", err)
		}
		if bounds.MinAt == nil || bounds.MaxAt == nil {
			return nil // 账本为空
		}

		// 3. 按UTC+9日历月逐月重算
		cursor := *bounds.MinAt
		last := jstime.MonthString(*bounds.MaxAt)
		for {
			month := jstime.MonthString(cursor)
			if err := refreshMonthlyTx(tx, month); err != nil {
				return err
			}
			if month == last {
				break
			}
			start, _, err := jstime.MonthRange(month)
			if err != nil {
				return err
			}
			cursor = start.AddDate(0, 1, 0)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 4. 记录重建时刻，供健康端点展示
	if err := metadata.MarkMonthlyRebuild(database.DB); err != nil {
		fmt.Printf("警告: 无法记录月度聚合重建时刻: %v\n", err)
	}

	// 5. 重建后同步Redis镜像
	if err := WarmupCache(); err != nil {
		fmt.Printf("警告: 月度聚合重建后的缓存预热失败: %v\n", err)
	}
	return nil
}

// RankingEntry 是月度或生涯排行榜的一行。
type RankingEntry struct {
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
	TotalPt     int    `json:"total_pt"`
	GameCount   int    `json:"game_count"`
}

// GetMonthlyRanking 返回指定月份的排行榜，按积分降序，至多100行。
// 优先读取Redis镜像，缓存不可用或未命中时回退到SQL月度聚合。
func GetMonthlyRanking(month string) ([]RankingEntry, error) {
	if database.RedisReady() {
		entries, err := monthlyRankingFromRedis(month, MonthlyRankingLimit)
		if err == nil && entries != nil {
			return entries, nil
		}
		if err != nil {
			fmt.Printf("警告: 月度排行榜 %s 缓存读取失败，回退到数据库: %v\n", month, err)
		}
	}
	return monthlyRankingFromDB(month, MonthlyRankingLimit)
}

func monthlyRankingFromDB(month string, limit int) ([]RankingEntry, error) {
	var entries []RankingEntry
	err := database.DB.Model(&MonthlyAggregate{}).
		Select("monthly_aggregates.user_id", "users.display_name", "monthly_aggregates.total_pt", "monthly_aggregates.game_count").
		Joins("JOIN users ON users.id = monthly_aggregates.user_id").
		Where("monthly_aggregates.month = ?", month).
		Order("monthly_aggregates.total_pt DESC").
		Order("monthly_aggregates.user_id ASC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("无法从数据库读取月度排行榜 %s: %w", month, err)
	}
	return entries, nil
}

// GetLifetimeRanking 返回生涯排行榜：排除管理员，只包含至少有一条
// 非测试记录的用户，按Running Total降序，并附带非测试局数。
func GetLifetimeRanking(limit int) ([]RankingEntry, error) {
	if limit <= 0 || limit > LifetimeRankingMaxLimit {
		limit = LifetimeRankingMaxLimit
	}

	if database.RedisReady() {
		entries, err := lifetimeRankingFromRedis(limit)
		if err == nil && entries != nil {
			return entries, nil
		}
		if err != nil {
			fmt.Printf("警告: 生涯排行榜缓存读取失败，回退到数据库: %v\n", err)
		}
	}
	return lifetimeRankingFromDB(limit)
}

func lifetimeRankingFromDB(limit int) ([]RankingEntry, error) {
	var entries []RankingEntry
	err := database.DB.Model(&user.User{}).
		Select("users.id AS user_id", "users.display_name", "users.total_pt", "COUNT(game_results.id) AS game_count").
		Joins("JOIN game_results ON game_results.user_id = users.id AND game_results.is_test = ?", false).
		Where("users.role <> ?", user.RoleAdmin).
		Group("users.id").Group("users.display_name").Group("users.total_pt").
		Order("users.total_pt DESC").
		Order("users.id ASC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("无法从数据库读取生涯排行榜: %w", err)
	}
	return entries, nil
}

// AuditRow 是管理员审计列表的一行：原始账本记录加上显示名。
type AuditRow struct {
	ID          uint      `json:"id"`
	UserID      uint      `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Rank        int       `json:"rank"`
	FinalScore  int       `json:"final_score"`
	Point       int       `json:"point"`
	IsTest      bool      `json:"is_test"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListGames 返回管理员审计列表：可按月份和测试标记过滤，最新在前。
func ListGames(month string, isTest *bool, limit int) ([]AuditRow, error) {
	if limit <= 0 || limit > AdminListMaxLimit {
		limit = AdminListMaxLimit
	}

	query := database.DB.Model(&GameResult{}).
		Select("game_results.id", "game_results.user_id", "users.display_name",
			"game_results.rank", "game_results.final_score", "game_results.point",
			"game_results.is_test", "game_results.created_at").
		Joins("JOIN users ON users.id = game_results.user_id")

	if month != "" {
		start, end, err := jstime.MonthRange(month)
		if err != nil {
			return nil, err
		}
		query = query.Where("game_results.created_at >= ? AND game_results.created_at < ?", start, end)
	}
	if isTest != nil {
		query = query.Where("game_results.is_test = ?", *isTest)
	}

	var rows []AuditRow
	err := query.Order("game_results.created_at DESC").
		Order("game_results.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("无法读取对局审计列表: %w", err)
	}
	return rows, nil
}
