package mahjong

import (
	"errors"
	"fmt"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/user"
	"github.com/riichi-cafe/mahjong-cafe-backend/pkg/jstime"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 账本服务层的哨兵错误，由handler映射为对应的HTTP状态码。
var (
	ErrInvalidRank       = errors.New("顺位必须在1至4之间")
	ErrOwnerNotFound     = errors.New("对局所属用户不存在")
	ErrResultNotFound    = errors.New("对局记录不存在")
	ErrRanksNotCovered   = errors.New("一场对局的四条记录必须恰好覆盖顺位1至4各一次")
	ErrTooManyMissing    = errors.New("一场对局最多只能省略一名参与者的终局持点")
	ErrScoreSumMismatch  = errors.New("四名参与者的终局持点之和必须等于100000")
	ErrMatchSizeMismatch = errors.New("一场对局必须恰好包含四条记录")
)

// matchScoreTotal 是一场完整对局四家终局持点的约定总和。
const matchScoreTotal = 100000

// mahjongExpPerGame 是每条真实对局记录为所属用户带来的雀庄经验。
// 经验在提交时一次性发放，奖励的是到场对局本身，之后的修正不追溯。
const mahjongExpPerGame = 20

// SubmitInput 描述一条待写入账本的对局结果。
type SubmitInput struct {
	UserID     uint
	Rank       int
	FinalScore int
	IsTest     bool
}

// SubmitResult 校验并写入一条对局结果。
// 非测试记录的账本插入与所属用户Running Total的增量更新在同一事务中完成；
// 事务提交后尽力而为地刷新月度聚合与排行榜缓存，刷新失败不回滚账本。
func SubmitResult(input SubmitInput) (*GameResult, error) {
	var result *GameResult
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = submitResultTx(tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	if !result.IsTest {
		RefreshAfterWrite([]uint{result.UserID}, []string{jstime.MonthString(result.CreatedAt)})
	}
	return result, nil
}

// submitResultTx 在调用方提供的事务中写入一条对局结果。
// 批量提交路径复用它，使四条记录共享同一个事务。
func submitResultTx(tx *gorm.DB, input SubmitInput) (*GameResult, error) {
	// 1. 校验顺位。不合法的顺位在进入计算器之前就被拒绝。
	if !ValidRank(input.Rank) {
		return nil, ErrInvalidRank
	}

	// 2. 确定性地计算积分增减
	point := CalcPoint(input.Rank, input.FinalScore)

	newResult := GameResult{
		UserID:     input.UserID,
		Rank:       input.Rank,
		FinalScore: input.FinalScore,
		Point:      point,
		IsTest:     input.IsTest,
	}

	// 3. 写入账本
	if err := tx.Create(&newResult).Error; err != nil {
		return nil, fmt.Errorf("无法写入对局记录: %w", err)
	}

	// 4. 非测试记录在同一事务中增量更新所属用户的Running Total，并发放雀庄经验
	if !input.IsTest {
		if err := adjustTotalTx(tx, input.UserID, point); err != nil {
			return nil, err
		}
		if err := user.AddExperienceTx(tx, input.UserID, user.CategoryMahjong, mahjongExpPerGame); err != nil {
			return nil, err
		}
	}

	return &newResult, nil
}

// adjustTotalTx 在事务中将用户的Running Total增减delta。
// delta为零时同样执行UPDATE：受影响行数是唯一的所有者存在性校验，
// 为零说明用户不存在，整个事务随之回滚。
func adjustTotalTx(tx *gorm.DB, userID uint, delta int) error {
	result := tx.Model(&user.User{}).Where("id = ?", userID).
		Update("total_pt", gorm.Expr("total_pt + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("无法更新用户 %d 的累计积分: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOwnerNotFound
	}
	return nil
}

// MatchEntry 描述一场对局中单个参与者的成绩。
// FinalScore为nil表示省略：四条记录中最多允许一条省略，由其余三条推断。
type MatchEntry struct {
	UserID     uint
	Rank       int
	FinalScore *int
}

// SubmitMatch 将一场完整对局的四条结果作为一个批次写入。
// 顺位必须恰好覆盖{1,2,3,4}各一次；持点总和必须等于100000
// （恰好省略一条时无条件推断补齐）。四条记录共享一个事务，
// 任何一条失败都会回滚整个批次。
func SubmitMatch(entries []MatchEntry, isTest bool) ([]*GameResult, error) {
	// 1. 批次结构校验
	if len(entries) != 4 {
		return nil, ErrMatchSizeMismatch
	}

	seen := map[int]bool{}
	for _, e := range entries {
		if !ValidRank(e.Rank) {
			return nil, ErrInvalidRank
		}
		if seen[e.Rank] {
			return nil, ErrRanksNotCovered
		}
		seen[e.Rank] = true
	}

	// 2. 持点校验与推断
	missing := -1
	sum := 0
	for i, e := range entries {
		if e.FinalScore == nil {
			if missing >= 0 {
				return nil, ErrTooManyMissing
			}
			missing = i
			continue
		}
		sum += *e.FinalScore
	}

	scores := make([]int, 4)
	for i, e := range entries {
		if e.FinalScore != nil {
			scores[i] = *e.FinalScore
		}
	}
	if missing >= 0 {
		scores[missing] = matchScoreTotal - sum
	} else if sum != matchScoreTotal {
		return nil, ErrScoreSumMismatch
	}

	// 3. 四条记录走单条提交路径，共享同一个事务
	results := make([]*GameResult, 0, 4)
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		for i, e := range entries {
			r, err := submitResultTx(tx, SubmitInput{
				UserID:     e.UserID,
				Rank:       e.Rank,
				FinalScore: scores[i],
				IsTest:     isTest,
			})
			if err != nil {
				return err
			}
			results = append(results, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 4. 提交后刷新缓存
	if !isTest {
		owners := make([]uint, 0, 4)
		for _, r := range results {
			owners = append(owners, r.UserID)
		}
		RefreshAfterWrite(owners, []string{jstime.MonthString(results[0].CreatedAt)})
	}
	return results, nil
}

// CorrectionPatch 描述一次对局记录的修正请求。
// nil字段表示保持原值。
type CorrectionPatch struct {
	Rank       *int
	FinalScore *int
	OwnerID    *uint
	IsTest     *bool
}

// CorrectResult 修正一条对局记录，并在同一事务中按对照表调节Running Total：
//
//	真实→真实(同主):   所有者 += 新积分-旧积分
//	真实→真实(换主):   旧主 -= 旧积分；新主 += 新积分
//	真实→测试:        旧主 -= 旧积分（移出真实统计）
//	测试→真实:        新主 += 新积分（纳入真实统计）
//	测试→测试:        Running Total不变
//
// 积分总是从生效后的(顺位, 持点)重新导出。
func CorrectResult(id uint, patch CorrectionPatch) (*GameResult, error) {
	var updated *GameResult
	var touchedReal bool
	var oldOwnerID uint

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		// 1. 锁定并加载现有记录
		var existing GameResult
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrResultNotFound
			}
			return fmt.Errorf("无法加载对局记录 %d: %w", id, err)
		}
		oldOwnerID = existing.UserID

		// 2. 省略的字段取原值
		newRank := existing.Rank
		if patch.Rank != nil {
			newRank = *patch.Rank
		}
		newScore := existing.FinalScore
		if patch.FinalScore != nil {
			newScore = *patch.FinalScore
		}
		newOwner := existing.UserID
		if patch.OwnerID != nil {
			newOwner = *patch.OwnerID
		}
		newIsTest := existing.IsTest
		if patch.IsTest != nil {
			newIsTest = *patch.IsTest
		}

		if !ValidRank(newRank) {
			return ErrInvalidRank
		}

		// 3. 重新导出积分
		oldPoint := existing.Point
		newPoint := CalcPoint(newRank, newScore)

		// 4. 按对照表调节Running Total
		wasReal := !existing.IsTest
		nowReal := !newIsTest
		touchedReal = wasReal || nowReal

		switch {
		case wasReal && nowReal && existing.UserID == newOwner:
			if err := adjustTotalTx(tx, newOwner, newPoint-oldPoint); err != nil {
				return err
			}
		case wasReal && nowReal:
			if err := adjustTotalTx(tx, existing.UserID, -oldPoint); err != nil {
				return err
			}
			if err := adjustTotalTx(tx, newOwner, newPoint); err != nil {
				return err
			}
		case wasReal && !nowReal:
			if err := adjustTotalTx(tx, existing.UserID, -oldPoint); err != nil {
				return err
			}
		case !wasReal && nowReal:
			if err := adjustTotalTx(tx, newOwner, newPoint); err != nil {
				return err
			}
		case existing.UserID != newOwner:
			// 测试记录换主不调节Running Total，零增量UPDATE只校验新所有者存在
			if err := adjustTotalTx(tx, newOwner, 0); err != nil {
				return err
			}
		}

		// 5. 更新记录本身
		existing.Rank = newRank
		existing.FinalScore = newScore
		existing.UserID = newOwner
		existing.IsTest = newIsTest
		existing.Point = newPoint
		if err := tx.Save(&existing).Error; err != nil {
			return fmt.Errorf("无法保存对局记录 %d: %w", id, err)
		}

		updated = &existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 6. 任何触及真实统计的分支都在提交后触发刷新。
	// 换主时旧所有者的Running Total也被调整过，两侧都要刷新。
	if touchedReal {
		RefreshAfterWrite(touchedOwnerIDs(oldOwnerID, updated.UserID), []string{jstime.MonthString(updated.CreatedAt)})
	}
	return updated, nil
}

// touchedOwnerIDs 返回一次修正涉及的所有者集合：同主一人，换主两人。
func touchedOwnerIDs(oldOwnerID, newOwnerID uint) []uint {
	if oldOwnerID == newOwnerID {
		return []uint{newOwnerID}
	}
	return []uint{oldOwnerID, newOwnerID}
}

// DeleteResult 删除一条对局记录。
// 非测试记录在同一事务中从所属用户的Running Total中扣除其积分。
func DeleteResult(id uint) error {
	var deleted GameResult

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&deleted, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrResultNotFound
			}
			return fmt.Errorf("无法加载对局记录 %d: %w", id, err)
		}

		if err := tx.Delete(&GameResult{}, id).Error; err != nil {
			return fmt.Errorf("无法删除对局记录 %d: %w", id, err)
		}

		if !deleted.IsTest {
			if err := adjustTotalTx(tx, deleted.UserID, -deleted.Point); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !deleted.IsTest {
		RefreshAfterWrite([]uint{deleted.UserID}, []string{jstime.MonthString(deleted.CreatedAt)})
	}
	return nil
}

// RefreshAfterWrite 在账本事务提交后刷新派生数据：
// 按月重算SQL月度聚合，并更新Redis排行榜镜像。
// 全程尽力而为——账本与Running Total已提交，是强一致的可信值；
// 聚合允许短暂陈旧，直到下一次成功刷新或管理员全量重建。
func RefreshAfterWrite(ownerIDs []uint, months []string) {
	for _, month := range months {
		if err := RefreshMonthly(month); err != nil {
			fmt.Printf("警告: 月度聚合 %s 刷新失败（账本已提交，聚合暂时陈旧）: %v\n", month, err)
			continue
		}
		if err := MirrorMonthlyToRedis(month); err != nil {
			fmt.Printf("警告: 月度排行榜 %s 缓存刷新失败: %v\n", month, err)
		}
	}
	for _, ownerID := range ownerIDs {
		if err := MirrorLifetimeEntry(ownerID); err != nil {
			fmt.Printf("警告: 用户 %d 的生涯排行榜缓存刷新失败: %v\n", ownerID, err)
		}
		user.RefreshExpCache(ownerID)
	}
}
