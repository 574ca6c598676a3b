package minigame

import (
	"errors"
	"fmt"
	"time"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/user"
	"github.com/riichi-cafe/mahjong-cafe-backend/pkg/jstime"
	"github.com/riichi-cafe/mahjong-cafe-backend/pkg/token"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrLimitReached 表示当日游玩额度已被用尽。
	// 这是预期内的拒绝，handler将其与普通失败区分开，并附带额度重置时刻。
	ErrLimitReached = errors.New("今日游玩次数已用完")

	// ErrAlreadyClaimed 表示一次性奖励在当日已被兑换过。
	ErrAlreadyClaimed = errors.New("该奖励今日已兑换")

	// ErrInvalidToken 表示奖励令牌签名无效、已过期或与当日不匹配。
	ErrInvalidToken = errors.New("奖励令牌无效或已过期")
)

// 小游戏的经验奖励参数。
const (
	expPerPlay      = 10 // 每次提交成绩获得的打砖块经验
	expPerBonus     = 30 // 每次兑换一次性奖励获得的经验
	bonusTokenTTL   = 10 * time.Minute
	DefaultCategory = "breakout"
)

// PlaysPerDay 根据累计总经验计算每日游玩额度：
// 500经验以下1次，500至999经验2次，1000经验起3次，上限3次。
func PlaysPerDay(totalExp int) int {
	switch {
	case totalExp < 500:
		return 1
	case totalExp < 1000:
		return 2
	default:
		return 3
	}
}

// Allowance 描述用户在某类别下的当日额度状态。
type Allowance struct {
	PlaysPerDay int       `json:"plays_per_day"`
	Used        int       `json:"used"`
	Remaining   int       `json:"remaining"`
	ResetAt     time.Time `json:"reset_at"`
}

// GetAllowance 返回用户在某类别下的当日额度状态（只读，不消耗）。
func GetAllowance(userID uint, category string) (*Allowance, error) {
	owner, err := user.FindByID(userID)
	if err != nil {
		return nil, err
	}

	now := jstime.Now()
	var used int64
	err = database.DB.Model(&DailyPlayRecord{}).
		Where("user_id = ? AND category = ? AND day = ?", userID, category, jstime.DayString(now)).
		Count(&used).Error
	if err != nil {
		return nil, fmt.Errorf("无法统计当日游玩记录: %w", err)
	}

	allowance := PlaysPerDay(owner.TotalExp)
	remaining := allowance - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return &Allowance{
		PlaysPerDay: allowance,
		Used:        int(used),
		Remaining:   remaining,
		ResetAt:     jstime.NextDayStart(now),
	}, nil
}

// consumePlayTx 在事务中消耗一次当日额度。
// 先用FOR UPDATE锁定用户行，使同一用户的"计数-比较-插入"串行化：
// 没有这把锁，两个并发请求可能都观察到"未达上限"并都插入，突破额度。
func consumePlayTx(tx *gorm.DB, userID uint, category string, now time.Time) error {
	var owner user.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&owner, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.ErrUserNotFound
		}
		return fmt.Errorf("无法锁定用户 %d: %w", userID, err)
	}

	day := jstime.DayString(now)
	var used int64
	err := tx.Model(&DailyPlayRecord{}).
		Where("user_id = ? AND category = ? AND day = ?", userID, category, day).
		Count(&used).Error
	if err != nil {
		return fmt.Errorf("无法统计当日游玩记录: %w", err)
	}

	if int(used) >= PlaysPerDay(owner.TotalExp) {
		return ErrLimitReached
	}

	record := DailyPlayRecord{UserID: userID, Category: category, Day: day}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("无法写入游玩记录: %w", err)
	}
	return nil
}

// ScoreOutcome 是一次成绩提交的结果。
type ScoreOutcome struct {
	BestUpdated bool `json:"best_updated"`
	BestScore   int  `json:"best_score"`
	Remaining   int  `json:"remaining"`
}

// SubmitScore 提交一次小游戏成绩：消耗一次当日额度、更新历史最高分、
// 发放类别经验，全部在一个事务中完成。
// BestUpdated只在新成绩严格高于旧最高分时为true——平分不算刷新。
func SubmitScore(userID uint, category string, score int) (*ScoreOutcome, error) {
	now := jstime.Now()
	outcome := &ScoreOutcome{}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		// 1. 消耗额度（内部已锁定用户行）
		if err := consumePlayTx(tx, userID, category, now); err != nil {
			return err
		}

		// 2. 更新历史最高分。用户行已被锁定，同一用户的读改写是串行的。
		var best BestScore
		err := tx.Where("user_id = ? AND category = ?", userID, category).First(&best).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			best = BestScore{UserID: userID, Category: category, Score: score}
			if err := tx.Create(&best).Error; err != nil {
				return fmt.Errorf("无法写入最高分: %w", err)
			}
			outcome.BestUpdated = true
		case err != nil:
			return fmt.Errorf("无法读取最高分: %w", err)
		case score > best.Score:
			best.Score = score
			if err := tx.Save(&best).Error; err != nil {
				return fmt.Errorf("无法更新最高分: %w", err)
			}
			outcome.BestUpdated = true
		}
		outcome.BestScore = best.Score

		// 3. 发放本次游玩的类别经验
		return user.AddExperienceTx(tx, userID, user.CategoryBreakout, expPerPlay)
	})
	if err != nil {
		return nil, err
	}

	// 4. 提交后刷新经验排名缓存，并回报剩余额度
	user.RefreshExpCache(userID)
	if a, err := GetAllowance(userID, category); err == nil {
		outcome.Remaining = a.Remaining
	}
	return outcome, nil
}

// IssueBonusToken 为(用户, 类别, 今日)签发一个一次性奖励令牌。
func IssueBonusToken(userID uint, category string) (token.ClaimPayload, string, error) {
	payload := token.ClaimPayload{
		UserID:    userID,
		Category:  category,
		Day:       jstime.DayString(jstime.Now()),
		ExpiresAt: time.Now().Add(bonusTokenTTL).Unix(),
	}
	signature, err := token.GenerateClaimSignature(payload)
	if err != nil {
		return token.ClaimPayload{}, "", fmt.Errorf("无法签发奖励令牌: %w", err)
	}
	return payload, signature, nil
}

// RedeemBonus 兑换一次性奖励令牌。
// 签名与当日匹配只是前置校验；(用户, 类别, 日)唯一约束才是
// 防止并发重复兑换的最终仲裁者——重复键错误即"已兑换"。
func RedeemBonus(userID uint, payload token.ClaimPayload, signature string) error {
	// 1. 前置校验：签名、归属、是否当日
	if !token.ValidateClaimSignature(payload, signature) {
		return ErrInvalidToken
	}
	if payload.UserID != userID || payload.Day != jstime.DayString(jstime.Now()) {
		return ErrInvalidToken
	}

	// 2. 插入兑换记录并发放经验，唯一约束裁决并发
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		claim := BonusClaim{UserID: userID, Category: payload.Category, Day: payload.Day}
		if err := tx.Create(&claim).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyClaimed
			}
			return fmt.Errorf("无法写入兑换记录: %w", err)
		}
		return user.AddExperienceTx(tx, userID, user.CategoryBreakout, expPerBonus)
	})
	if err != nil {
		return err
	}

	user.RefreshExpCache(userID)
	return nil
}
