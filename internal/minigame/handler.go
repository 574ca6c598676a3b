package minigame

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/user"
	"github.com/riichi-cafe/mahjong-cafe-backend/pkg/token"
)

// ScoreRequestBody 定义了成绩提交的请求体。
// score使用指针以区分"未提供"和合法的0分。
type ScoreRequestBody struct {
	Category string `json:"category"`
	Score    *int   `json:"score" binding:"required"`
}

// ClaimRequestBody 定义了一次性奖励兑换的请求体：
// 令牌payload的各字段加上服务器签名。
type ClaimRequestBody struct {
	UserID    uint   `json:"u" binding:"required"`
	Category  string `json:"c" binding:"required"`
	Day       string `json:"d" binding:"required"`
	ExpiresAt int64  `json:"e" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// BonusTokenRequestBody 定义了管理员签发奖励令牌的请求体。
type BonusTokenRequestBody struct {
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
}

// HandleGetAllowance 处理 GET /api/minigame/allowance
func HandleGetAllowance(c *gin.Context) {
	category := c.DefaultQuery("category", DefaultCategory)

	allowance, err := GetAllowance(user.CurrentUserID(c), category)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取额度失败"})
		return
	}
	c.JSON(http.StatusOK, allowance)
}

// HandleSubmitScore 处理 POST /api/minigame/scores
// 额度用尽返回429，并附带额度重置时刻，前端应视为预期内的拒绝。
func HandleSubmitScore(c *gin.Context) {
	var body ScoreRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	if *body.Score < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "成绩不能为负数"})
		return
	}
	category := body.Category
	if category == "" {
		category = DefaultCategory
	}

	userID := user.CurrentUserID(c)
	outcome, err := SubmitScore(userID, category, *body.Score)
	if err != nil {
		switch {
		case errors.Is(err, ErrLimitReached):
			allowance, allowErr := GetAllowance(userID, category)
			resp := gin.H{"error": ErrLimitReached.Error()}
			if allowErr == nil {
				resp["reset_at"] = allowance.ResetAt
			}
			c.JSON(http.StatusTooManyRequests, resp)
		case errors.Is(err, user.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "提交成绩失败"})
		}
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// HandleRedeemBonus 处理 POST /api/minigame/claim
func HandleRedeemBonus(c *gin.Context) {
	var body ClaimRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	payload := token.ClaimPayload{
		UserID:    body.UserID,
		Category:  body.Category,
		Day:       body.Day,
		ExpiresAt: body.ExpiresAt,
	}
	err := RedeemBonus(user.CurrentUserID(c), payload, body.Signature)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken):
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidToken.Error()})
		case errors.Is(err, ErrAlreadyClaimed):
			c.JSON(http.StatusConflict, gin.H{"error": ErrAlreadyClaimed.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "兑换失败"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "奖励兑换成功"})
}

// HandleIssueBonusToken 处理 POST /admin/minigame/bonus-token（管理员）
// 店员在柜台为到店用户签发当日有效的一次性奖励令牌。
func HandleIssueBonusToken(c *gin.Context) {
	var body BonusTokenRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	var target *user.User
	var err error
	if body.UserID > 0 {
		target, err = user.FindByID(body.UserID)
	} else {
		target, err = user.FindByName(body.DisplayName)
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
		return
	}

	category := body.Category
	if category == "" {
		category = DefaultCategory
	}

	payload, signature, err := IssueBonusToken(target.ID, category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "签发奖励令牌失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payload": payload, "signature": signature})
}
