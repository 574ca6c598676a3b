package mahjong

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/user"
	"github.com/riichi-cafe/mahjong-cafe-backend/pkg/jstime"
)

// GameRequestBody 定义了提交单条对局结果时，请求体的JSON结构。
// 所属用户可以用user_id或display_name二选一指定。
// final_score使用指针以区分"未提供"和合法的0点。
type GameRequestBody struct {
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
	Rank        int    `json:"rank" binding:"required"`
	FinalScore  *int   `json:"final_score" binding:"required"`
	IsTest      bool   `json:"is_test"`
}

// MatchEntryBody 是一场对局中单个参与者的请求结构。
type MatchEntryBody struct {
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
	Rank        int    `json:"rank" binding:"required"`
	FinalScore  *int   `json:"final_score"`
}

// MatchRequestBody 定义了整场对局提交的请求体。
type MatchRequestBody struct {
	Results []MatchEntryBody `json:"results" binding:"required"`
	IsTest  bool             `json:"is_test"`
}

// CorrectionRequestBody 定义了对局修正请求的JSON结构。nil字段保持原值。
type CorrectionRequestBody struct {
	Rank        *int    `json:"rank"`
	FinalScore  *int    `json:"final_score"`
	UserID      *uint   `json:"user_id"`
	DisplayName *string `json:"display_name"`
	IsTest      *bool   `json:"is_test"`
}

// resolveOwner 将请求中的user_id或display_name解析为用户。
func resolveOwner(userID uint, displayName string) (*user.User, error) {
	if userID > 0 {
		return user.FindByID(userID)
	}
	if displayName != "" {
		return user.FindByName(displayName)
	}
	return nil, user.ErrUserNotFound
}

// respondServiceError 将服务层错误映射为HTTP响应。
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidRank),
		errors.Is(err, ErrRanksNotCovered),
		errors.Is(err, ErrTooManyMissing),
		errors.Is(err, ErrScoreSumMismatch),
		errors.Is(err, ErrMatchSizeMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrResultNotFound), errors.Is(err, ErrOwnerNotFound), errors.Is(err, user.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "处理对局记录失败"})
	}
}

// HandleSubmitGame 处理 POST /api/mahjong/games
// 路由只要求登录；写入账本本身在handler内限定管理员。
func HandleSubmitGame(c *gin.Context) {
	if !user.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "需要管理员权限"})
		return
	}

	var body GameRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	owner, err := resolveOwner(body.UserID, body.DisplayName)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result, err := SubmitResult(SubmitInput{
		UserID:     owner.ID,
		Rank:       body.Rank,
		FinalScore: *body.FinalScore,
		IsTest:     body.IsTest,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": result.ID, "point": result.Point})
}

// HandleSubmitMatch 处理 POST /api/mahjong/matches
func HandleSubmitMatch(c *gin.Context) {
	var body MatchRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	if len(body.Results) != 4 {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrMatchSizeMismatch.Error()})
		return
	}

	entries := make([]MatchEntry, 0, 4)
	for _, r := range body.Results {
		owner, err := resolveOwner(r.UserID, r.DisplayName)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		entries = append(entries, MatchEntry{
			UserID:     owner.ID,
			Rank:       r.Rank,
			FinalScore: r.FinalScore,
		})
	}

	results, err := SubmitMatch(entries, body.IsTest)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	points := make([]gin.H, 0, len(results))
	for _, r := range results {
		points = append(points, gin.H{"id": r.ID, "user_id": r.UserID, "rank": r.Rank, "point": r.Point})
	}
	c.JSON(http.StatusOK, gin.H{"results": points})
}

// HandleCorrectGame 处理 PATCH /api/mahjong/games/:id
func HandleCorrectGame(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的记录ID"})
		return
	}

	var body CorrectionRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	patch := CorrectionPatch{
		Rank:       body.Rank,
		FinalScore: body.FinalScore,
		OwnerID:    body.UserID,
		IsTest:     body.IsTest,
	}
	// display_name指定新所有者时解析为用户ID
	if body.DisplayName != nil {
		owner, err := user.FindByName(*body.DisplayName)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		patch.OwnerID = &owner.ID
	}

	updated, err := CorrectResult(uint(id), patch)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": updated.ID, "point": updated.Point})
}

// HandleDeleteGame 处理 DELETE /api/mahjong/games/:id
func HandleDeleteGame(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的记录ID"})
		return
	}

	if err := DeleteResult(uint(id)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "对局记录已删除"})
}

// HandleListGames 处理 GET /api/mahjong/games（管理员审计列表）
func HandleListGames(c *gin.Context) {
	month := c.Query("month")
	if month != "" && !jstime.ValidMonth(month) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的月份格式，应为YYYY-MM"})
		return
	}

	var isTest *bool
	if testParam := c.Query("test"); testParam != "" {
		parsed, err := strconv.ParseBool(testParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的test参数"})
			return
		}
		isTest = &parsed
	}

	limit := AdminListMaxLimit
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的limit参数"})
			return
		}
		limit = parsed
	}

	rows, err := ListGames(month, isTest, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取审计列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": rows})
}

// HandleMonthlyRanking 处理 GET /api/mahjong/monthly
func HandleMonthlyRanking(c *gin.Context) {
	month := c.DefaultQuery("month", jstime.MonthString(jstime.Now()))
	if !jstime.ValidMonth(month) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的月份格式，应为YYYY-MM"})
		return
	}

	entries, err := GetMonthlyRanking(month)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取月度排行榜失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"month": month, "ranking": entries})
}

// HandleLifetimeRanking 处理 GET /api/mahjong/lifetime
func HandleLifetimeRanking(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的limit参数"})
		return
	}

	entries, err := GetLifetimeRanking(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取生涯排行榜失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries})
}

// HandleRebuildMonthly 处理 POST /admin/mahjong/rebuild-monthly
// 管理员的恢复路径：从账本出发全量重算月度聚合并重建缓存镜像。
func HandleRebuildMonthly(c *gin.Context) {
	if err := RebuildAllMonthly(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "月度聚合重建失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "月度聚合重建完成"})
}
