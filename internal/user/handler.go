package user

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// RegisterRequestBody 定义了注册请求的JSON结构
type RegisterRequestBody struct {
	DisplayName string `json:"display_name" binding:"required,min=1,max=64"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
}

// LoginRequestBody 定义了登录请求的JSON结构
type LoginRequestBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequestBody 定义了资料更新请求的JSON结构
type UpdateProfileRequestBody struct {
	Bio      *string `json:"bio"`
	IsPublic *bool   `json:"is_public"`
	Avatar   []byte  `json:"avatar"` // base64编码的图片字节
}

// profileJSON 将用户模型转换为对外的资料响应，不包含密码哈希等敏感字段。
func profileJSON(u *User) gin.H {
	return gin.H{
		"id":           u.ID,
		"uuid":         u.UUID,
		"display_name": u.DisplayName,
		"role":         u.Role,
		"is_public":    u.IsPublic,
		"bio":          u.Bio,
		"total_exp":    u.TotalExp,
		"total_pt":     u.TotalPt,
		"exp": gin.H{
			"mahjong":  u.MahjongExp,
			"board":    u.BoardExp,
			"puzzle":   u.PuzzleExp,
			"breakout": u.BreakoutExp,
			"social":   u.SocialExp,
			"visit":    u.VisitExp,
		},
	}
}

// HandleRegister 处理 POST /api/auth/register
func HandleRegister(c *gin.Context) {
	var body RegisterRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	newUser, err := Register(body.DisplayName, body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "注册失败"})
		return
	}

	tokenString, err := IssueToken(newUser)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "注册失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": tokenString, "user": profileJSON(newUser)})
}

// HandleLogin 处理 POST /api/auth/login
func HandleLogin(c *gin.Context) {
	var body LoginRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	u, err := Authenticate(body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidLogin) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "登录失败"})
		return
	}

	tokenString, err := IssueToken(u)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "登录失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": tokenString, "user": profileJSON(u)})
}

// HandleGetMe 处理 GET /api/users/me
func HandleGetMe(c *gin.Context) {
	u, err := FindByID(CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
		return
	}
	c.JSON(http.StatusOK, profileJSON(u))
}

// HandleUpdateProfile 处理 PATCH /api/users/me
func HandleUpdateProfile(c *gin.Context) {
	var body UpdateProfileRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	u, err := UpdateProfile(CurrentUserID(c), ProfilePatch{
		Bio:         body.Bio,
		IsPublic:    body.IsPublic,
		AvatarImage: body.Avatar,
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新资料失败"})
		return
	}
	c.JSON(http.StatusOK, profileJSON(u))
}

// HandleExpRanking 处理 GET /api/users/exp-ranking
func HandleExpRanking(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的limit参数"})
		return
	}

	entries, err := GetExpRanking(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取经验排行榜失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries})
}
