package user

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDKey 是Gin上下文中存放已认证用户ID的键。
	UserIDKey = "userID"
	// RoleKey 是Gin上下文中存放已认证用户角色的键。
	RoleKey = "userRole"
)

// RequireAuth 解析Authorization头中的Bearer令牌。
// 验证通过后将用户ID和角色放入Gin上下文；否则返回401。
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "缺少登录令牌"})
			return
		}

		claims, err := ParseToken(strings.TrimPrefix(header, prefix))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "登录令牌无效或已过期"})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireAdmin 在RequireAuth之后使用，只放行管理员。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "需要管理员权限"})
			return
		}
		c.Next()
	}
}

// CurrentUserID 从Gin上下文中取出已认证的用户ID。
func CurrentUserID(c *gin.Context) uint {
	id, _ := c.Get(UserIDKey)
	uid, _ := id.(uint)
	return uid
}

// IsAdmin 报告当前请求是否来自管理员。
func IsAdmin(c *gin.Context) bool {
	role, _ := c.Get(RoleKey)
	r, _ := role.(Role)
	return r == RoleAdmin
}
