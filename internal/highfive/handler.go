package highfive

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/user"
)

// SendRequestBody 定义了发送击掌的请求体。
type SendRequestBody struct {
	ReceiverName string `json:"receiver_name" binding:"required"`
}

// HandleSend 处理 POST /api/highfives
func HandleSend(c *gin.Context) {
	var body SendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	err := Send(user.CurrentUserID(c), body.ReceiverName)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
		case errors.Is(err, ErrSelfHighfive):
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrSelfHighfive.Error()})
		case errors.Is(err, ErrAlreadySent):
			c.JSON(http.StatusConflict, gin.H{"error": ErrAlreadySent.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "发送击掌失败"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "击掌成功"})
}

// HandleGetReceived 处理 GET /api/highfives/received
func HandleGetReceived(c *gin.Context) {
	summary, err := GetReceived(user.CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取击掌统计失败"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
