package page

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
	"gorm.io/gorm"
)

// MenuItemBody 定义了菜单条目的写入请求体。id为0时新建，否则更新。
type MenuItemBody struct {
	ID        uint   `json:"id"`
	Name      string `json:"name" binding:"required"`
	Category  string `json:"category" binding:"required"`
	PriceYen  *int   `json:"price_yen" binding:"required"`
	SortOrder int    `json:"sort_order"`
	Available *bool  `json:"available"`
}

// FaqEntryBody 定义了FAQ条目的写入请求体。
type FaqEntryBody struct {
	ID        uint   `json:"id"`
	Question  string `json:"question" binding:"required"`
	Answer    string `json:"answer" binding:"required"`
	SortOrder int    `json:"sort_order"`
}

// HandleGetMenu 处理 GET /api/menu（公开）
func HandleGetMenu(c *gin.Context) {
	var items []MenuItem
	err := database.DB.Where("available = ?", true).
		Order("category ASC").Order("sort_order ASC").Order("id ASC").
		Find(&items).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取菜单失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"menu": items})
}

// HandleGetFaq 处理 GET /api/faq（公开）
func HandleGetFaq(c *gin.Context) {
	var entries []FaqEntry
	err := database.DB.Order("sort_order ASC").Order("id ASC").Find(&entries).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取FAQ失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"faq": entries})
}

// HandleUpsertMenuItem 处理 PUT /admin/menu（管理员）
func HandleUpsertMenuItem(c *gin.Context) {
	var body MenuItemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	item := MenuItem{
		ID:        body.ID,
		Name:      body.Name,
		Category:  body.Category,
		PriceYen:  *body.PriceYen,
		SortOrder: body.SortOrder,
		Available: body.Available == nil || *body.Available,
	}

	var err error
	if item.ID == 0 {
		err = database.DB.Create(&item).Error
	} else {
		result := database.DB.Model(&MenuItem{}).Where("id = ?", item.ID).
			Select("Name", "Category", "PriceYen", "SortOrder", "Available").
			Updates(item)
		err = result.Error
		if err == nil && result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "菜单条目不存在"})
			return
		}
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存菜单条目失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": item.ID})
}

// HandleDeleteMenuItem 处理 DELETE /admin/menu/:id（管理员）
func HandleDeleteMenuItem(c *gin.Context) {
	deleteByID(c, &MenuItem{}, "菜单条目不存在")
}

// HandleUpsertFaqEntry 处理 PUT /admin/faq（管理员）
func HandleUpsertFaqEntry(c *gin.Context) {
	var body FaqEntryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	entry := FaqEntry{
		ID:        body.ID,
		Question:  body.Question,
		Answer:    body.Answer,
		SortOrder: body.SortOrder,
	}

	var err error
	if entry.ID == 0 {
		err = database.DB.Create(&entry).Error
	} else {
		result := database.DB.Model(&FaqEntry{}).Where("id = ?", entry.ID).
			Select("Question", "Answer", "SortOrder").
			Updates(entry)
		err = result.Error
		if err == nil && result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "FAQ条目不存在"})
			return
		}
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存FAQ条目失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": entry.ID})
}

// HandleDeleteFaqEntry 处理 DELETE /admin/faq/:id（管理员）
func HandleDeleteFaqEntry(c *gin.Context) {
	deleteByID(c, &FaqEntry{}, "FAQ条目不存在")
}

// deleteByID 按路径参数中的ID删除一条记录。
func deleteByID(c *gin.Context, model interface{}, notFoundMsg string) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的条目ID"})
		return
	}

	result := database.DB.Delete(model, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除失败"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已删除"})
}
