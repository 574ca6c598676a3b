package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/highfive"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/mahjong"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/minigame"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/page"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/health"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/metadata"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/user"
)

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", handleHealthz)

	api := router.Group("/api")
	{
		// 认证相关的路由 /api/auth
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", user.HandleRegister)
			authRoutes.POST("/login", user.HandleLogin)
		}

		// 用户资料与经验排行 /api/users
		userRoutes := api.Group("/users")
		{
			userRoutes.GET("/me", user.RequireAuth(), user.HandleGetMe)
			userRoutes.PATCH("/me", user.RequireAuth(), user.HandleUpdateProfile)
			userRoutes.GET("/exp-ranking", user.HandleExpRanking)
		}

		// 雀庄账本与排行榜 /api/mahjong
		mahjongRoutes := api.Group("/mahjong")
		{
			// 排行榜是公开的
			mahjongRoutes.GET("/monthly", mahjong.HandleMonthlyRanking)
			mahjongRoutes.GET("/lifetime", mahjong.HandleLifetimeRanking)

			// 账本写入；单条提交的管理员限定在handler内部完成
			mahjongRoutes.POST("/games", user.RequireAuth(), mahjong.HandleSubmitGame)
			mahjongRoutes.POST("/matches", user.RequireAuth(), user.RequireAdmin(), mahjong.HandleSubmitMatch)
			mahjongRoutes.PATCH("/games/:id", user.RequireAuth(), user.RequireAdmin(), mahjong.HandleCorrectGame)
			mahjongRoutes.DELETE("/games/:id", user.RequireAuth(), user.RequireAdmin(), mahjong.HandleDeleteGame)
			mahjongRoutes.GET("/games", user.RequireAuth(), user.RequireAdmin(), mahjong.HandleListGames)
		}

		// 小游戏 /api/minigame
		minigameRoutes := api.Group("/minigame", user.RequireAuth())
		{
			minigameRoutes.GET("/allowance", minigame.HandleGetAllowance)
			minigameRoutes.POST("/scores", minigame.HandleSubmitScore)
			minigameRoutes.POST("/claim", minigame.HandleRedeemBonus)
		}

		// 击掌 /api/highfives
		highfiveRoutes := api.Group("/highfives", user.RequireAuth())
		{
			highfiveRoutes.POST("", highfive.HandleSend)
			highfiveRoutes.GET("/received", highfive.HandleGetReceived)
		}

		// CMS内容页（公开只读）
		api.GET("/menu", page.HandleGetMenu)
		api.GET("/faq", page.HandleGetFaq)
	}

	// 管理员专用路由 /admin
	admin := router.Group("/admin", user.RequireAuth(), user.RequireAdmin())
	{
		admin.POST("/mahjong/rebuild-monthly", mahjong.HandleRebuildMonthly)
		admin.POST("/minigame/bonus-token", minigame.HandleIssueBonusToken)

		admin.PUT("/menu", page.HandleUpsertMenuItem)
		admin.DELETE("/menu/:id", page.HandleDeleteMenuItem)
		admin.PUT("/faq", page.HandleUpsertFaqEntry)
		admin.DELETE("/faq/:id", page.HandleDeleteFaqEntry)
	}
}

// handleHealthz 返回系统健康状态和最近一次月度聚合全量重建的时刻。
func handleHealthz(c *gin.Context) {
	resp := gin.H{"status": health.GetState().String()}
	if at, err := metadata.GetLastMonthlyRebuildAt(database.DB); err == nil && !at.IsZero() {
		resp["last_monthly_rebuild_at"] = at
	}
	c.JSON(http.StatusOK, resp)
}
