package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/riichi-cafe/mahjong-cafe-backend/api"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/mahjong"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/config"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/health"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/shutdown"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/startup"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/user"
	"github.com/riichi-cafe/mahjong-cafe-backend/pkg/lifecycle"
	"github.com/riichi-cafe/mahjong-cafe-backend/pkg/token"
)

func main() {
	// 1. 加载配置（.env优先于config.yaml的环境变量覆盖）
	if err := godotenv.Load(); err != nil {
		fmt.Println("未找到.env文件，使用现有环境变量。")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("无法加载配置: %v", err))
	}
	gin.SetMode(cfg.Server.Mode)

	// 2. 初始化密钥与存储
	token.GenerateSecretKey()
	user.InitAuth(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	database.InitDB(cfg.Database.Postgres)
	database.InitRedis(cfg.Database.Redis)

	// 3. 阻塞式获取初始Run ID，用于检测Redis重启
	health.InitializeRunID()

	// 4. 执行应用首次启动初始化流程
	if err := startup.InitializeApplication(); err != nil {
		panic(fmt.Sprintf("应用初始化失败，无法启动: %v", err))
	}

	// 5. 启动后台服务：Redis健康检查与排行榜镜像定期同步
	manager := lifecycle.NewManager()
	healthHandle, err := manager.NewServiceHandle("redis-health-check")
	if err != nil {
		panic(err)
	}
	go health.StartRedisHealthCheck(healthHandle)

	syncHandle, err := manager.NewServiceHandle("ranking-cache-syncer")
	if err != nil {
		panic(err)
	}
	go mahjong.StartCacheSyncer(syncHandle)

	// 6. 创建Gin引擎并配置CORS
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.SetupRoutes(r)

	// 7. 启动HTTP服务器，并交由停机协调器接管信号处理
	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	go func() {
		fmt.Printf("服务器已准备就绪，开始监听 %s\n", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic("Failed to start server: " + err.Error())
		}
	}()

	coordinator := shutdown.NewCoordinator(manager)
	coordinator.ListenForSignalsAndShutdown(server)
}
