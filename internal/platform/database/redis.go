package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/config"
)

// RDB 是一个全局的Redis客户端实例，承载排行榜等可重建的缓存数据
var RDB *redis.Client

// Ctx 是一个全局的上下文，用于Redis操作
var Ctx = context.Background()

// InitRedis 初始化与Redis数据库的连接
func InitRedis(cfg config.RedisConfig) {
	// 创建一个新的Redis客户端
	// 使用从配置文件加载的参数
	RDB = redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 使用Ping命令来测试连接是否成功
	_, err := RDB.Ping(Ctx).Result()
	if err != nil {
		// Redis只承载可从数据库重建的排行榜镜像，连不上时降级运行：
		// 所有缓存路径经RedisReady()跳过，排行榜查询直接走SQL
		fmt.Printf("警告: 无法连接到Redis，排行榜缓存已禁用: %v\n", err)
		RDB = nil
		return
	}

	fmt.Println("Redis 连接成功！")
}

// RedisReady 报告Redis客户端是否已初始化。
// 测试和无Redis的开发环境下为false，排行榜缓存相关操作会被跳过。
func RedisReady() bool {
	return RDB != nil
}
