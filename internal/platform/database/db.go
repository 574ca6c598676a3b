package database

import (
	"fmt"
	"log"
	"os"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的GORM实例，是账本和用户数据的唯一可信来源
var DB *gorm.DB

// InitDB 初始化数据库连接。
// 配置了Postgres DSN时连接PostgreSQL；否则退回到本地SQLite文件（开发模式）。
func InitDB(cfg config.PostgresConfig) {
	var err error

	// GORM日志配置
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 0,
			LogLevel:      logger.Silent, // 在生产环境中可以设为Silent
			Colorful:      true,
		},
	)

	gormCfg := &gorm.Config{
		Logger:         newLogger,
		TranslateError: true, // 统一将驱动错误翻译为gorm.ErrDuplicatedKey等
	}

	if cfg.DSN != "" {
		DB, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	} else {
		fmt.Println("未配置Postgres DSN，使用本地SQLite（开发模式）。")
		DB, err = gorm.Open(sqlite.Open(cfg.SqlitePath), gormCfg)
	}

	if err != nil {
		fmt.Println("连接数据库失败", err)
		panic(err)
	}

	fmt.Println("数据库连接成功！")
}
