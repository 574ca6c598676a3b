package startup

import (
	"fmt"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/highfive"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/mahjong"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/minigame"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/page"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/metadata"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/user"
)

// InitializeApplication 是应用首次启动时执行的总入口：
// 按依赖顺序迁移各模块的表结构并预热Redis缓存。
func InitializeApplication() error {
	fmt.Println("开始应用首次初始化...")

	if err := metadata.PrimeDB(); err != nil {
		return err
	}
	if err := user.PrimeCachedDB(); err != nil {
		return err
	}
	if err := mahjong.PrimeCachedDB(); err != nil {
		return err
	}
	if err := minigame.PrimeDB(); err != nil {
		return err
	}
	if err := highfive.PrimeDB(); err != nil {
		return err
	}
	if err := page.PrimeDB(); err != nil {
		return err
	}

	fmt.Println("应用初始化完成！")
	return nil
}

// RebuildCache 是一个专门用于在运行时热重建Redis缓存的函数。
// 数据库是唯一可信来源，排行榜镜像可以随时从它整体重建。
func RebuildCache() error {
	fmt.Println("开始缓存热重建...")

	if err := user.WarmupCache(); err != nil {
		return err
	}
	if err := mahjong.WarmupCache(); err != nil {
		return err
	}

	fmt.Println("缓存热重建完成。")
	return nil
}
