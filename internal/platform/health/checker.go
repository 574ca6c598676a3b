package health

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/startup"
	"github.com/riichi-cafe/mahjong-cafe-backend/pkg/lifecycle"
)

const (
	checkInterval = 5 * time.Second
	pingTimeout   = 2 * time.Second
)

var runIDPattern = regexp.MustCompile(`run_id:([a-f0-9]+)`)

// getRedisRunID 从Redis服务器信息中提取run_id。
// Redis每次重启run_id都会变化，以此判断镜像数据是否还在。
func getRedisRunID() (string, error) {
	ctx, cancel := context.WithTimeout(database.Ctx, pingTimeout)
	defer cancel()
	info, err := database.RDB.Info(ctx, "server").Result()
	if err != nil {
		return "", err
	}
	matches := runIDPattern.FindStringSubmatch(info)
	if len(matches) < 2 {
		return "", fmt.Errorf("无法在Redis INFO中找到run_id")
	}
	return matches[1], nil
}

// InitializeRunID 在应用启动时执行一次，获取并设置初始的run_id。
// Redis未启用时跳过，健康检查循环也会随之空转。
func InitializeRunID() {
	if !database.RedisReady() {
		fmt.Println("Redis未启用，跳过Run ID初始化。")
		return
	}
	fmt.Println("正在获取初始Redis Run ID...")
	runID, err := getRedisRunID()
	if err != nil {
		panic(fmt.Sprintf("无法在启动时获取Redis Run ID，请检查Redis服务: %v", err))
	}
	globalStatus.setInitialRunID(runID)
	fmt.Printf("获取初始Redis Run ID成功: %s\n", runID)
}

// PerformCheck 执行一次完整的健康检查和可能的修复操作。
func PerformCheck() {
	if !database.RedisReady() {
		return
	}
	currentRunID, err := getRedisRunID()
	connected := err == nil

	if globalStatus.assess(connected, currentRunID) {
		// 检测到Redis重启，排行榜镜像已丢失，从数据库整体重建
		rebuildErr := startup.RebuildCache()
		if rebuildErr != nil {
			fmt.Printf("健康检查错误: 缓存热重建失败: %v\n", rebuildErr)
			globalStatus.settleRebuild(false, "")
			return
		}

		// 重建后再次确认run_id，确保重建期间Redis没有再次重启
		idAfterRebuild, err := getRedisRunID()
		if err != nil || idAfterRebuild != currentRunID {
			fmt.Println("健康检查错误: 缓存重建期间Redis状态再次变化，重建无效。")
			globalStatus.settleRebuild(false, "")
			return
		}
		globalStatus.settleRebuild(true, idAfterRebuild)
	}
}

// StartRedisHealthCheck 启动后台的持续健康检查循环。
// 它通过生命周期句柄响应停机信号。
func StartRedisHealthCheck(handle *lifecycle.Handle) {
	defer handle.Close()

	for {
		if err := handle.Sleep(checkInterval); err != nil {
			return // 收到停机信号
		}
		PerformCheck()
	}
}
