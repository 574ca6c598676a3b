package mahjong

import (
	"fmt"
	"time"

	"github.com/riichi-cafe/mahjong-cafe-backend/internal/platform/database"
	"github.com/riichi-cafe/mahjong-cafe-backend/pkg/lifecycle"
)

// syncInterval 是排行榜镜像的兜底同步周期。
const syncInterval = 5 * time.Minute

// StartCacheSyncer 启动后台的排行榜镜像同步循环。
// 写入路径上的零散刷新是尽力而为的，单次失败会让镜像暂时漂移；
// 这个循环定期从数据库整体重建镜像，保证漂移是有界的。
func StartCacheSyncer(handle *lifecycle.Handle) {
	defer handle.Close()

	for {
		if err := handle.Sleep(syncInterval); err != nil {
			return // 收到停机信号
		}
		if !database.RedisReady() {
			continue
		}
		if err := WarmupCache(); err != nil {
			fmt.Printf("警告: 排行榜镜像定期同步失败: %v\n", err)
		}
	}
}
