package shutdown

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riichi-cafe/mahjong-cafe-backend/pkg/lifecycle"
)

// Coordinator 负责编排应用程序的优雅停机流程。
// 它接收外部创建的生命周期管理器，并使用它来协调后台服务的退出。
type Coordinator struct {
	Manager *lifecycle.Manager
}

// NewCoordinator 创建一个新的停机协调器。
func NewCoordinator(mgr *lifecycle.Manager) *Coordinator {
	return &Coordinator{Manager: mgr}
}

// ListenForSignalsAndShutdown 启动信号监听并阻塞，直到停机流程完成。
func (c *Coordinator) ListenForSignalsAndShutdown(server *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 阻塞直到接收到停机信号
	<-sigChan
	fmt.Println("\n收到关闭信号，开始优雅停机...")

	// 关闭HTTP服务器，允许正在进行的请求完成
	httpTimeout := 15 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Gin服务器关闭错误: %v\n", err)
	} else {
		fmt.Println("Gin服务器已关闭。")
	}

	// 等待后台服务退出。数据库是唯一可信来源，
	// 没有需要抢救的内存状态，停机只需让在途事务收尾。
	gracefulTimeout := 10 * time.Second
	fmt.Printf("等待后台服务退出（最多 %v）...\n", gracefulTimeout)
	c.Manager.Shutdown()

	remainingServices := c.Manager.WaitWithTimeout(gracefulTimeout)
	if len(remainingServices) == 0 {
		fmt.Println("所有后台服务已退出。")
	} else {
		fmt.Printf("以下服务未能在期限内退出: %v\n", remainingServices)
	}

	fmt.Println("优雅停机完成。")
}
