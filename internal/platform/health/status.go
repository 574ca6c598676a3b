package health

import (
	"fmt"
	"sync"
)

// State 定义了系统健康状态的枚举类型
type State int

const (
	StateHealthy State = iota
	StateDegraded
	StateRebuilding
)

// String 返回状态的可读名称，用于健康端点的响应。
func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateRebuilding:
		return "rebuilding"
	}
	return "unknown"
}

// statusManager 负责线程安全地管理和提供系统的健康状态。
type statusManager struct {
	mu             sync.RWMutex
	currentState   State
	lastKnownRunID string
}

var globalStatus = &statusManager{
	currentState: StateHealthy,
}

// GetState 返回当前的系统健康状态。
func GetState() State {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.currentState
}

// setInitialRunID 在应用启动时设置初始的Redis run_id。
func (sm *statusManager) setInitialRunID(runID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.lastKnownRunID = runID
}

// assess 评估一次新的健康检查结果，决定下一个状态。
// 返回是否需要触发缓存重建。
func (sm *statusManager) assess(isCurrentlyConnected bool, newRunID string) (needsRebuild bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	switch sm.currentState {
	case StateHealthy:
		if !isCurrentlyConnected {
			sm.currentState = StateDegraded
			fmt.Println("健康检查: Redis连接丢失，系统状态 -> [降级]")
		} else if sm.lastKnownRunID != "" && sm.lastKnownRunID != newRunID {
			// run_id变化说明Redis发生过重启，镜像已丢失
			sm.currentState = StateRebuilding
			needsRebuild = true
			fmt.Printf("健康检查: 检测到Redis重启 (run_id: %s -> %s)，系统状态 -> [重建中]\n", sm.lastKnownRunID, newRunID)
		}
	case StateDegraded:
		if isCurrentlyConnected {
			if sm.lastKnownRunID != "" && sm.lastKnownRunID != newRunID {
				sm.currentState = StateRebuilding
				needsRebuild = true
				fmt.Printf("健康检查: Redis已恢复但发生过重启 (run_id: %s -> %s)，系统状态 -> [重建中]\n", sm.lastKnownRunID, newRunID)
			} else {
				sm.currentState = StateHealthy
				fmt.Println("健康检查: Redis连接恢复，系统状态 -> [健康]")
			}
		}
	case StateRebuilding:
		// 重建流程结束时由settleRebuild负责状态迁移
	}
	return needsRebuild
}

// settleRebuild 在一次重建尝试结束后更新状态。
func (sm *statusManager) settleRebuild(succeeded bool, newRunID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if succeeded {
		sm.currentState = StateHealthy
		sm.lastKnownRunID = newRunID
		fmt.Println("健康检查: 缓存重建成功，系统状态 -> [健康]")
	} else {
		sm.currentState = StateDegraded
		fmt.Println("健康检查: 缓存重建失败，系统状态 -> [降级]")
	}
}
