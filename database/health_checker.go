package database

import (
	"context"
	"fmt"
)

// HealthChecker 数据库健康检查器
type HealthChecker struct {
	manager *Manager
}

// NewHealthChecker 创建数据库健康检查器
func NewHealthChecker(manager *Manager) *HealthChecker {
	return &HealthChecker{manager: manager}
}

// Name 检查项名称
func (h *HealthChecker) Name() string {
	return "database"
}

// Check pings every instance
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.manager == nil {
		return fmt.Errorf("database manager not initialized")
	}
	if len(h.manager.Names()) == 0 {
		return fmt.Errorf("no database instances configured")
	}
	return h.manager.Ping(ctx)
}
