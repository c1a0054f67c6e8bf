// Package breaker 提供流动性熔断控制器
//
// 设计理念：
//   - 受保护合约上报每一笔流入/流出，由 limiter 判断窗口内净流出是否突破保留比例
//   - 突破后熔断：调用方可选择直接失败，或将资金锁定给收款人待恢复后领取
//   - 恢复途径相互独立：冷却期解除、管理员解除、守护者多签解除
//   - 托管、权限、暂停开关和时钟均由宿主注入
package breaker

import (
	"context"
	"time"

	"github.com/holiman/uint256"
)

// NativeAsset 原生资产标识
const NativeAsset = "native"

// Custody 资金托管
type Custody interface {
	// Transfer 从托管账户向 recipient 转出 amount，失败时不重试
	Transfer(ctx context.Context, asset, recipient string, amount *uint256.Int) error

	// BalanceOf 查询 holder 持有的 asset 余额
	BalanceOf(ctx context.Context, asset, holder string) (*uint256.Int, error)
}

// AccessControl 管理员判定
type AccessControl interface {
	IsAdmin(ctx context.Context, caller string) bool
}

// PauseFlag 宿主暂停开关
type PauseFlag interface {
	IsPaused() bool
	SetPaused(paused bool)
}

// Clock 时钟（clockwork.Clock 满足该接口）
type Clock interface {
	Now() time.Time
}

// Outcome 流出处理结果
type Outcome int

const (
	// OutcomeSkipped 零金额，什么都没做
	OutcomeSkipped Outcome = iota

	// OutcomeTransferred 已转给收款人
	OutcomeTransferred

	// OutcomeLocked 已锁定，收款人待恢复后领取
	OutcomeLocked
)

// String 结果名称
func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeTransferred:
		return "transferred"
	case OutcomeLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// MarshalText 以名称序列化
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Recovery sources
const (
	SourceAdmin      = "admin"
	SourceCooldown   = "cooldown"
	SourceGovernance = "governance"
)

// Snapshot 控制器状态快照
type Snapshot struct {
	RateLimited      bool      `json:"rate_limited"`
	LastTrippedAt    time.Time `json:"last_tripped_at"`
	GracePeriodEnd   time.Time `json:"grace_period_end"`
	Operational      bool      `json:"operational"`
	ProtectedCallers []string  `json:"protected_callers"`
}
