package breaker

import (
	"time"

	"github.com/KOMKZ/go-yogan-liqguard/event"
)

// Event names
const (
	EventAssetRegistered      = "breaker.asset_registered"
	EventAssetParamsUpdated   = "breaker.asset_params_updated"
	EventProtectedCallers     = "breaker.protected_callers_updated"
	EventFundsLocked          = "breaker.funds_locked"
	EventBreakerTripped       = "breaker.tripped"
	EventBreachCleared        = "breaker.breach_cleared"
	EventGracePeriodStarted   = "breaker.grace_period_started"
	EventFundsClaimed         = "breaker.funds_claimed"
	EventMarkedNotOperational = "breaker.marked_not_operational"
	EventFundsMigrated        = "breaker.funds_migrated"
)

// AssetEvent asset registration or policy change
type AssetEvent struct {
	event.BaseEvent
	Asset               string `json:"asset"`
	MinLiqRetainedBps   uint32 `json:"min_liq_retained_bps"`
	LimitBeginThreshold string `json:"limit_begin_threshold"`
}

// ProtectedCallersEvent callers added or removed
type ProtectedCallersEvent struct {
	event.BaseEvent
	Added   bool     `json:"added"`
	Callers []string `json:"callers"`
}

// FundsEvent locked, claimed or migrated funds
type FundsEvent struct {
	event.BaseEvent
	Asset     string `json:"asset"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// TrippedEvent the breaker tripped on asset
type TrippedEvent struct {
	event.BaseEvent
	Asset string `json:"asset"`
}

// BreachClearedEvent the tripped flag was cleared
type BreachClearedEvent struct {
	event.BaseEvent
	Source string `json:"source"`
}

// GracePeriodEvent admin declared a grace period
type GracePeriodEvent struct {
	event.BaseEvent
	End time.Time `json:"end"`
}

// OperationalEvent the protocol was marked not operational
type OperationalEvent struct {
	event.BaseEvent
	Caller string `json:"caller"`
}

// PartitionKey keeps events of one asset ordered on a partitioned stream
func (e *AssetEvent) PartitionKey() string { return e.Asset }

// PartitionKey implements the event sink key hook
func (e *FundsEvent) PartitionKey() string { return e.Asset }

// PartitionKey implements the event sink key hook
func (e *TrippedEvent) PartitionKey() string { return e.Asset }
