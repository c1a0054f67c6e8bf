// Package limiter tracks per-asset liquidity and decides whether the recent
// net outflow breaches the retained-liquidity policy.
//
// Each asset owns a State (policy, aggregate counters, window cursor) and a
// chain of tick nodes, both kept in a Store supplied by the host. The Engine
// holds no asset data of its own.
package limiter

import (
	"context"

	"github.com/KOMKZ/go-yogan-liqguard/signed"
	"github.com/KOMKZ/go-yogan-liqguard/tickwindow"
	"github.com/holiman/uint256"
)

// Status outcome of a breach evaluation
type Status int

const (
	// StatusUninitialized asset never registered
	StatusUninitialized Status = iota
	// StatusInactive enforcement skipped (liquidity negative or below the floor)
	StatusInactive
	// StatusOk retained liquidity within policy
	StatusOk
	// StatusTriggered retained liquidity below policy
	StatusTriggered
)

// String status name
func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusInactive:
		return "inactive"
	case StatusOk:
		return "ok"
	case StatusTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// Policy per-asset enforcement parameters
type Policy struct {
	// MinLiqRetainedBps minimum share of the baseline that must remain, 1..10000
	MinLiqRetainedBps uint32

	// LimitBeginThreshold below this liquidity nothing is enforced
	LimitBeginThreshold uint256.Int
}

// NewPolicy builds a policy from a uint64 floor
func NewPolicy(bps uint32, threshold uint64) Policy {
	return Policy{MinLiqRetainedBps: bps, LimitBeginThreshold: *uint256.NewInt(threshold)}
}

// State everything persisted for one asset
type State struct {
	Asset       string
	Policy      Policy
	LiqTotal    signed.Int
	LiqInPeriod signed.Int
	List        tickwindow.Cursor
	Initialized bool
}

// ConfirmedLiquidity liquidity whose flows have left the window
func (s State) ConfirmedLiquidity() signed.Int {
	return s.LiqTotal.Sub(s.LiqInPeriod)
}

// Baseline estimate of the window's peak liquidity
func (s State) Baseline() signed.Int {
	if s.LiqInPeriod.IsNegative() {
		return s.LiqTotal.Sub(s.LiqInPeriod)
	}
	return s.LiqTotal.Add(s.LiqInPeriod)
}

// MinRequired liquidity that must remain under the policy
func (s State) MinRequired() signed.Int {
	return s.Baseline().MulBps(s.Policy.MinLiqRetainedBps)
}

// Evaluate computes the breach status from the counters alone
func (s State) Evaluate() Status {
	if !s.Initialized {
		return StatusUninitialized
	}
	if s.LiqTotal.IsNegative() || s.LiqTotal.Mag.Lt(&s.Policy.LimitBeginThreshold) {
		return StatusInactive
	}
	if s.LiqTotal.Lt(s.MinRequired()) {
		return StatusTriggered
	}
	return StatusOk
}

// SyncResult outcome of one window sync
type SyncResult struct {
	Evicted signed.Int
	Steps   int
	List    tickwindow.Cursor
}

// Store per-asset state and tick nodes (Strategy Pattern)
type Store interface {
	tickwindow.NodeStore

	// LoadState returns ok=false when the asset has no state
	LoadState(ctx context.Context, asset string) (State, bool, error)

	// SaveState upserts the asset state
	SaveState(ctx context.Context, state State) error

	// Assets lists registered assets in ascending order
	Assets(ctx context.Context) ([]string, error)

	// Close releases backend resources the store owns
	Close() error
}

// Transactional stores apply a group of writes all or nothing.
// fn writes through tx; nothing is visible when fn or the commit fails.
type Transactional interface {
	Atomically(ctx context.Context, fn func(tx Store) error) error
}

// StoreType storage type
type StoreType string

const (
	// StoreTypeMemory in-process maps
	StoreTypeMemory StoreType = "memory"

	// StoreTypeRedis Redis hashes
	StoreTypeRedis StoreType = "redis"

	// StoreTypeDatabase SQL tables through gorm
	StoreTypeDatabase StoreType = "database"
)
