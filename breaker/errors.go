package breaker

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-liqguard/errcode"
)

// ModuleCode breaker module code
const ModuleCode = 33

var (
	// ErrNotAdmin caller is not an admin
	ErrNotAdmin = errcode.Register(errcode.New(ModuleCode, 1, "breaker", "error.breaker.not_admin", "caller is not an admin", http.StatusForbidden))

	// ErrNotProtectedCaller caller may not report flows
	ErrNotProtectedCaller = errcode.Register(errcode.New(ModuleCode, 2, "breaker", "error.breaker.not_protected_caller", "caller is not a protected contract", http.StatusForbidden))

	// ErrRateLimited breach in force and the caller asked to revert
	ErrRateLimited = errcode.Register(errcode.New(ModuleCode, 3, "breaker", "error.breaker.rate_limited", "rate limited", http.StatusTooManyRequests))

	// ErrNoLockedFunds nothing to claim
	ErrNoLockedFunds = errcode.Register(errcode.New(ModuleCode, 4, "breaker", "error.breaker.no_locked_funds", "no locked funds", http.StatusNotFound))

	// ErrNotRateLimited override requested while not tripped
	ErrNotRateLimited = errcode.Register(errcode.New(ModuleCode, 5, "breaker", "error.breaker.not_rate_limited", "not rate limited", http.StatusConflict))

	// ErrCooldownNotReached cooldown override too early
	ErrCooldownNotReached = errcode.Register(errcode.New(ModuleCode, 6, "breaker", "error.breaker.cooldown_not_reached", "cooldown period not reached", http.StatusConflict))

	// ErrInvalidGracePeriodEnd grace period must end in the future
	ErrInvalidGracePeriodEnd = errcode.Register(errcode.New(ModuleCode, 7, "breaker", "error.breaker.invalid_grace_period_end", "invalid grace period end", http.StatusBadRequest))

	// ErrNotPausedForMigration migration requires the paused state
	ErrNotPausedForMigration = errcode.Register(errcode.New(ModuleCode, 8, "breaker", "error.breaker.not_paused_for_migration", "protocol is not paused for migration", http.StatusConflict))

	// ErrInvalidRecipient empty recipient
	ErrInvalidRecipient = errcode.Register(errcode.New(ModuleCode, 9, "breaker", "error.breaker.invalid_recipient", "invalid recipient", http.StatusBadRequest))

	// ErrTransferFailed custody refused the transfer
	ErrTransferFailed = errcode.Register(errcode.New(ModuleCode, 10, "breaker", "error.breaker.transfer_failed", "transfer failed", http.StatusBadGateway))

	// ErrProtocolPaused flows are rejected while not operational
	ErrProtocolPaused = errcode.Register(errcode.New(ModuleCode, 11, "breaker", "error.breaker.protocol_paused", "protocol is paused", http.StatusServiceUnavailable))

	// ErrInvalidAmount amount missing
	ErrInvalidAmount = errcode.Register(errcode.New(ModuleCode, 12, "breaker", "error.breaker.invalid_amount", "invalid amount", http.StatusBadRequest))

	// ErrInvalidConfig controller configuration rejected
	ErrInvalidConfig = errcode.Register(errcode.New(ModuleCode, 13, "breaker", "error.breaker.invalid_config", "invalid breaker config", http.StatusInternalServerError))

	// ErrMigrationIncomplete a transfer failed after earlier assets were migrated
	ErrMigrationIncomplete = errcode.Register(errcode.New(ModuleCode, 14, "breaker", "error.breaker.migration_incomplete", "migration incomplete", http.StatusBadGateway))
)
