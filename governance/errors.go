package governance

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-liqguard/errcode"
)

// ModuleCode governance module code
const ModuleCode = 34

var (
	// ErrNotAdmin caller is not an admin
	ErrNotAdmin = errcode.Register(errcode.New(ModuleCode, 1, "governance", "error.governance.not_admin", "caller is not an admin", http.StatusForbidden))

	// ErrNotGuardian caller is not a registered guardian
	ErrNotGuardian = errcode.Register(errcode.New(ModuleCode, 2, "governance", "error.governance.not_guardian", "caller is not a guardian", http.StatusForbidden))

	// ErrAlreadyVoted guardian voted on the proposal before
	ErrAlreadyVoted = errcode.Register(errcode.New(ModuleCode, 3, "governance", "error.governance.already_voted", "already voted", http.StatusConflict))

	// ErrProposalAlreadyExecuted proposal is terminal
	ErrProposalAlreadyExecuted = errcode.Register(errcode.New(ModuleCode, 4, "governance", "error.governance.proposal_already_executed", "proposal already executed", http.StatusConflict))

	// ErrThresholdNotMet not enough approvals
	ErrThresholdNotMet = errcode.Register(errcode.New(ModuleCode, 5, "governance", "error.governance.threshold_not_met", "guardian threshold not met", http.StatusConflict))

	// ErrInvalidThreshold threshold outside [1, guardian count]
	ErrInvalidThreshold = errcode.Register(errcode.New(ModuleCode, 6, "governance", "error.governance.invalid_threshold", "invalid guardian threshold", http.StatusBadRequest))

	// ErrProposalExists proposal id already used
	ErrProposalExists = errcode.Register(errcode.New(ModuleCode, 7, "governance", "error.governance.proposal_exists", "proposal already exists", http.StatusConflict))

	// ErrProposalNotFound unknown proposal id
	ErrProposalNotFound = errcode.Register(errcode.New(ModuleCode, 8, "governance", "error.governance.proposal_not_found", "proposal not found", http.StatusNotFound))

	// ErrInvalidArgument empty guardian or proposal id
	ErrInvalidArgument = errcode.Register(errcode.New(ModuleCode, 9, "governance", "error.governance.invalid_argument", "invalid guardian or proposal id", http.StatusBadRequest))

	// ErrInvalidConfig council dependencies missing
	ErrInvalidConfig = errcode.Register(errcode.New(ModuleCode, 10, "governance", "error.governance.invalid_config", "invalid governance config", http.StatusInternalServerError))

	// ErrDuplicateGuardian guardian listed more than once
	ErrDuplicateGuardian = errcode.Register(errcode.New(ModuleCode, 11, "governance", "error.governance.duplicate_guardian", "duplicate guardian", http.StatusBadRequest))
)
