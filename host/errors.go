package host

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-liqguard/errcode"
)

// ModuleCode host module code
const ModuleCode = 37

var (
	// ErrInsufficientBalance custodian balance too low
	ErrInsufficientBalance = errcode.Register(errcode.New(ModuleCode, 1, "host", "error.host.insufficient_balance", "insufficient balance", http.StatusConflict))

	// ErrInvalidAmount nil amount
	ErrInvalidAmount = errcode.Register(errcode.New(ModuleCode, 2, "host", "error.host.invalid_amount", "invalid amount", http.StatusBadRequest))
)
