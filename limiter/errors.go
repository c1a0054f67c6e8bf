package limiter

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-liqguard/errcode"
)

// ModuleCode limiter errors: 32xxxx
const ModuleCode = 32

var (
	// ErrInvalidPolicy 保留比例必须在 (0, 10000] 之间
	ErrInvalidPolicy = errcode.Register(errcode.New(ModuleCode, 1,
		"limiter", "error.limiter.invalid_policy", "min_liq_retained_bps must be in (0, 10000]",
		http.StatusBadRequest))

	// ErrAlreadyInitialized 资产已注册
	ErrAlreadyInitialized = errcode.Register(errcode.New(ModuleCode, 2,
		"limiter", "error.limiter.already_initialized", "asset limiter already initialized",
		http.StatusConflict))

	// ErrNotInitialized 资产未注册
	ErrNotInitialized = errcode.Register(errcode.New(ModuleCode, 3,
		"limiter", "error.limiter.not_initialized", "asset limiter not initialized",
		http.StatusNotFound))
)
