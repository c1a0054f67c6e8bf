package tickwindow

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-liqguard/errcode"
)

// ModuleCode tick window errors: 31xxxx
const ModuleCode = 31

var (
	// ErrInvalidTickLength tick length must be positive
	ErrInvalidTickLength = errcode.Register(errcode.New(ModuleCode, 1,
		"tickwindow", "error.tickwindow.invalid_tick_length", "tick length must be greater than zero",
		http.StatusBadRequest))

	// ErrInvalidTick the bucket id 0 is reserved for "empty list"
	ErrInvalidTick = errcode.Register(errcode.New(ModuleCode, 2,
		"tickwindow", "error.tickwindow.invalid_tick", "timestamp falls into the reserved tick 0",
		http.StatusBadRequest))

	// ErrStaleTick event is older than the newest open bucket
	ErrStaleTick = errcode.Register(errcode.New(ModuleCode, 3,
		"tickwindow", "error.tickwindow.stale_tick", "event timestamp is older than the current tail tick",
		http.StatusConflict))

	// ErrCorruptList head/tail cursors disagree with the stored links
	ErrCorruptList = errcode.Register(errcode.New(ModuleCode, 4,
		"tickwindow", "error.tickwindow.corrupt_list", "tick list links are inconsistent",
		http.StatusInternalServerError))
)
