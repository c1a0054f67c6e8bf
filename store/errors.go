package store

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-liqguard/errcode"
)

// ModuleCode storage errors: 35xxxx
const ModuleCode = 35

var (
	// ErrUnsupportedType unknown store.type
	ErrUnsupportedType = errcode.Register(errcode.New(ModuleCode, 1,
		"store", "error.store.unsupported_type", "unsupported store type",
		http.StatusInternalServerError))

	// ErrMissingBackend the selected backend was not provided
	ErrMissingBackend = errcode.Register(errcode.New(ModuleCode, 2,
		"store", "error.store.missing_backend", "store backend is not configured",
		http.StatusInternalServerError))

	// ErrCorruptRecord a stored record could not be decoded
	ErrCorruptRecord = errcode.Register(errcode.New(ModuleCode, 3,
		"store", "error.store.corrupt_record", "stored record is corrupt",
		http.StatusInternalServerError))
)
