package signed

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-liqguard/errcode"
)

// ModuleCode signed arithmetic errors: 30xxxx
const ModuleCode = 30

var (
	// ErrOverflow magnitude exceeds 256 bits
	ErrOverflow = errcode.Register(errcode.New(ModuleCode, 1,
		"signed", "error.signed.overflow", "256-bit magnitude overflow",
		http.StatusUnprocessableEntity))

	// ErrParse malformed decimal amount
	ErrParse = errcode.Register(errcode.New(ModuleCode, 2,
		"signed", "error.signed.parse", "invalid decimal amount",
		http.StatusBadRequest))
)
