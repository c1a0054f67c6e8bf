package validator

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/holiman/uint256"
)

var (
	errAmount = validation.NewError("validation_is_amount", "must be a non-negative decimal integer below 2^256")
	errBps    = validation.NewError("validation_is_bps", "must be between 0 and 10000")
	errBlank  = validation.NewError("validation_no_blank_item", "must not contain blank entries")
)

// Amount checks a decimal uint256 string. Empty values pass; combine with validation.Required.
var Amount = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := uint256.FromDecimal(s); err != nil {
		return errAmount
	}
	return nil
})

// Bps checks a basis-point value
var Bps = validation.By(func(value interface{}) error {
	switch v := value.(type) {
	case uint32:
		if v > 10000 {
			return errBps
		}
	case int:
		if v < 0 || v > 10000 {
			return errBps
		}
	}
	return nil
})

// NoBlankItems rejects lists containing empty or whitespace-only strings
var NoBlankItems = validation.By(func(value interface{}) error {
	items, _ := value.([]string)
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			return errBlank
		}
	}
	return nil
})
