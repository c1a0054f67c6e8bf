package validator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/KOMKZ/go-yogan-liqguard/errcode"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outflowRequest struct {
	Asset     string
	Recipient string
	Amount    string
	Bps       uint32
	Callers   []string
	other     error
}

func (r outflowRequest) Validate() error {
	if r.other != nil {
		return r.other
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Asset, validation.Required),
		validation.Field(&r.Recipient, validation.Required),
		validation.Field(&r.Amount, validation.Required, Amount),
		validation.Field(&r.Bps, Bps),
		validation.Field(&r.Callers, NoBlankItems),
	)
}

func TestValidateRequest_Success(t *testing.T) {
	req := outflowRequest{Asset: "eth", Recipient: "alice", Amount: "1000", Bps: 7000}
	assert.NoError(t, ValidateRequest(req))
}

func TestValidateRequest_FieldErrors(t *testing.T) {
	req := outflowRequest{Asset: "eth", Amount: "-5", Bps: 10001, Callers: []string{"a", " "}}

	err := ValidateRequest(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)

	var le *errcode.LayeredError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 400, le.HTTPStatus())
	assert.Equal(t, "validator", le.Module())
	assert.Equal(t, 380001, le.Code())

	fields, ok := le.Data()["fields"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "Recipient")
	assert.Contains(t, fields, "Amount")
	assert.Contains(t, fields, "Bps")
	assert.Contains(t, fields, "Callers")
	assert.NotContains(t, fields, "Asset")
}

func TestValidateRequest_OtherErrorPassesThrough(t *testing.T) {
	custom := errors.New("custom error")
	err := ValidateRequest(outflowRequest{other: custom})
	assert.Equal(t, custom, err)
}

func TestValidateRequest_WrappedValidationErrors(t *testing.T) {
	inner := validation.Errors{"amount": errors.New("bad")}
	err := ValidateRequest(outflowRequest{other: fmt.Errorf("decode: %w", inner)})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestAmountRule(t *testing.T) {
	assert.NoError(t, validation.Validate("", Amount))
	assert.NoError(t, validation.Validate("0", Amount))
	assert.NoError(t, validation.Validate("115792089237316195423570985008687907853269984665640564039457584007913129639935", Amount))
	assert.Error(t, validation.Validate("115792089237316195423570985008687907853269984665640564039457584007913129639936", Amount))
	assert.Error(t, validation.Validate("1.5", Amount))
	assert.Error(t, validation.Validate("abc", Amount))
}

func TestBpsRule(t *testing.T) {
	assert.NoError(t, validation.Validate(uint32(0), Bps))
	assert.NoError(t, validation.Validate(uint32(10000), Bps))
	assert.Error(t, validation.Validate(uint32(10001), Bps))
	assert.Error(t, validation.Validate(-1, Bps))
}
