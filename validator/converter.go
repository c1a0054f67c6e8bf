// Package validator 提供统一的参数校验和错误转换
package validator

import (
	"errors"

	"github.com/KOMKZ/go-yogan-liqguard/errcode"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ModuleCode validator 模块码
const ModuleCode = 38

// ErrValidationFailed 参数校验失败，字段明细在 Data()["fields"]
var ErrValidationFailed = errcode.Register(errcode.New(
	ModuleCode, 1, "validator", "error.validator.validation_failed", "参数校验失败", 400,
))

// Validatable 可校验接口
type Validatable interface {
	Validate() error
}

// ValidateRequest 校验请求，ozzo 错误转换为 LayeredError，其他错误原样返回
func ValidateRequest(req Validatable) error {
	err := req.Validate()
	if err == nil {
		return nil
	}

	var validationErrs validation.Errors
	if errors.As(err, &validationErrs) {
		return ConvertValidationError(validationErrs)
	}
	return err
}

// ConvertValidationError 提取字段级错误
func ConvertValidationError(validationErrs validation.Errors) error {
	fields := make(map[string]string, len(validationErrs))
	for field, fieldErr := range validationErrs {
		if fieldErr != nil {
			fields[field] = fieldErr.Error()
		}
	}
	return ErrValidationFailed.WithData("fields", fields)
}
