package config

// Validator 各配置 section 实现
type Validator interface {
	Validate() error
}

// ValidateAll 按顺序校验，返回第一个错误；nil 项跳过
func ValidateAll(validators ...Validator) error {
	for _, v := range validators {
		if v == nil {
			continue
		}
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
