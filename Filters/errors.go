package Filters

import (
	"errors"
	"fmt"
)

// ErrConfiguration 所有参数错误都可以用 errors.Is 匹配到它
var ErrConfiguration = errors.New("invalid conditioning configuration")

// ErrInsufficientData 数据太短，无法可靠估计工频
var ErrInsufficientData = errors.New("not enough samples")

// ConfigurationError 描述一个非法的滤波/参考参数
// 条件处理从不自动修正参数，而是直接返回这个错误
type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErr(param, format string, args ...any) error {
	return &ConfigurationError{Param: param, Reason: fmt.Sprintf(format, args...)}
}
