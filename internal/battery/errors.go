package battery

import (
	"errors"
	"fmt"
)

// ErrInvalidInput 所有 InvalidInputError 都可以用 errors.Is 匹配到它
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError 输入无法进行任何有意义的计算
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}
