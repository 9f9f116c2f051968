package intake

import "fmt"

// ValidationError 表单缺字段、格式错误或照片过大
// Message 为可直接返回给客户端的本地化文本
type ValidationError struct {
	Field    string
	Message  string
	TooLarge bool
	Err      error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid upload form (field %q): %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid upload form (field %q)", e.Field)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
