package upload

import (
	"fmt"
	"time"
)

// PersistenceError 写入上传记录失败，邮件步骤未执行
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist upload: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotificationError 记录已入库但回信发送失败
type NotificationError struct {
	UploadID uint
	Err      error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("upload %d stored but notification failed: %v", e.UploadID, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// ThrottledError 收件人仍在冷却期内，未做任何写入
type ThrottledError struct {
	Email string
	// RetryAfter 距冷却期结束的剩余时间
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return "recipient is in cooldown"
}
