package models

import "time"

// DeliveryStatus 回信邮件的投递状态
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending" // 已入库，邮件尚未发送完成
	DeliverySent    DeliveryStatus = "sent"    // SMTP 服务器已接收
	DeliveryFailed  DeliveryStatus = "failed"  // 发送失败，记录仍保留
)

// Valid 是否为已知状态
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliverySent, DeliveryFailed:
		return true
	}
	return false
}

// Upload 一次照片上传记录，创建后除投递状态外不再修改
type Upload struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Email       string    `gorm:"size:255;not null"`
	Nickname    string    `gorm:"size:255;not null"`
	Filename    string    `gorm:"size:255;not null;default:''"`
	ContentType string    `gorm:"size:100;not null;default:''"`
	Image       []byte    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime;not null;index"`

	DeliveryStatus DeliveryStatus `gorm:"size:16;not null;default:pending;index"`
	DeliveredAt    *time.Time
}

// TableName 固定表名
func (Upload) TableName() string {
	return "uploads"
}
