package uploads

import (
	"context"
	"time"

	"github.com/anoixa/photo-mailer/database/models"
	"gorm.io/gorm"
)

// DefaultListLimit 列表默认条数
const DefaultListLimit = 50

// ListFilter 列表查询条件
type ListFilter struct {
	Status models.DeliveryStatus
	Limit  int
}

// Repository 上传记录仓库
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建上传记录仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 插入一条上传记录，ID 与 CreatedAt 由数据库回填
func (r *Repository) Create(ctx context.Context, upload *models.Upload) error {
	if upload.DeliveryStatus == "" {
		upload.DeliveryStatus = models.DeliveryPending
	}
	return r.db.WithContext(ctx).Create(upload).Error
}

// MarkDelivery 更新投递状态，sent 时记录投递时间
func (r *Repository) MarkDelivery(ctx context.Context, id uint, status models.DeliveryStatus) error {
	var deliveredAt *time.Time
	if status == models.DeliverySent {
		now := time.Now()
		deliveredAt = &now
	}

	result := r.db.WithContext(ctx).
		Model(&models.Upload{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"delivery_status": status,
			"delivered_at":    deliveredAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// MySQL 默认只统计值发生变化的行，重复写入相同状态时 RowsAffected 为 0
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Upload{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Get 按 ID 获取完整记录（含照片）
func (r *Repository) Get(ctx context.Context, id uint) (*models.Upload, error) {
	var upload models.Upload
	if err := r.db.WithContext(ctx).First(&upload, id).Error; err != nil {
		return nil, err
	}
	return &upload, nil
}

// List 按创建时间倒序列出记录，不加载照片内容
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]*models.Upload, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := r.db.WithContext(ctx).Model(&models.Upload{}).Omit("image")
	if filter.Status != "" {
		query = query.Where("delivery_status = ?", filter.Status)
	}

	var uploads []*models.Upload
	err := query.Order("id desc").Limit(limit).Find(&uploads).Error
	return uploads, err
}

// Count 统计记录数，status 为空时统计全部
func (r *Repository) Count(ctx context.Context, status models.DeliveryStatus) (int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&models.Upload{})
	if status != "" {
		query = query.Where("delivery_status = ?", status)
	}
	err := query.Count(&total).Error
	return total, err
}
