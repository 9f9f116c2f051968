// Package upload runs the upload pipeline: validate, persist, notify.
package upload

import (
	"context"
	"log"
	"time"

	"github.com/anoixa/photo-mailer/database/models"
	"github.com/anoixa/photo-mailer/internal/intake"
	"github.com/anoixa/photo-mailer/internal/notify"
	"github.com/anoixa/photo-mailer/utils"
	"github.com/anoixa/photo-mailer/utils/format"
)

// bookkeepingTimeout 投递状态回写不受请求取消影响，但有独立超时
const bookkeepingTimeout = 5 * time.Second

// State 单个请求在管道中的位置
type State string

const (
	StateReceived  State = "received"
	StateValidated State = "validated"
	StatePersisted State = "persisted"
	StateNotified  State = "notified"
	// StateResponded 全部步骤完成，处理器据此返回成功
	StateResponded State = "responded"
	StateRejected  State = "rejected"
	StateFailed    State = "failed"
)

// RecordStore 上传记录存储
type RecordStore interface {
	Create(ctx context.Context, upload *models.Upload) error
	MarkDelivery(ctx context.Context, id uint, status models.DeliveryStatus) error
}

// Mailer 回信发送
type Mailer interface {
	Send(ctx context.Context, n notify.Notification) error
}

// Limiter 按收件人限制提交频率
// Reserve 必须是原子的检查并占用，提交失败时通过 Release 归还
type Limiter interface {
	Reserve(ctx context.Context, email string) (bool, error)
	Release(ctx context.Context, email string) error
	RetryAfter(ctx context.Context, email string) time.Duration
}

// Result 管道执行结果
type Result struct {
	UploadID uint
	State    State
}

// Service 上传管道，各步骤严格顺序执行，任一步失败即终止
type Service struct {
	store   RecordStore
	mailer  Mailer
	limiter Limiter
	stats   *Stats
}

// Option 可选依赖
type Option func(*Service)

// WithLimiter 启用收件人冷却
func WithLimiter(l Limiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

// NewService 创建上传管道
func NewService(store RecordStore, mailer Mailer, opts ...Option) *Service {
	s := &Service{
		store:  store,
		mailer: mailer,
		stats:  &Stats{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats 返回计数器
func (s *Service) Stats() *Stats {
	return s.stats
}

// Process 依次执行 校验 -> 入库 -> 发信
// 发信失败时记录保留并标记为 failed，返回 *NotificationError
func (s *Service) Process(ctx context.Context, sub *intake.Submission) (*Result, error) {
	s.stats.received.Add(1)
	reqID := utils.RequestIDFrom(ctx)
	result := &Result{State: StateReceived}

	if err := sub.Validate(); err != nil {
		s.stats.rejected.Add(1)
		result.State = StateRejected
		return result, &intake.ValidationError{Field: "form", Err: err}
	}
	result.State = StateValidated
	recipient := utils.MaskEmail(sub.Email)

	reserved := false
	if s.limiter != nil {
		ok, err := s.limiter.Reserve(ctx, sub.Email)
		switch {
		case err != nil:
			log.Printf("[Upload] request=%s throttle check failed, allowing: %v", reqID, err)
		case !ok:
			s.stats.throttled.Add(1)
			result.State = StateRejected
			return result, &ThrottledError{Email: sub.Email, RetryAfter: s.limiter.RetryAfter(ctx, sub.Email)}
		default:
			reserved = true
		}
	}

	record := &models.Upload{
		Email:          sub.Email,
		Nickname:       sub.Nickname,
		Filename:       sub.Filename,
		ContentType:    sub.ContentType,
		Image:          sub.Photo,
		DeliveryStatus: models.DeliveryPending,
	}
	if err := s.store.Create(ctx, record); err != nil {
		s.stats.persistFailed.Add(1)
		result.State = StateFailed
		log.Printf("[Upload] request=%s persist failed for %s: %v", reqID, recipient, err)
		if reserved {
			s.releaseReservation(ctx, sub.Email)
		}
		return result, &PersistenceError{Err: err}
	}
	s.stats.persisted.Add(1)
	result.UploadID = record.ID
	result.State = StatePersisted

	err := s.mailer.Send(ctx, notify.Notification{
		To:          sub.Email,
		Nickname:    sub.Nickname,
		Photo:       sub.Photo,
		Filename:    sub.Filename,
		ContentType: sub.ContentType,
	})
	if err != nil {
		s.stats.notifyFailed.Add(1)
		result.State = StateFailed
		if utils.IsContextCanceled(err) {
			log.Printf("[Upload] request=%s client went away while mailing upload %d", reqID, record.ID)
		} else {
			log.Printf("[Upload] request=%s upload %d stored, mail to %s failed: %v", reqID, record.ID, recipient, err)
		}
		s.markDelivery(ctx, record.ID, models.DeliveryFailed)
		if reserved {
			s.releaseReservation(ctx, sub.Email)
		}
		return result, &NotificationError{UploadID: record.ID, Err: err}
	}
	s.stats.notified.Add(1)
	result.State = StateNotified

	s.markDelivery(ctx, record.ID, models.DeliverySent)

	log.Printf("[Upload] request=%s upload %d mailed to %s (%s)", reqID, record.ID, recipient, format.HumanReadableSize(int64(len(sub.Photo))))
	result.State = StateResponded
	return result, nil
}

// Resend 重新发送已入库记录的回信，供运维命令使用
func (s *Service) Resend(ctx context.Context, record *models.Upload) error {
	err := s.mailer.Send(ctx, notify.Notification{
		To:          record.Email,
		Nickname:    record.Nickname,
		Photo:       record.Image,
		Filename:    record.Filename,
		ContentType: record.ContentType,
	})
	if err != nil {
		s.markDelivery(ctx, record.ID, models.DeliveryFailed)
		return &NotificationError{UploadID: record.ID, Err: err}
	}
	s.markDelivery(ctx, record.ID, models.DeliverySent)
	return nil
}

// releaseReservation 归还收件人冷却，失败时冷却期照常到期
func (s *Service) releaseReservation(ctx context.Context, email string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	if err := s.limiter.Release(ctx, email); err != nil {
		log.Printf("[Upload] request=%s failed to release throttle for %s: %v", utils.RequestIDFrom(ctx), utils.MaskEmail(email), err)
	}
}

// markDelivery 回写投递状态，失败只记录日志，不改变请求结果
func (s *Service) markDelivery(ctx context.Context, id uint, status models.DeliveryStatus) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	if err := s.store.MarkDelivery(ctx, id, status); err != nil {
		log.Printf("[Upload] request=%s failed to mark upload %d as %s: %v", utils.RequestIDFrom(ctx), id, status, err)
	}
}
