// Package throttle 限制同一收件人在冷却期内重复收信
package throttle

import (
	"context"
	"strings"
	"time"

	"github.com/anoixa/photo-mailer/cache"
)

// Throttle 收件人冷却
type Throttle struct {
	cache    cache.Provider
	cooldown time.Duration
}

// New 创建收件人冷却，cooldown <= 0 时返回 nil
func New(provider cache.Provider, cooldown time.Duration) *Throttle {
	if provider == nil || cooldown <= 0 {
		return nil
	}
	return &Throttle{cache: provider, cooldown: cooldown}
}

// Reserve 原子地占用收件人的冷却期，已被占用时返回 false
// 并发的两个请求只有一个能拿到
func (t *Throttle) Reserve(ctx context.Context, email string) (bool, error) {
	return t.cache.SetNX(ctx, key(email), time.Now().Unix(), t.cooldown)
}

// Release 放弃占用，提交未能完成时调用，收件人可立即重试
func (t *Throttle) Release(ctx context.Context, email string) error {
	return Reset(ctx, t.cache, email)
}

// RetryAfter 距冷却期结束的剩余时间，读取失败时返回完整冷却时长
func (t *Throttle) RetryAfter(ctx context.Context, email string) time.Duration {
	var reservedAt int64
	if err := t.cache.Get(ctx, key(email), &reservedAt); err != nil {
		if cache.IsCacheMiss(err) {
			return 0
		}
		return t.cooldown
	}

	remaining := t.cooldown - time.Since(time.Unix(reservedAt, 0))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset 解除收件人的冷却期
func Reset(ctx context.Context, provider cache.Provider, email string) error {
	return provider.Delete(ctx, key(email))
}

func key(email string) string {
	return cache.RecipientCooldown.Build(strings.ToLower(strings.TrimSpace(email)))
}
