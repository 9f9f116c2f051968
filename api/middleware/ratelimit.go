package middleware

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anoixa/photo-mailer/api/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nano
}

type IPRateLimiter struct {
	rps        float64       // 每秒请求数
	burst      int           // 令牌桶的容量
	expireTime time.Duration // 过期时间
	limiterMap *sync.Map
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// NewIPRateLimiter Create new IP-based rate limits
func NewIPRateLimiter(rps float64, burst int, expireTime time.Duration) *IPRateLimiter {
	if expireTime <= 0 {
		expireTime = 10 * time.Minute
	}
	limiter := &IPRateLimiter{
		rps:        rps,
		burst:      burst,
		expireTime: expireTime,
		limiterMap: &sync.Map{},
		stopChan:   make(chan struct{}),
	}

	// 启动后台清理 goroutine
	go limiter.cleanupStaleClients()

	return limiter
}

// Middleware Return a Gin middleware handler
// reject 为空时返回默认 JSON 错误
func (rl *IPRateLimiter) Middleware(reject gin.HandlerFunc) gin.HandlerFunc {
	if reject == nil {
		reject = func(c *gin.Context) {
			common.RespondErrorAbort(c, http.StatusTooManyRequests, "Too many requests")
		}
	}

	return func(c *gin.Context) {
		// ClientIP 只在请求来自可信代理时才采信 X-Forwarded-For
		if !rl.Allow(c.ClientIP()) {
			reject(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Allow 消耗指定客户端的一个令牌
func (rl *IPRateLimiter) Allow(ip string) bool {
	val, ok := rl.limiterMap.Load(ip)
	if !ok {
		client := &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
		val, _ = rl.limiterMap.LoadOrStore(ip, client)
	}

	client := val.(*clientLimiter)
	client.lastSeen.Store(time.Now().UnixNano())
	return client.limiter.Allow()
}

func (rl *IPRateLimiter) StopCleanup() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
}

func (rl *IPRateLimiter) cleanupStaleClients() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictStale(time.Now())
		case <-rl.stopChan:
			return
		}
	}
}

// evictStale 删除超过 expireTime 未活动的客户端
func (rl *IPRateLimiter) evictStale(now time.Time) {
	rl.limiterMap.Range(func(key, value interface{}) bool {
		client := value.(*clientLimiter)
		if now.Sub(time.Unix(0, client.lastSeen.Load())) > rl.expireTime {
			rl.limiterMap.Delete(key)
		}
		return true
	})
}
