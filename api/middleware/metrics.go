package middleware

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	requestCount    atomic.Int64
	requestDuration atomic.Int64 // in milliseconds
	clientErrors    atomic.Int64
	serverErrors    atomic.Int64
)

// Metrics 基础监控指标中间件
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Writer.Header().Set("X-Request-Count", strconv.FormatInt(requestCount.Load(), 10))

		c.Next()

		requestDuration.Add(time.Since(startTime).Milliseconds())
		requestCount.Add(1)
		switch status := c.Writer.Status(); {
		case status >= 500:
			serverErrors.Add(1)
		case status >= 400:
			clientErrors.Add(1)
		}
	}
}

// GetMetrics 获取当前指标
func GetMetrics() map[string]interface{} {
	count := requestCount.Load()
	duration := requestDuration.Load()
	avg := 0.0
	if count > 0 {
		avg = float64(duration) / float64(count)
	}
	return map[string]interface{}{
		"request_count":       count,
		"request_duration_ms": duration,
		"avg_duration_ms":     avg,
		"client_errors":       clientErrors.Load(),
		"server_errors":       serverErrors.Load(),
	}
}

// ResetMetrics 重置指标（用于测试）
func ResetMetrics() {
	requestCount.Store(0)
	requestDuration.Store(0)
	clientErrors.Store(0)
	serverErrors.Store(0)
}
