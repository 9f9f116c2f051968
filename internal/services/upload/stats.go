package upload

import "sync/atomic"

// Stats 管道各阶段计数
type Stats struct {
	received      atomic.Int64
	rejected      atomic.Int64
	throttled     atomic.Int64
	persisted     atomic.Int64
	persistFailed atomic.Int64
	notified      atomic.Int64
	notifyFailed  atomic.Int64
}

// Snapshot 当前计数的副本
func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"uploads_received":       s.received.Load(),
		"uploads_rejected":       s.rejected.Load(),
		"uploads_throttled":      s.throttled.Load(),
		"uploads_persisted":      s.persisted.Load(),
		"uploads_persist_failed": s.persistFailed.Load(),
		"uploads_notified":       s.notified.Load(),
		"uploads_notify_failed":  s.notifyFailed.Load(),
	}
}
