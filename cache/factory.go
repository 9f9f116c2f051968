package cache

import (
	"fmt"
	"log"
	"strings"

	"github.com/anoixa/photo-mailer/cache/memory"
	"github.com/anoixa/photo-mailer/cache/redis"
)

// Config 缓存配置
type Config struct {
	Type          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// DefaultMemoryConfig 节流键很小，不需要大容量
var DefaultMemoryConfig = memory.Config{
	NumCounters: 100000,
	MaxCost:     10000,
	BufferItems: 64,
	Metrics:     false,
}

// New 按类型创建缓存提供者
func New(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		log.Println("[Cache] Using in-memory cache")
		return memory.NewMemory(DefaultMemoryConfig)
	case "redis":
		log.Printf("[Cache] Using redis cache at %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
		return redis.NewRedisFromConfig(&redis.Config{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unsupported cache provider type: %s", cfg.Type)
	}
}
