package cache

import "strings"

// KeyBuilder 缓存键构建器
type KeyBuilder struct {
	prefix string
	sep    string
}

// NewKeyBuilder 创建新的键构建器
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{
		prefix: prefix,
		sep:    ":",
	}
}

// Build 构建缓存键
func (kb *KeyBuilder) Build(parts ...string) string {
	if len(parts) == 0 {
		return kb.prefix
	}
	return kb.prefix + kb.sep + strings.Join(parts, kb.sep)
}

// RecipientCooldown 收件人冷却
var RecipientCooldown = NewKeyBuilder("photo_mailer").WithPart("cooldown")

// WithPart 追加固定前缀段
func (kb *KeyBuilder) WithPart(part string) *KeyBuilder {
	return &KeyBuilder{prefix: kb.prefix + kb.sep + part, sep: kb.sep}
}
