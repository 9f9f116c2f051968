package utils

import (
	"log"
	"strings"
	"unicode"

	"github.com/anoixa/photo-mailer/config"
)

// LogIfDev 仅在开发构建中输出日志
func LogIfDev(msg string) {
	if config.IsDevelopment() {
		log.Println(msg)
	}
}

// LogIfDevf 仅在开发构建中输出格式化日志
func LogIfDevf(format string, args ...interface{}) {
	if config.IsDevelopment() {
		log.Printf(format, args...)
	}
}

func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == '\n' || r == '\r' {
			continue
		}
		if unicode.IsPrint(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// MaskEmail 日志中只保留邮箱首字母与域名，如 a***@example.com
func MaskEmail(email string) string {
	email = SanitizeLogMessage(email)
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		if len(email) > 50 {
			return email[:50] + "..."
		}
		return email
	}
	local, domain := []rune(email[:at]), email[at:]
	return string(local[0]) + "***" + domain
}
