package format

import "fmt"

const byteUnit = 1024

var units = []string{"B", "KB", "MB", "GB"}

// HumanReadableSize 用于日志与错误提示，如 "17 B"、"10.00 MB"
func HumanReadableSize(n int64) string {
	if n < byteUnit {
		return fmt.Sprintf("%d B", n)
	}

	value := float64(n)
	exp := 0
	for value >= byteUnit && exp < len(units)-1 {
		value /= byteUnit
		exp++
	}
	return fmt.Sprintf("%.2f %s", value, units[exp])
}
