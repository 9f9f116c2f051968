package mime

import (
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultFilename 客户端未提供文件名时使用
const DefaultFilename = "uploaded_photo"

// maxFilenameBytes 与 uploads.filename 列宽一致
const maxFilenameBytes = 255

// SniffContentType 根据前 512 字节判断 MIME 类型
func SniffContentType(data []byte) string {
	if len(data) > 512 {
		data = data[:512]
	}
	return http.DetectContentType(data)
}

// SafeFilename 去掉客户端路径部分与控制字符，并截断到列宽
func SafeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == "/" || name == ".." {
		return DefaultFilename
	}

	if len(name) > maxFilenameBytes {
		cut := maxFilenameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name
}
