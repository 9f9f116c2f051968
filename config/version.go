package config

// 构建时通过 -ldflags "-X" 注入
var (
	Version    string = "dev"
	CommitHash string = "n/a"
)

// IsDevelopment 未注入提交哈希的本地构建
func IsDevelopment() bool {
	return Version == "dev" || CommitHash == "n/a"
}
