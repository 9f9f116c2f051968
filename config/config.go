package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig Config
	once         sync.Once
)

// Config 扁平化配置结构体
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerDomain       string        `mapstructure:"server_domain"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`
	ServerMaxInflight  int64         `mapstructure:"server_max_inflight"`
	// 可信反向代理（IP 或 CIDR），为空时不采信 X-Forwarded-For
	ServerTrustedProxies []string `mapstructure:"server_trusted_proxies"`
	// 发布版本默认不暴露 /swagger
	ServerSwagger bool `mapstructure:"server_swagger"`

	// 数据库配置
	DBType            string        `mapstructure:"db_type"`
	DBHost            string        `mapstructure:"db_host"`
	DBPort            int           `mapstructure:"db_port"`
	DBUsername        string        `mapstructure:"db_username"`
	DBPassword        string        `mapstructure:"db_password"`
	DBName            string        `mapstructure:"db_name"`
	DBFilePath        string        `mapstructure:"db_file_path"`
	DBTimeout         time.Duration `mapstructure:"db_timeout"`
	DBEncrypt         bool          `mapstructure:"db_encrypt"`
	DBAutoMigrate     bool          `mapstructure:"db_auto_migrate"`
	DBMaxOpenConns    int           `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int           `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int           `mapstructure:"db_conn_max_lifetime"`

	// 邮件配置
	MailHost          string        `mapstructure:"mail_host"`
	MailPort          int           `mapstructure:"mail_port"`
	MailUsername      string        `mapstructure:"mail_username"`
	MailPassword      string        `mapstructure:"mail_password"`
	MailFrom          string        `mapstructure:"mail_from"`
	MailFromName      string        `mapstructure:"mail_from_name"`
	MailTLSPolicy     string        `mapstructure:"mail_tls_policy"`
	MailTLSSkipVerify bool          `mapstructure:"mail_tls_skip_verify"`
	MailTimeout       time.Duration `mapstructure:"mail_timeout"`
	MailLocale        string        `mapstructure:"mail_locale"`

	// 缓存提供者配置
	CacheType          string `mapstructure:"cache_type"`
	CacheRedisAddr     string `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string `mapstructure:"cache_redis_password"`
	CacheRedisDB       int    `mapstructure:"cache_redis_db"`

	// 同一收件人的冷却时间，0 表示关闭
	ThrottleCooldown time.Duration `mapstructure:"throttle_cooldown"`

	// 限流配置
	RateLimitUploadRPS   float64       `mapstructure:"rate_limit_upload_rps"`
	RateLimitUploadBurst int           `mapstructure:"rate_limit_upload_burst"`
	RateLimitExpireTime  time.Duration `mapstructure:"rate_limit_expire_time"`

	// 上传配置
	UploadMaxSizeMB int `mapstructure:"upload_max_size_mb"`
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(func() {
		loadConfig()
	})
}

func Get() *Config {
	return &globalConfig
}

// loadConfig Core configuration loading
func loadConfig() {
	setDefaults()

	path := viper.GetString("config_file_path")
	if path == "" {
		path = ".env"
	}
	viper.SetConfigFile(path)
	viper.SetConfigType("env")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Info: %s not found, using defaults and environment variables\n", path)
	} else {
		fmt.Fprintf(os.Stderr, "Info: Loaded configuration from %s\n", path)
	}

	viper.AutomaticEnv()
	for _, key := range viper.AllKeys() {
		viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to unmarshal config, %v\n", err)
		os.Exit(1)
	}

	globalConfig.normalize()
}

// setDefaults 设置默认值
func setDefaults() {
	// 服务器配置默认值
	viper.SetDefault("server_host", "0.0.0.0")
	viper.SetDefault("server_port", 3000)
	viper.SetDefault("server_domain", "")
	viper.SetDefault("server_read_timeout", "30s")
	viper.SetDefault("server_write_timeout", "60s")
	viper.SetDefault("server_idle_timeout", "120s")
	viper.SetDefault("server_max_inflight", 100)
	viper.SetDefault("server_trusted_proxies", []string{})
	viper.SetDefault("server_swagger", false)

	// 数据库配置默认值
	viper.SetDefault("db_type", "sqlite")
	viper.SetDefault("db_host", "localhost")
	viper.SetDefault("db_port", 0)
	viper.SetDefault("db_username", "")
	viper.SetDefault("db_password", "")
	viper.SetDefault("db_name", "photo_mailer")
	viper.SetDefault("db_file_path", "")
	viper.SetDefault("db_timeout", "15s")
	viper.SetDefault("db_encrypt", true)
	viper.SetDefault("db_auto_migrate", true)
	viper.SetDefault("db_max_open_conns", 10)
	viper.SetDefault("db_max_idle_conns", 5)
	viper.SetDefault("db_conn_max_lifetime", 3600)

	// 邮件配置默认值
	viper.SetDefault("mail_host", "localhost")
	viper.SetDefault("mail_port", 587)
	viper.SetDefault("mail_username", "")
	viper.SetDefault("mail_password", "")
	viper.SetDefault("mail_from", "")
	viper.SetDefault("mail_from_name", "MetaX Innovation Limited")
	viper.SetDefault("mail_tls_policy", "opportunistic")
	viper.SetDefault("mail_tls_skip_verify", false)
	viper.SetDefault("mail_timeout", "30s")
	viper.SetDefault("mail_locale", "zh-TW")

	// 缓存提供者配置默认值
	viper.SetDefault("cache_type", "memory")
	viper.SetDefault("cache_redis_addr", "localhost:6379")
	viper.SetDefault("cache_redis_password", "")
	viper.SetDefault("cache_redis_db", 0)
	viper.SetDefault("throttle_cooldown", "0s")

	// 限流配置默认值
	viper.SetDefault("rate_limit_upload_rps", 1.0)
	viper.SetDefault("rate_limit_upload_burst", 10)
	viper.SetDefault("rate_limit_expire_time", "10m")

	// 上传配置默认值
	viper.SetDefault("upload_max_size_mb", 10)
}

// normalize 补全依赖于其他字段的默认值
func (c *Config) normalize() {
	if c.DBPort == 0 {
		c.DBPort = defaultDBPort(c.DBType)
	}
	if c.MailFrom == "" {
		c.MailFrom = c.MailUsername
	}
	if c.UploadMaxSizeMB <= 0 {
		c.UploadMaxSizeMB = 10
	}
}

// defaultDBPort 各数据库的默认端口
func defaultDBPort(dbType string) int {
	switch dbType {
	case "postgres", "postgresql":
		return 5432
	case "mysql":
		return 3306
	case "sqlserver", "mssql":
		return 1433
	default:
		return 0
	}
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 3000
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// BaseURL 返回基础 URL，用于 CORS 白名单
func (c *Config) BaseURL() string {
	if c.ServerDomain != "" {
		return c.ServerDomain
	}
	host := c.ServerHost
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.ServerPort)
}

// UploadMaxBytes 单张照片的字节上限
func (c *Config) UploadMaxBytes() int64 {
	return int64(c.UploadMaxSizeMB) << 20
}
