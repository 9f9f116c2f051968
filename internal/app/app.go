package app

import (
	"fmt"
	"log"

	"github.com/anoixa/photo-mailer/api/handler/uploads"
	"github.com/anoixa/photo-mailer/cache"
	"github.com/anoixa/photo-mailer/config"
	"github.com/anoixa/photo-mailer/database"
	uploadsRepo "github.com/anoixa/photo-mailer/database/repo/uploads"
	"github.com/anoixa/photo-mailer/internal/intake"
	"github.com/anoixa/photo-mailer/internal/locale"
	"github.com/anoixa/photo-mailer/internal/notify"
	"github.com/anoixa/photo-mailer/internal/services/upload"
	"github.com/anoixa/photo-mailer/internal/throttle"
	"github.com/anoixa/photo-mailer/utils"
)

// Container 依赖注入容器 - 管理所有服务的生命周期
type Container struct {
	config   *config.Config
	provider database.Provider
	cache    cache.Provider
	messages *locale.Catalog

	UploadsRepo   *uploadsRepo.Repository
	Mailer        *notify.SMTPMailer
	UploadService *upload.Service
}

// NewContainer 创建新的依赖注入容器
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:   cfg,
		messages: locale.Lookup(cfg.MailLocale),
	}
}

// Init 按 数据库 -> 服务 的顺序初始化
func (c *Container) Init() error {
	if err := c.InitDatabase(); err != nil {
		return err
	}
	if err := c.InitServices(); err != nil {
		return err
	}
	return nil
}

// InitDatabase 打开连接池，按配置执行自动建表，并创建仓库
func (c *Container) InitDatabase() error {
	utils.LogIfDev("Initializing DI container...")

	provider, err := database.NewGormProvider(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.provider = provider
	log.Printf("Database connected, type: %s", provider.Name())

	if c.config.DBAutoMigrate {
		if err := database.AutoMigrate(provider); err != nil {
			return err
		}
	}

	c.UploadsRepo = uploadsRepo.NewRepository(provider.DB())
	utils.LogIfDev("Repositories initialized")
	return nil
}

// InitServices 创建发信客户端、收件人冷却与上传管道
func (c *Container) InitServices() error {
	if c.UploadsRepo == nil {
		return fmt.Errorf("database must be initialized before services")
	}

	mailer, err := notify.NewSMTPMailer(MailerConfig(c.config))
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}
	c.Mailer = mailer

	var opts []upload.Option
	if c.config.ThrottleCooldown > 0 {
		provider, err := cache.New(cache.Config{
			Type:          c.config.CacheType,
			RedisAddr:     c.config.CacheRedisAddr,
			RedisPassword: c.config.CacheRedisPassword,
			RedisDB:       c.config.CacheRedisDB,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize cache: %w", err)
		}
		c.cache = provider
		opts = append(opts, upload.WithLimiter(throttle.New(provider, c.config.ThrottleCooldown)))
		log.Printf("[Container] Recipient cooldown enabled: %s (%s cache)", c.config.ThrottleCooldown, provider.Name())
	}

	c.UploadService = upload.NewService(c.UploadsRepo, mailer, opts...)
	utils.LogIfDev("DI container initialized successfully")
	return nil
}

// MailerConfig 从全局配置提取 SMTP 配置
func MailerConfig(cfg *config.Config) notify.Config {
	return notify.Config{
		Host:      cfg.MailHost,
		Port:      cfg.MailPort,
		Username:  cfg.MailUsername,
		Password:  cfg.MailPassword,
		From:      cfg.MailFrom,
		FromName:  cfg.MailFromName,
		TLSPolicy: cfg.MailTLSPolicy,
		Timeout:   cfg.MailTimeout,
		Locale:    cfg.MailLocale,

		InsecureSkipVerify: cfg.MailTLSSkipVerify,
	}
}

// UploadHandler 创建 HTTP 上传处理器
func (c *Container) UploadHandler() *uploads.Handler {
	parser := intake.NewParser(c.config.UploadMaxBytes(), c.messages)
	return uploads.NewHandler(parser, c.UploadService, c.messages)
}

// GetDatabaseProvider 获取数据库提供者
func (c *Container) GetDatabaseProvider() database.Provider {
	return c.provider
}

// GetCacheProvider 获取缓存提供者，未启用冷却时为 nil
func (c *Container) GetCacheProvider() cache.Provider {
	return c.cache
}

// GetConfig 获取配置
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// Close 关闭所有服务
func (c *Container) Close() error {
	utils.LogIfDev("Closing DI container...")

	var lastErr error
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			utils.LogIfDevf("Error closing cache: %v", err)
			lastErr = err
		}
	}
	if c.provider != nil {
		if err := c.provider.Close(); err != nil {
			utils.LogIfDevf("Error closing database: %v", err)
			lastErr = err
		}
	}

	utils.LogIfDev("DI container closed")
	return lastErr
}
