package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/anoixa/photo-mailer/config"
	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormProvider GORM 数据库提供者实现
type GormProvider struct {
	db     *gorm.DB
	dbType string
}

var _ Provider = (*GormProvider)(nil)

// NewGormProvider 根据配置创建 GORM 数据库提供者
func NewGormProvider(cfg *config.Config) (*GormProvider, error) {
	dialector, dbType, err := newDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newGormLogger(),
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", dbType, err)
	}

	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}

	return NewGormProviderFromDB(db, dbType), nil
}

// NewGormProviderFromDB 包装已打开的连接，测试中使用
func NewGormProviderFromDB(db *gorm.DB, dbType string) *GormProvider {
	return &GormProvider{
		db:     db,
		dbType: dbType,
	}
}

// newDialector 按数据库类型构造 DSN
func newDialector(cfg *config.Config) (gorm.Dialector, string, error) {
	timeout := cfg.DBTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	switch cfg.DBType {
	case "sqlite", "sqlite3", "":
		path := cfg.DBFilePath
		if path == "" {
			path = "./data/uploads.db"
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, "", fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		// WAL 模式
		dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, timeout.Milliseconds())
		log.Printf("Using SQLite database file: %s", path)
		return sqlite.Open(dsn), "sqlite", nil

	case "postgres", "postgresql":
		sslMode := "disable"
		if cfg.DBEncrypt {
			sslMode = "require"
		}
		query := url.Values{}
		query.Set("sslmode", sslMode)
		query.Set("connect_timeout", strconv.Itoa(int(timeout.Seconds())))
		u := &url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.DBUsername, cfg.DBPassword),
			Host:     net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort)),
			Path:     "/" + cfg.DBName,
			RawQuery: query.Encode(),
		}
		log.Printf("Using PostgreSQL database on %s:%d", cfg.DBHost, cfg.DBPort)
		return postgres.Open(u.String()), "postgres", nil

	case "mysql":
		dsnCfg := mysqldriver.NewConfig()
		dsnCfg.User = cfg.DBUsername
		dsnCfg.Passwd = cfg.DBPassword
		dsnCfg.Net = "tcp"
		dsnCfg.Addr = net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort))
		dsnCfg.DBName = cfg.DBName
		dsnCfg.ParseTime = true
		dsnCfg.Timeout = timeout
		dsnCfg.ReadTimeout = timeout
		dsnCfg.WriteTimeout = timeout
		dsnCfg.Params = map[string]string{"charset": "utf8mb4", "loc": "Local"}
		log.Printf("Using MySQL database on %s:%d", cfg.DBHost, cfg.DBPort)
		return mysql.Open(dsnCfg.FormatDSN()), "mysql", nil

	case "sqlserver", "mssql":
		query := url.Values{}
		query.Set("database", cfg.DBName)
		query.Set("connection timeout", strconv.Itoa(int(timeout.Seconds())))
		if cfg.DBEncrypt {
			query.Set("encrypt", "true")
			query.Set("TrustServerCertificate", "true")
		} else {
			query.Set("encrypt", "disable")
		}
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(cfg.DBUsername, cfg.DBPassword),
			Host:     net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort)),
			RawQuery: query.Encode(),
		}
		log.Printf("Using SQL Server database on %s:%d", cfg.DBHost, cfg.DBPort)
		return sqlserver.Open(u.String()), "sqlserver", nil

	default:
		return nil, "", fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}
}

// newGormLogger 开发版本输出 SQL，发布版本静默
func newGormLogger() logger.Interface {
	logLevel := logger.Silent
	colorful := false

	if config.IsDevelopment() {
		logLevel = logger.Info
		colorful = true
	}

	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			// 照片以参数绑定，日志中不输出参数值
			ParameterizedQueries: true,
			Colorful:             colorful,
		},
	)
}

// configurePool 配置连接池
func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB instance: %w", err)
	}

	maxOpenConns := cfg.DBMaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	maxIdleConns := cfg.DBMaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 5
	}
	connMaxLifetime := cfg.DBConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = 3600
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)
	return nil
}

// DB 返回底层 *gorm.DB 实例
func (p *GormProvider) DB() *gorm.DB {
	return p.db
}

// WithContext 返回带上下文的 *gorm.DB
func (p *GormProvider) WithContext(ctx context.Context) *gorm.DB {
	return p.db.WithContext(ctx)
}

// AutoMigrate 自动迁移数据库结构
func (p *GormProvider) AutoMigrate(models ...interface{}) error {
	return p.db.AutoMigrate(models...)
}

// SQLDB 返回底层 sql.DB
func (p *GormProvider) SQLDB() (*sql.DB, error) {
	return p.db.DB()
}

// Ping 检查数据库连接
func (p *GormProvider) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func (p *GormProvider) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	log.Println("Closing database connection...")
	return sqlDB.Close()
}

// Name 返回数据库名称
func (p *GormProvider) Name() string {
	return p.dbType
}
