package database

import (
	"fmt"
	"log"

	"github.com/anoixa/photo-mailer/database/models"
)

// AutoMigrate 确保 uploads 表存在（不存在则创建，已存在则补齐缺失列）
func AutoMigrate(provider Provider) error {
	if provider == nil {
		return fmt.Errorf("database provider not initialized")
	}

	log.Println("Running database auto migration...")
	if err := provider.AutoMigrate(&models.Upload{}); err != nil {
		return fmt.Errorf("failed to auto migrate database: %w", err)
	}
	log.Println("Database auto migration completed.")
	return nil
}
