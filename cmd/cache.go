package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/anoixa/photo-mailer/cache"
	"github.com/anoixa/photo-mailer/config"
	"github.com/anoixa/photo-mailer/internal/throttle"
	"github.com/spf13/cobra"
)

// cacheCmd 缓存管理命令
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache management commands",
	Long:  "Manage the cache backing the recipient cooldown.",
}

// cacheClearCmd 解除指定收件人的冷却
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Lift the cooldown for a recipient",
	Long: `Lift the cooldown for a recipient so the next upload is mailed immediately.
Only meaningful with the redis cache; the memory cache lives inside the server process.

Example:
  photo-mailer cache clear --email someone@example.com`,
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("email")
		if err := runCacheClear(email); err != nil {
			log.Fatalf("Cache clear failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().String("email", "", "Recipient email address")
	_ = cacheClearCmd.MarkFlagRequired("email")
}

// runCacheClear 执行缓存清理
func runCacheClear(email string) error {
	config.InitConfig()
	cfg := config.Get()

	provider, err := cache.New(cache.Config{
		Type:          cfg.CacheType,
		RedisAddr:     cfg.CacheRedisAddr,
		RedisPassword: cfg.CacheRedisPassword,
		RedisDB:       cfg.CacheRedisDB,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer provider.Close()

	if err := throttle.Reset(context.Background(), provider, email); err != nil {
		return err
	}
	log.Printf("Cooldown cleared for %s (%s cache)", email, provider.Name())
	return nil
}
