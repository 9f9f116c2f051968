package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anoixa/photo-mailer/api/core"
	"github.com/anoixa/photo-mailer/config"
	"github.com/anoixa/photo-mailer/internal/app"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		RunServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// RunServer 启动独立 HTTP 服务，收到退出信号后优雅关闭
func RunServer() {
	config.InitConfig()
	cfg := config.Get()

	container := app.NewContainer(cfg)
	if err := container.Init(); err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	server, cleanup := core.NewServer(cfg, serverDependencies(container))
	go func() {
		log.Printf("Server started on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// 处理退出signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// 等待进行中的上传完成发信
	ctx, cancel := context.WithTimeout(context.Background(), cfg.MailTimeout+5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if cleanup != nil {
		cleanup()
	}

	if err := container.Close(); err != nil {
		log.Printf("Error closing container: %v", err)
	}

	log.Println("Server exited successfully")
}

func serverDependencies(container *app.Container) *core.ServerDependencies {
	return &core.ServerDependencies{
		DB:      container.GetDatabaseProvider(),
		Cache:   container.GetCacheProvider(),
		Uploads: container.UploadHandler(),
		Stats:   container.UploadService.Stats(),
	}
}
