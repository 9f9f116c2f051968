package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/anoixa/photo-mailer/config"
	"github.com/anoixa/photo-mailer/database/models"
	uploadsRepo "github.com/anoixa/photo-mailer/database/repo/uploads"
	"github.com/anoixa/photo-mailer/internal/app"
	"github.com/anoixa/photo-mailer/internal/services/upload"
	"github.com/anoixa/photo-mailer/utils"
	"github.com/spf13/cobra"
)

// uploadsCmd 上传记录运维命令
var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "Inspect stored uploads and re-send failed mails",
}

var uploadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent uploads",
	Long: `List recent uploads, newest first. Photo contents are not loaded.

Examples:
  photo-mailer uploads list
  photo-mailer uploads list --status failed --limit 20`,
	Run: func(cmd *cobra.Command, args []string) {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		container := initContainer()
		defer container.Close()

		filter := uploadsRepo.ListFilter{Status: models.DeliveryStatus(status), Limit: limit}
		if err := listUploads(cmd.Context(), os.Stdout, container.UploadsRepo, filter); err != nil {
			log.Fatalf("List failed: %v", err)
		}
	},
}

var uploadsResendCmd = &cobra.Command{
	Use:   "resend",
	Short: "Re-send the reply mail for stored uploads",
	Long: `Re-send the reply mail for a stored upload, or for every upload whose
delivery failed. Nothing is retried automatically; this is the only way to
act on a failed delivery.

Examples:
  photo-mailer uploads resend --id 42
  photo-mailer uploads resend --failed --limit 100`,
	Run: func(cmd *cobra.Command, args []string) {
		id, _ := cmd.Flags().GetUint("id")
		failed, _ := cmd.Flags().GetBool("failed")
		limit, _ := cmd.Flags().GetInt("limit")

		if (id == 0) == !failed {
			log.Fatal("Exactly one of --id or --failed is required")
		}

		container := initContainer()
		defer container.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		var ids []uint
		if id != 0 {
			ids = []uint{id}
		} else {
			records, err := container.UploadsRepo.List(ctx, uploadsRepo.ListFilter{Status: models.DeliveryFailed, Limit: limit})
			if err != nil {
				log.Fatalf("Failed to list failed uploads: %v", err)
			}
			for _, r := range records {
				ids = append(ids, r.ID)
			}
		}

		sent, err := resendUploads(ctx, os.Stdout, container.UploadsRepo, container.UploadService, ids)
		fmt.Printf("Re-sent %d/%d uploads\n", sent, len(ids))
		if err != nil {
			log.Fatalf("Resend finished with errors: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(uploadsCmd)
	uploadsCmd.AddCommand(uploadsListCmd)
	uploadsCmd.AddCommand(uploadsResendCmd)

	uploadsListCmd.Flags().String("status", "", "Filter by delivery status (pending, sent, failed)")
	uploadsListCmd.Flags().Int("limit", uploadsRepo.DefaultListLimit, "Maximum number of uploads to show")

	uploadsResendCmd.Flags().Uint("id", 0, "Upload ID to re-send")
	uploadsResendCmd.Flags().Bool("failed", false, "Re-send every upload whose delivery failed")
	uploadsResendCmd.Flags().Int("limit", uploadsRepo.DefaultListLimit, "Maximum number of failed uploads to re-send")
}

// initContainer 运维命令使用与服务相同的容器
func initContainer() *app.Container {
	config.InitConfig()
	container := app.NewContainer(config.Get())
	if err := container.Init(); err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	return container
}

// uploadLister 列表查询
type uploadLister interface {
	List(ctx context.Context, filter uploadsRepo.ListFilter) ([]*models.Upload, error)
}

// uploadGetter 按 ID 读取完整记录
type uploadGetter interface {
	Get(ctx context.Context, id uint) (*models.Upload, error)
}

// resender 重新发送回信
type resender interface {
	Resend(ctx context.Context, record *models.Upload) error
}

// listUploads 以表格形式输出
func listUploads(ctx context.Context, w io.Writer, repo uploadLister, filter uploadsRepo.ListFilter) error {
	if filter.Status != "" && !filter.Status.Valid() {
		return fmt.Errorf("unknown delivery status: %s", filter.Status)
	}

	records, err := repo.List(ctx, filter)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%-6s %-20s %-32s %-20s %-8s %s\n", "ID", "CREATED", "EMAIL", "NICKNAME", "STATUS", "FILENAME")
	for _, r := range records {
		fmt.Fprintf(w, "%-6d %-20s %-32s %-20s %-8s %s\n",
			r.ID,
			r.CreatedAt.Local().Format(time.DateTime),
			utils.SanitizeLogMessage(r.Email),
			utils.SanitizeLogMessage(r.Nickname),
			r.DeliveryStatus,
			utils.SanitizeLogMessage(r.Filename),
		)
	}
	return nil
}

// resendUploads 逐条重发，单条失败不影响其余记录
func resendUploads(ctx context.Context, w io.Writer, repo uploadGetter, svc resender, ids []uint) (int, error) {
	var errs []error
	sent := 0
	for _, id := range ids {
		record, err := repo.Get(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("upload %d: %w", id, err))
			continue
		}
		if err := svc.Resend(ctx, record); err != nil {
			var notifyErr *upload.NotificationError
			if errors.As(err, &notifyErr) {
				fmt.Fprintf(w, "upload %d: mail to %s failed: %v\n", id, utils.MaskEmail(record.Email), notifyErr.Err)
			}
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "upload %d: mailed to %s\n", id, utils.MaskEmail(record.Email))
		sent++
	}
	return sent, errors.Join(errs...)
}
