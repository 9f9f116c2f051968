package cmd

import (
	"log"

	"github.com/anoixa/photo-mailer/api/core"
	"github.com/anoixa/photo-mailer/config"
	"github.com/anoixa/photo-mailer/internal/app"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/spf13/cobra"
)

// lambdaCmd 以 AWS Lambda 函数运行，处理 API Gateway 代理事件
var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda handler behind API Gateway",
	Run: func(cmd *cobra.Command, args []string) {
		RunLambda()
	},
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}

// RunLambda 容器在冷启动时初始化一次，之后由各次调用复用
func RunLambda() {
	config.InitConfig()
	cfg := config.Get()

	container := app.NewContainer(cfg)
	if err := container.Init(); err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	router, _ := core.SetupRouter(cfg, serverDependencies(container))
	adapter := ginadapter.New(router)

	log.Printf("Lambda handler ready, database type: %s", container.GetDatabaseProvider().Name())
	lambda.Start(adapter.ProxyWithContext)
}
