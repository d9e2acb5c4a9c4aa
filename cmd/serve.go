package cmd

import (
	"github.com/spf13/cobra"

	"yqhp/session-engine/api/rest"
	"yqhp/session-engine/internal/runner"
	"yqhp/session-engine/internal/steps"
	"yqhp/session-engine/pkg/logger"
)

var (
	// serve 命令的 flags
	serveAddress string
)

// serveCmd 是 serve 子命令
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 REST 控制面",
	Long: `启动 REST 控制面，通过 HTTP 接口提交压测、
查询运行状态并获取汇总报告。`,
	Example: `  # 默认监听 :8080
  session-engine serve

  # 指定监听地址
  session-engine serve --address :9090`,
	RunE: serveAPI,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddress, "address", ":8080", "监听地址")
}

func serveAPI(cmd *cobra.Command, args []string) error {
	config := rest.DefaultConfig()
	config.Address = serveAddress

	server := rest.NewServer(runner.New(steps.NewRegistry()), config)
	logger.Info("REST control surface listening on %s", serveAddress)
	return server.StartWithContext(cmd.Context())
}
