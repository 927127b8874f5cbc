package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"payout-core/internal/bootstrap"
	"payout-core/pkg/config"
	"payout-core/pkg/logger"
)

// container 需要访问存储的子命令在 PreRun 中初始化
var container *bootstrap.Container

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "payout-cli",
	Short: "创作者打款运维工具",
	Long: `payout-cli 直接调用打款服务，用于手动触发定时检查、
预览可打款创作者、创建 / 处理 / 重试批量打款任务以及核对平台费拆分。`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if container != nil {
			container.Close()
		}
		logger.Sync()
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// withContainer 加载配置并组装服务
func withContainer(cmd *cobra.Command, args []string) error {
	config.Init()
	logger.Init(config.Global.App.Env)

	c, err := bootstrap.New(config.Global)
	if err != nil {
		return fmt.Errorf("初始化失败: %w", err)
	}
	container = c
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
