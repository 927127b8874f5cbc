package cmd

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"payout-core/pkg/config"
)

var runCheckCmd = &cobra.Command{
	Use:     "run-check",
	Short:   "执行一次自动打款检查",
	Long:    `按主平台账户的打款计划判断今天是否需要打款；需要时创建任务并立即处理。同一天重复执行不会重复打款。`,
	PreRunE: withContainer,
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now().In(config.Global.Payout.Location())
		// 与服务进程的定时任务共用锁 (启用 Redis 时跨进程生效)
		res, err := container.Cron.CheckNow(cmd.Context(), now)
		if err != nil {
			return err
		}
		if err := printJSON(res); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("payout check failed: %s", res.Error)
		}
		return nil
	},
}

var eligibleCmd = &cobra.Command{
	Use:     "eligible",
	Short:   "预览可打款的创作者 (只读)",
	PreRunE: withContainer,
	RunE: func(cmd *cobra.Command, args []string) error {
		minimum, err := decimalFlag(cmd, "minimum")
		if err != nil {
			return err
		}
		out, err := container.Payouts.GetEligibleCreators(cmd.Context(), minimum)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var scheduleCmd = &cobra.Command{
	Use:     "schedule",
	Short:   "按当前余额快照创建打款任务 (不处理)",
	PreRunE: withContainer,
	RunE: func(cmd *cobra.Command, args []string) error {
		minimum, err := decimalFlag(cmd, "minimum")
		if err != nil {
			return err
		}
		loc := config.Global.Payout.Location()
		date := time.Now().In(loc)
		if raw, _ := cmd.Flags().GetString("date"); raw != "" {
			if date, err = time.ParseInLocation("2006-01-02", raw, loc); err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
		}
		job, err := container.Payouts.SchedulePayoutJob(cmd.Context(), date, minimum)
		if err != nil {
			return err
		}
		return printJSON(job)
	},
}

var processJobCmd = &cobra.Command{
	Use:     "process-job <job-id>",
	Short:   "处理 pending 状态的打款任务",
	Args:    cobra.ExactArgs(1),
	PreRunE: withContainer,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := container.Payouts.ProcessPayoutJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var retryJobCmd = &cobra.Command{
	Use:     "retry-job <job-id>",
	Short:   "重试失败任务中失败的创作者",
	Args:    cobra.ExactArgs(1),
	PreRunE: withContainer,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := container.Payouts.RetryFailedPayouts(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func decimalFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString(name)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return d, nil
}

func init() {
	eligibleCmd.Flags().String("minimum", "0", "最低打款金额")
	scheduleCmd.Flags().String("minimum", "0", "最低打款金额")
	scheduleCmd.Flags().String("date", "", "打款日期 YYYY-MM-DD (默认今天)")

	rootCmd.AddCommand(runCheckCmd, eligibleCmd, scheduleCmd, processJobCmd, retryJobCmd)
}
