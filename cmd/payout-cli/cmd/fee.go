package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"payout-core/pkg/money"
)

// feeSplitCmd 离线核对一笔付款的平台费拆分，不需要数据库
var feeSplitCmd = &cobra.Command{
	Use:   "fee-split",
	Short: "计算平台费与创作者收入",
	Example: `  payout-cli fee-split --gross 9.99 --percent 15`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gross, err := decimalFlag(cmd, "gross")
		if err != nil {
			return err
		}
		pct, err := decimalFlag(cmd, "percent")
		if err != nil {
			return err
		}
		split, err := money.SplitFee(gross, pct)
		if err != nil {
			return err
		}
		fmt.Printf("gross:   %s\n", split.Gross.StringFixed(money.Scale))
		fmt.Printf("fee:     %s (%s%%)\n", split.Fee.StringFixed(money.Scale), split.Percentage.String())
		fmt.Printf("creator: %s\n", split.Net.StringFixed(money.Scale))
		return nil
	},
}

func init() {
	feeSplitCmd.Flags().String("gross", "", "付款金额")
	feeSplitCmd.Flags().String("percent", "10", "平台费百分比 (0-100)")
	_ = feeSplitCmd.MarkFlagRequired("gross")

	rootCmd.AddCommand(feeSplitCmd)
}
