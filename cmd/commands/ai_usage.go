package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"elfbaby/internal/repository"
)

var aiUsageDays int

func init() {
	aiUsageCmd.Flags().IntVar(&aiUsageDays, "days", 7, "统计最近 N 天")
	rootCmd.AddCommand(aiUsageCmd)
}

var aiUsageCmd = &cobra.Command{
	Use:   "ai-usage",
	Short: "查看 Gemini 调用次数与 token 用量",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustApp(cmd.Context())
		if aiUsageDays <= 0 {
			return fmt.Errorf("--days 必须大于 0")
		}
		db, err := a.DB()
		if err != nil {
			return err
		}
		calls := repository.NewAICallLogRepository(db)

		end := time.Now()
		start := end.AddDate(0, 0, -aiUsageDays)
		daily, err := calls.GetDailyUsage(cmd.Context(), start, end)
		if err != nil {
			return fmt.Errorf("查询每日用量失败: %w", err)
		}
		total, err := calls.GetUsage(cmd.Context(), start, end)
		if err != nil {
			return fmt.Errorf("查询用量失败: %w", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Date", "Calls", "Input Tokens", "Output Tokens", "Failed"})
		for _, d := range daily {
			t.AppendRow(table.Row{d.Date, d.TotalCalls, d.TotalInputTokens, d.TotalOutputTokens, d.FailedCount})
		}
		t.AppendFooter(table.Row{"Total", total.TotalCalls, total.TotalInputTokens, total.TotalOutputTokens, total.FailedCount})
		t.Render()

		fmt.Printf("描述 %d 次，文案 %d 次，平均耗时 %.0f ms\n", total.DescriptionCalls, total.ThreadCalls, total.AvgDurationMs)
		return nil
	},
}
