package commands

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runTaskCmd)
}

var runTaskCmd = &cobra.Command{
	Use:   "run-task [name]",
	Short: "立即执行一个定时任务；不带参数时列出已注册任务",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustApp(cmd.Context())
		db, err := a.DB()
		if err != nil {
			return err
		}
		tm, err := buildTaskManager(a, db)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			status := tm.Status()
			names := make([]string, 0, len(status))
			for name := range status {
				names = append(names, name)
			}
			sort.Strings(names)

			t := newTable()
			t.AppendHeader(table.Row{"Task", "Scheduled"})
			for _, name := range names {
				t.AppendRow(table.Row{name, status[name]})
			}
			t.Render()
			return nil
		}

		if err := tm.RunNow(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("任务 %s 执行失败: %w", args[0], err)
		}
		fmt.Printf("✅ 任务 %s 已完成\n", args[0])
		return nil
	},
}
