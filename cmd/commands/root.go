package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "elfbaby",
	Short:         "elfbaby 礼品导购：前台接口与商品导入工具",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		if slot := slotFrom(cmd.Context()); slot != nil {
			slot.app = a
		}
		cmd.SetContext(withApp(cmd.Context(), a))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "配置文件路径")
}

// appSlot 记录本次执行创建的 app，命令返回后统一释放
type appSlot struct {
	app *app
}

type slotKey struct{}

func slotFrom(ctx context.Context) *appSlot {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(slotKey{}).(*appSlot)
	return s
}

// ExecuteContext 执行命令，错误交给调用方；无论成功与否都会释放数据库与日志
func ExecuteContext(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	slot := &appSlot{}
	defer func() {
		if slot.app != nil {
			slot.app.Close()
		}
	}()
	return rootCmd.ExecuteContext(context.WithValue(ctx, slotKey{}, slot))
}
