package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"elfbaby/internal/model"
	"elfbaby/internal/service"
)

var threadOpts struct {
	fromJSON string
	generate bool
	ai       int
	shop     string
}

func init() {
	f := newThreadsCmd.Flags()
	f.StringVar(&threadOpts.fromJSON, "from-json", "", "从 JSON 读取文案（数组或 {threads: [...]}）")
	f.BoolVar(&threadOpts.generate, "generate", false, "按模板生成一条文案")
	f.IntVar(&threadOpts.ai, "ai", 0, "使用 Gemini 生成 N 条文案")

	missingThreadsCmd.Flags().StringVar(&threadOpts.shop, "shop", "", "商家 ID，默认使用 amazon.shop_id")

	rootCmd.AddCommand(newThreadsCmd, missingThreadsCmd)
}

var newThreadsCmd = &cobra.Command{
	Use:   "new-product-threads <product-id>",
	Short: "为商品添加社交文案；不带参数时输出商品信息与示例",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustApp(cmd.Context())
		ctx := cmd.Context()
		productID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("商品 ID 格式不正确: %s", args[0])
		}

		db, err := a.DB()
		if err != nil {
			return err
		}
		threads := a.threadService(db)

		var created []model.ProductThread
		switch {
		case threadOpts.fromJSON != "":
			data, err := os.ReadFile(threadOpts.fromJSON)
			if err != nil {
				return fmt.Errorf("读取 JSON 文件失败: %w", err)
			}
			inputs, err := service.ParseThreadsJSON(data)
			if err != nil {
				return err
			}
			created, err = threads.AddThreads(ctx, productID, inputs)
			if err != nil {
				return err
			}
		case threadOpts.generate:
			th, err := threads.AddTemplateThread(ctx, productID)
			if err != nil {
				return err
			}
			created = []model.ProductThread{*th}
		case threadOpts.ai > 0:
			created, err = threads.AddAIThreads(ctx, productID, threadOpts.ai)
			if err != nil {
				return err
			}
		default:
			preview, err := threads.Preview(ctx, productID)
			if err != nil {
				return err
			}
			printThreadPreview(preview)
			return nil
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Text", "Keywords"})
		for _, th := range created {
			t.AppendRow(table.Row{th.ID, truncateCell(th.Text, 80), strings.Join(th.Keywords, ", ")})
		}
		t.Render()
		fmt.Printf("✅ 已添加 %d 条文案\n", len(created))
		return nil
	},
}

func printThreadPreview(p *service.ThreadPreview) {
	t := newTable()
	t.AppendHeader(table.Row{"字段", "值"})
	t.AppendRows([]table.Row{
		{"ID", p.Product.ID},
		{"Title", p.Product.Title},
		{"Description", truncateCell(p.Product.Description, 200)},
		{"Categories", strings.Join(p.Categories, ", ")},
		{"Keywords", strings.Join(p.Keywords, ", ")},
	})
	t.Render()

	fmt.Println("\n使用 --from-json 导入文案，格式示例:")
	fmt.Println(p.Example)
	fmt.Println("\n或使用 --generate 生成模板文案，--ai N 使用 Gemini 生成")
}

var missingThreadsCmd = &cobra.Command{
	Use:   "generate-missing-threads",
	Short: "为商家下没有文案的商品各生成一条模板文案",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustApp(cmd.Context())
		raw := threadOpts.shop
		if raw == "" {
			raw = a.cfg.Amazon.ShopID
		}
		shopID, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("商家 ID 格式不正确: %s", raw)
		}

		db, err := a.DB()
		if err != nil {
			return err
		}
		result, err := a.threadService(db).GenerateMissing(cmd.Context(), shopID)
		if err != nil {
			return err
		}

		fmt.Printf("缺少文案 %d 个，已生成 %d 个，失败 %d 个\n", result.Total, result.Created, result.Failed)
		return nil
	},
}
