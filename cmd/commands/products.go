package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"elfbaby/internal/service"
	"elfbaby/pkg/utils"
)

var newProductsOpts struct {
	limit            int
	fromJSON         string
	withDescriptions bool
	aiDescriptions   bool
}

func init() {
	f := newProductsCmd.Flags()
	f.IntVar(&newProductsOpts.limit, "limit", service.DefaultDiscoverLimit, "未指定链接时从首页发现的商品数量")
	f.StringVar(&newProductsOpts.fromJSON, "from-json", "", "从 JSON 草稿文件导入")
	f.BoolVar(&newProductsOpts.withDescriptions, "with-descriptions", false, "抓取结果直接入库（不导出草稿）")
	f.BoolVar(&newProductsOpts.aiDescriptions, "ai-descriptions", false, "使用 Gemini 生成描述后入库")
	rootCmd.AddCommand(newProductsCmd)
}

var newProductsCmd = &cobra.Command{
	Use:   "new-products <shop> [urls...|file.json]",
	Short: "抓取商品页或读取 JSON 草稿并导入到商家",
	Long: `shop 可以是域名、商家 ID 或标题关键词。
未指定链接时从商家首页发现商品链接；不带 --with-descriptions 时
抓取结果写入 products-temp.json，补好描述后用 --from-json 导入。`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustApp(cmd.Context())
		ctx := cmd.Context()
		opts := newProductsOpts

		db, err := a.DB()
		if err != nil {
			return err
		}
		shop, err := a.shopService(db).Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("商家: %s (%s)\n", shop.Title, shop.Domain)

		products := a.productService(db, a.fetcher(utils.ProfileDefault))

		jsonPath := opts.fromJSON
		if jsonPath == "" && len(args) == 2 && strings.HasSuffix(strings.ToLower(args[1]), ".json") {
			jsonPath = args[1]
		}

		var drafts []service.ProductDraft
		source := service.SourceScrape
		if jsonPath != "" {
			drafts, err = products.LoadDraftsJSON(jsonPath)
			if err != nil {
				return err
			}
			source = service.SourceJSON
			fmt.Printf("从 %s 读取 %d 个商品\n", jsonPath, len(drafts))
		} else {
			urls := args[1:]
			if len(urls) == 0 {
				urls, err = products.DiscoverURLs(ctx, shop, opts.limit)
				if err != nil {
					return err
				}
				fmt.Printf("首页发现 %d 个商品链接\n", len(urls))
			}
			drafts, err = products.ScrapeDrafts(ctx, urls)
			if err != nil {
				return err
			}
		}
		if len(drafts) == 0 {
			return fmt.Errorf("没有可导入的商品")
		}

		if jsonPath == "" && !opts.withDescriptions && !opts.aiDescriptions {
			path := a.cfg.Catalog.TempProducts
			if err := products.ExportDrafts(path, drafts); err != nil {
				return err
			}
			fmt.Printf("\n已导出 %d 个草稿到 %s，补充 description 后执行:\n", len(drafts), path)
			fmt.Printf("  elfbaby new-products %s --from-json %s\n", args[0], path)
			return nil
		}

		if opts.aiDescriptions {
			ai, err := a.aiService(db)
			if err != nil {
				return err
			}
			if err := products.WithDescriber(ai).GenerateDescriptions(ctx, drafts); err != nil {
				return err
			}
		}

		report, err := products.ImportDrafts(ctx, shop.ID, drafts, service.ImportOptions{Source: source})
		if err != nil {
			return err
		}
		printImportReport(report)

		if report.Created > 0 {
			fmt.Println("\n为新商品添加文案:")
			for _, r := range report.Results {
				if r.Status == service.ImportCreated {
					fmt.Printf("  elfbaby new-product-threads %s --generate\n", r.Product.ID)
				}
			}
		}
		if report.Failed > 0 {
			return fmt.Errorf("%d 个商品入库失败", report.Failed)
		}
		return nil
	},
}

func printImportReport(report *service.ImportReport) {
	t := newTable()
	t.AppendHeader(table.Row{"Title", "Slug", "Status", "Categories", "Note"})
	for _, r := range report.Results {
		note := ""
		switch {
		case r.Err != nil:
			note = r.Err.Error()
		case r.Status == service.ImportExists && r.Product != nil:
			note = "id " + r.Product.ID.String()
		}
		t.AppendRow(table.Row{
			truncateCell(r.Title, 48),
			r.Slug,
			string(r.Status),
			strings.Join(r.Categories, ", "),
			truncateCell(note, 60),
		})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("created %d", report.Created),
		fmt.Sprintf("exists %d", report.Exists),
		fmt.Sprintf("skipped %d", report.Skipped),
		fmt.Sprintf("failed %d", report.Failed),
		"",
	})
	t.Render()
}

func truncateCell(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
