package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"elfbaby/internal/service"
)

var listProductsOpts service.ProductQuery

func init() {
	f := listProductsCmd.Flags()
	f.StringVarP(&listProductsOpts.Keyword, "q", "q", "", "标题关键词")
	f.StringVar(&listProductsOpts.Category, "category", "", "分类 ID、标题或 slug")
	f.BoolVar(&listProductsOpts.IncludeInactive, "all", false, "包含已下架商品")
	f.IntVar(&listProductsOpts.Page, "page", 1, "页码")
	f.IntVar(&listProductsOpts.PageSize, "page-size", 20, "每页数量")
	rootCmd.AddCommand(listProductsCmd)
}

var listProductsCmd = &cobra.Command{
	Use:   "list-products <shop>",
	Short: "分页列出商家的商品（ID 用于文案与图片命令）",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustApp(cmd.Context())
		ctx := cmd.Context()
		db, err := a.DB()
		if err != nil {
			return err
		}
		shop, err := a.shopService(db).Resolve(ctx, args[0])
		if err != nil {
			return err
		}

		products, total, err := a.productService(db, nil).List(ctx, shop.ID, listProductsOpts)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Title", "Slug", "Price", "Active"})
		for _, p := range products {
			price := "-"
			if p.Price.Valid {
				price = p.Price.Decimal.StringFixed(2)
			}
			t.AppendRow(table.Row{p.ID, truncateCell(p.Title, 48), p.Slug, price, p.Active})
		}
		t.AppendFooter(table.Row{"", "", "", "Total", total})
		t.Render()
		fmt.Printf("商家: %s (%s)\n", shop.Title, shop.Domain)
		return nil
	},
}
