package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"elfbaby/internal/service"
)

var amazonOpts service.AmazonOptions

func init() {
	f := amazonCmd.Flags()
	f.StringVar(&amazonOpts.AgeGroup, "age", "", `年龄段，例如 "0-12 months"`)
	f.StringVar(&amazonOpts.Category, "category", "", "分类标题，导入时关联")
	f.StringVar(&amazonOpts.Keyword, "keyword", "", "搜索关键词，默认轮换内置关键词")
	f.IntVar(&amazonOpts.Limit, "limit", service.DefaultAmazonCycles, "导入轮数")
	rootCmd.AddCommand(amazonCmd)
}

var amazonCmd = &cobra.Command{
	Use:   "amazon-bestsellers",
	Short: "循环搜索 Amazon 畅销商品并导入到 Amazon 商家",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustApp(cmd.Context())
		db, err := a.DB()
		if err != nil {
			return err
		}

		report, err := a.amazonService(db).Run(cmd.Context(), amazonOpts)
		if report != nil {
			printAmazonReport(report)
		}
		if err != nil {
			return err
		}
		if report.Imported == 0 {
			return fmt.Errorf("没有导入任何商品")
		}
		return nil
	},
}

func printAmazonReport(report *service.AmazonReport) {
	t := newTable()
	t.AppendHeader(table.Row{"#", "Keyword", "ASIN", "Status", "Product", "Note"})
	for _, c := range report.Cycles {
		product, note := "", ""
		if c.Product != nil {
			product = truncateCell(c.Product.Title, 48)
		}
		if c.Err != nil {
			note = truncateCell(c.Err.Error(), 60)
		} else if c.Entry > 0 {
			note = fmt.Sprintf("checklist #%d", c.Entry)
		}
		t.AppendRow(table.Row{c.Number, c.Keyword, c.ASIN, string(c.Status), product, note})
	}
	t.AppendFooter(table.Row{"", "", "", "imported", report.Imported, ""})
	t.Render()

	if report.Shop != nil {
		fmt.Printf("商家: %s (%s)\n", report.Shop.Title, report.Shop.ID)
	}
	for _, c := range report.Cycles {
		if c.Status == service.CycleImported && c.Affiliate != "" {
			fmt.Printf("  %s\n", c.Affiliate)
		}
	}
}
