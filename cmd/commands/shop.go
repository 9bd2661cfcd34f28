package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"elfbaby/internal/api/dto"
	"elfbaby/internal/scraper"
	"elfbaby/internal/service"
	"elfbaby/pkg/utils"
)

var newShopCategory string

func init() {
	newShopCmd.Flags().StringVar(&newShopCategory, "category", "", "商家主分类，默认取首页提取到的第一个分类")
	rootCmd.AddCommand(newShopCmd, listShopsCmd)
}

var newShopCmd = &cobra.Command{
	Use:   "new-shop <url> [description]",
	Short: "抓取商家首页并创建商家；不带描述时只输出提取结果",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustApp(cmd.Context())
		ctx := cmd.Context()
		url := args[0]

		// 提取阶段只需要抓取，不连接数据库
		shops := service.NewShopService(nil, a.fetcher(utils.ProfileDefault), a.cfg.Catalog.CategoriesFile, a.log)
		info, err := shops.Inspect(ctx, url)
		if err != nil {
			return err
		}
		printShopInfo(info)

		if len(args) < 2 {
			fmt.Println("\n未提供描述：请根据以上信息撰写商家描述后重新执行")
			fmt.Printf("  elfbaby new-shop %s \"<description>\"\n", url)
			return nil
		}

		db, err := a.DB()
		if err != nil {
			return err
		}
		res, err := a.shopService(db).Create(ctx, service.CreateShopInput{
			URL:         url,
			Description: args[1],
			Category:    newShopCategory,
			Info:        info,
		})
		if err != nil {
			if errors.Is(err, service.ErrShopExists) {
				fmt.Printf("商家已存在: %s\n", info.Domain)
			}
			return err
		}

		if res.ShortDescription {
			fmt.Printf("⚠️  描述少于 %d 个字符，建议补充\n", service.MinDescriptionLength)
		}
		if len(res.AddedCategories) > 0 {
			fmt.Printf("新增分类 %d 个: %s\n", len(res.AddedCategories), strings.Join(res.AddedCategories, ", "))
		}
		fmt.Printf("✅ 商家已创建: %s (%s)\n", res.Shop.Title, res.Shop.ID)
		return nil
	},
}

func printShopInfo(info *scraper.ShopInfo) {
	t := newTable()
	t.AppendHeader(table.Row{"字段", "值"})
	t.AppendRows([]table.Row{
		{"Title", info.Title},
		{"Domain", info.Domain},
		{"Logo", info.Logo},
		{"Categories", strings.Join(info.Categories, ", ")},
		{"Markets", strings.Join(info.Markets, ", ")},
		{"Shipping", info.Shipping},
		{"Text", scraper.Truncate(info.TextContent, 300)},
	})
	t.Render()
}

var listShopsCmd = &cobra.Command{
	Use:   "list-shops",
	Short: "列出全部商家",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustApp(cmd.Context())
		db, err := a.DB()
		if err != nil {
			return err
		}
		resp, err := a.shopService(db).List(cmd.Context(), dto.ShopListReq{PageSize: 1000}, false)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Title", "Domain", "Category", "Markets"})
		for _, s := range resp.List {
			t.AppendRow(table.Row{s.ID, s.Title, s.Domain, s.Category, strings.Join(s.Markets, ", ")})
		}
		t.AppendFooter(table.Row{"", "", "", "Total", resp.Total})
		t.Render()
		return nil
	},
}
