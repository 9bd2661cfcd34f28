package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"elfbaby/internal/service"
)

var rakutenOpts struct {
	max         int
	categories  string
	domain      string
	description string
	yes         bool
}

func init() {
	f := rakutenCmd.Flags()
	f.IntVar(&rakutenOpts.max, "max", 0, "最多导入的商品数，0 表示全部")
	f.StringVar(&rakutenOpts.categories, "categories", "", `分类编号，例如 "1,3,5"；为空时交互选择`)
	f.StringVar(&rakutenOpts.domain, "domain", "", "新建商家时使用的域名")
	f.StringVar(&rakutenOpts.description, "description", "", "新建商家时使用的描述")
	f.BoolVarP(&rakutenOpts.yes, "yes", "y", false, "跳过确认")
	rootCmd.AddCommand(rakutenCmd)
}

// prompter 从标准输入读取一行
type prompter struct {
	r *bufio.Reader
	w io.Writer
}

func newPrompter() *prompter {
	return &prompter{r: bufio.NewReader(os.Stdin), w: os.Stdout}
}

func (p *prompter) ask(question string) string {
	fmt.Fprint(p.w, question)
	line, _ := p.r.ReadString('\n')
	return strings.TrimSpace(line)
}

func (p *prompter) confirm(question string) bool {
	answer := strings.ToLower(p.ask(question + " [y/N]: "))
	return answer == "y" || answer == "yes"
}

var rakutenCmd = &cobra.Command{
	Use:   "rakuten-api [mid]",
	Short: "通过 Rakuten Advertising 接口导入商家的有货商品",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustApp(cmd.Context())
		ctx := cmd.Context()
		opts := rakutenOpts
		p := newPrompter()

		db, err := a.DB()
		if err != nil {
			return err
		}
		rs, err := a.rakutenService(db)
		if err != nil {
			return err
		}
		if err := rs.Connect(); err != nil {
			return err
		}

		mid := ""
		if len(args) == 1 {
			mid = strings.TrimSpace(args[0])
		}
		if mid == "" {
			mid = p.ask("商家 MID: ")
		}
		if mid == "" {
			return fmt.Errorf("%w: 缺少商家 MID", service.ErrInvalidArgument)
		}

		// 1. 商家
		shop, err := rs.FindShop(ctx, mid)
		if err != nil {
			return err
		}
		if shop != nil {
			fmt.Printf("已有商家: %s (%s)\n", shop.Title, shop.Domain)
		} else {
			info, err := rs.MerchantInfo(ctx, mid)
			if err != nil {
				return err
			}
			fmt.Printf("商家: %s\n分类: %s\n", info.MerchantName, info.MerchantCategoryPath)

			domain := opts.domain
			if domain == "" {
				domain = p.ask("商家域名: ")
			}
			desc := opts.description
			if desc == "" && !opts.yes {
				desc = p.ask("商家描述（可留空）: ")
			}
			if !opts.yes && !p.confirm(fmt.Sprintf("创建商家 %s (%s)?", info.MerchantName, service.NormalizeDomain(domain))) {
				fmt.Println("已取消")
				return nil
			}
			shop, err = rs.CreateShop(ctx, info, service.RakutenShopInput{MID: mid, Domain: domain, Description: desc})
			if err != nil {
				return err
			}
			fmt.Printf("✅ 商家: %s (%s)\n", shop.Title, shop.ID)
		}

		// 2. 商品
		products, err := rs.FetchProducts(ctx, mid, opts.max)
		if err != nil {
			return err
		}
		if len(products) == 0 {
			fmt.Println("没有有货商品")
			return nil
		}
		fmt.Printf("拉取到 %d 个有货商品\n", len(products))

		// 3. 分类
		categories, err := rs.Categories(ctx)
		if err != nil {
			return err
		}
		selection := opts.categories
		if selection == "" && len(categories) > 0 {
			t := newTable()
			t.AppendHeader(table.Row{"#", "Category"})
			for i := range categories {
				t.AppendRow(table.Row{i + 1, categories[i].Path()})
			}
			t.Render()
			selection = p.ask("选择分类编号（逗号分隔，可留空）: ")
		}
		categoryIDs := service.SelectCategories(categories, selection)

		if !opts.yes && !p.confirm(fmt.Sprintf("导入 %d 个商品到 %s?", len(products), shop.Title)) {
			fmt.Println("已取消")
			return nil
		}

		// 4. 入库
		report, err := rs.ImportProducts(ctx, shop, products, categoryIDs)
		if err != nil {
			return err
		}
		printImportReport(report)
		if report.Failed > 0 {
			return fmt.Errorf("%d 个商品入库失败", report.Failed)
		}
		return nil
	},
}
