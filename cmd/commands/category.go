package commands

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newCategoryCmd, listCategoriesCmd)
}

var newCategoryCmd = &cobra.Command{
	Use:   `new-category <"Title" | "Parent > Child">...`,
	Short: "创建分类，父级不存在时一并创建",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustApp(cmd.Context())
		db, err := a.DB()
		if err != nil {
			return err
		}

		results, failed := a.categoryService(db).CreateMany(cmd.Context(), args)
		t := newTable()
		t.AppendHeader(table.Row{"Input", "Path", "Status"})
		for _, r := range results {
			status := "created"
			switch {
			case r.Skipped:
				status = "exists"
			case r.ParentCreated:
				status = "created (+parent)"
			}
			t.AppendRow(table.Row{r.Input, r.Category.Path(), status})
		}
		t.Render()

		if failed > 0 {
			return fmt.Errorf("%d 个分类创建失败", failed)
		}
		return nil
	},
}

var listCategoriesCmd = &cobra.Command{
	Use:   "list-categories",
	Short: "以完整路径列出全部分类",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustApp(cmd.Context())
		db, err := a.DB()
		if err != nil {
			return err
		}
		categories, err := a.categoryService(db).ListAll(cmd.Context())
		if err != nil {
			return err
		}

		paths := make([]string, len(categories))
		ids := make(map[string]string, len(categories))
		for i := range categories {
			paths[i] = categories[i].Path()
			ids[paths[i]] = categories[i].ID.String()
		}
		sort.Strings(paths)

		t := newTable()
		t.AppendHeader(table.Row{"Path", "ID"})
		for _, p := range paths {
			t.AppendRow(table.Row{p, ids[p]})
		}
		t.AppendFooter(table.Row{"Total", len(paths)})
		t.Render()
		return nil
	},
}
