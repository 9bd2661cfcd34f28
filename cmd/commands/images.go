package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"elfbaby/internal/service"
)

var imagesOpts struct {
	fromJSON string
	mirror   bool
}

func init() {
	f := fixImagesCmd.Flags()
	f.StringVar(&imagesOpts.fromJSON, "from-json", "", `从 JSON 读取 {"id": "...", "images": [...]}，相对路径放在 tmp/ 下`)
	f.BoolVar(&imagesOpts.mirror, "mirror", false, "先上传到对象存储再写入")
	rootCmd.AddCommand(fixImagesCmd)
}

var fixImagesCmd = &cobra.Command{
	Use:   "fix-product-images <product-id> [image-url...]",
	Short: "替换商品图片",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustApp(cmd.Context())
		productID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("商品 ID 格式不正确: %s", args[0])
		}

		images := args[1:]
		if imagesOpts.fromJSON != "" {
			f, err := service.LoadImagesJSON(imagesOpts.fromJSON)
			if err != nil {
				return err
			}
			if f.ID != "" && f.ID != productID.String() {
				fmt.Printf("⚠️  JSON 中的 id (%s) 与参数不一致，以参数为准\n", f.ID)
			}
			images = append(images, f.Images...)
		}
		if len(images) == 0 {
			return service.ErrNoImages
		}

		db, err := a.DB()
		if err != nil {
			return err
		}
		products := a.productService(db, nil)
		if imagesOpts.mirror {
			storage, err := a.storageService()
			if err != nil {
				return err
			}
			products.WithMirror(storage)
		}

		product, err := products.FixImages(cmd.Context(), productID, images, imagesOpts.mirror)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"#", "Image"})
		for i, img := range product.Images {
			t.AppendRow(table.Row{i + 1, img})
		}
		t.Render()
		fmt.Printf("✅ %s 图片已更新\n", product.Title)
		return nil
	},
}
