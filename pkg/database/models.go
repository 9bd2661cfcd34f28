package database

import "elfbaby/internal/model"

// Models 返回需要迁移的全部表
func Models() []interface{} {
	return []interface{}{
		&model.Shop{},
		&model.Category{},
		&model.Product{},
		&model.ProductCategory{},
		&model.ProductThread{},
		&model.AICallLog{},
	}
}
