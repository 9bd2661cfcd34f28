package repository

import (
	"context"

	"gorm.io/gorm"
)

// CatalogUnitOfWork 目录工作单元（事务）
type CatalogUnitOfWork struct {
	db         *gorm.DB
	Shops      ShopRepository
	Categories CategoryRepository
	Products   ProductRepository
	Threads    ThreadRepository
}

// NewCatalogUnitOfWork 创建工作单元
func NewCatalogUnitOfWork(db *gorm.DB) *CatalogUnitOfWork {
	return &CatalogUnitOfWork{
		db:         db,
		Shops:      NewShopRepository(db),
		Categories: NewCategoryRepository(db),
		Products:   NewProductRepository(db),
		Threads:    NewThreadRepository(db),
	}
}

// Transaction 执行事务
func (u *CatalogUnitOfWork) Transaction(ctx context.Context, fn func(uow *CatalogUnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewCatalogUnitOfWork(tx))
	})
}
