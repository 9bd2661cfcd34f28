package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ProductThread 商品社交文案
type ProductThread struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID      `gorm:"type:uuid;not null;index" json:"product_id"`
	Text      string         `gorm:"type:text;not null" json:"text"`
	Keywords  pq.StringArray `gorm:"type:text[]" json:"keywords"`
	CreatedAt time.Time      `json:"created_at"`
}

func (ProductThread) TableName() string {
	return "product_threads"
}

func (t *ProductThread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
