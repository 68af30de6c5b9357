package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog listing. UnitPriceBase is tax-exclusive; the
// IVA-inclusive display price is derived at read time.
type Product struct {
	ID            uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CategoryID    *uuid.UUID       `gorm:"column:category_id;type:uuid;index"`
	Name          string           `gorm:"type:text;not null"`
	Description   string           `gorm:"type:text;not null;default:''"`
	Image         string           `gorm:"type:text;not null;default:''"`
	UnitPriceBase decimal.Decimal  `gorm:"column:unit_price_base;type:numeric(12,2);not null"`
	SalePct       *decimal.Decimal `gorm:"column:sale_pct;type:numeric(5,2)"`
	Rating        *decimal.Decimal `gorm:"column:rating;type:numeric(3,2)"`
	Stock         int              `gorm:"column:stock;not null;default:0"`
	IsActive      bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`

	Category *Category `gorm:"foreignKey:CategoryID"`
}
