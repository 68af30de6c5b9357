package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem snapshots the product fields the storefront renders so the
// cart stays displayable even if the listing changes underneath it.
// Quantity is clamped to Stock at mutation time and never drops below 1.
type CartItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CartID        uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_product"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_product"`
	Name          string          `gorm:"type:text;not null"`
	Image         string          `gorm:"type:text;not null;default:''"`
	UnitPriceBase decimal.Decimal `gorm:"column:unit_price_base;type:numeric(12,2);not null"`
	Quantity      int             `gorm:"column:quantity;not null"`
	Stock         int             `gorm:"column:stock;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
