package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductDTO is the storefront projection of a catalog row. UnitPriceFinal
// is derived with the store IVA at read time.
type ProductDTO struct {
	ID             uuid.UUID        `json:"id"`
	CategoryID     *uuid.UUID       `json:"category_id,omitempty"`
	CategoryName   string           `json:"category_name,omitempty"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Image          string           `json:"image"`
	UnitPriceBase  decimal.Decimal  `json:"unit_price_base"`
	UnitPriceFinal decimal.Decimal  `json:"unit_price_final"`
	DisplayPrice   string           `json:"display_price"`
	SalePct        *decimal.Decimal `json:"sale_pct,omitempty"`
	Rating         *decimal.Decimal `json:"rating,omitempty"`
	Stock          int              `json:"stock"`
	IsActive       bool             `json:"is_active"`
	CreatedAt      time.Time        `json:"created_at"`
}

// ProductPageDTO is a cursor-paginated product listing.
type ProductPageDTO struct {
	Items      []ProductDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// CategoryDTO is the public category projection.
type CategoryDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// ListParams filters the product listing.
type ListParams struct {
	Query        string
	CategorySlug string
	Cursor       string
	Limit        int
}

// UpsertProductInput carries the admin create/update payload.
type UpsertProductInput struct {
	CategoryID    *uuid.UUID       `json:"category_id"`
	Name          string           `json:"name" validate:"required,min=1,max=200"`
	Description   string           `json:"description"`
	Image         string           `json:"image"`
	UnitPriceBase decimal.Decimal  `json:"unit_price_base"`
	SalePct       *decimal.Decimal `json:"sale_pct"`
	Stock         int              `json:"stock" validate:"gte=0"`
	IsActive      *bool            `json:"is_active"`
}
