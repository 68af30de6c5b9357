package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItemDTO is one rendered cart line. Prices include IVA and line totals
// keep full precision; DisplayPrice is rounded for the UI only.
type CartItemDTO struct {
	ProductID      uuid.UUID       `json:"product_id"`
	Name           string          `json:"name"`
	Image          string          `json:"image"`
	UnitPriceBase  decimal.Decimal `json:"unit_price_base"`
	UnitPriceFinal decimal.Decimal `json:"unit_price_final"`
	Quantity       int             `json:"quantity"`
	Stock          int             `json:"stock"`
	LineTotal      decimal.Decimal `json:"line_total"`
	DisplayPrice   string          `json:"display_price"`
}

// CartTotalsDTO carries the running checkout summary.
type CartTotalsDTO struct {
	Subtotal             decimal.Decimal `json:"subtotal"`
	ServiceCharge        decimal.Decimal `json:"service_charge"`
	Total                decimal.Decimal `json:"total"`
	DisplaySubtotal      string          `json:"display_subtotal"`
	DisplayServiceCharge string          `json:"display_service_charge"`
	DisplayTotal         string          `json:"display_total"`
	IVAPct               decimal.Decimal `json:"iva_pct"`
	ServiceChargePct     decimal.Decimal `json:"service_charge_pct"`
}

// CartDTO is the full cart view returned to the storefront.
type CartDTO struct {
	ID             uuid.UUID     `json:"id"`
	Items          []CartItemDTO `json:"items"`
	Totals         CartTotalsDTO `json:"totals"`
	LastActivityAt time.Time     `json:"last_activity_at"`
}

// AddItemInput is the payload for POST /cart/items.
type AddItemInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// SetQuantityInput is the payload for PUT /cart/items/{productID}.
type SetQuantityInput struct {
	Quantity int `json:"quantity"`
}
