package checkout

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seralvarez/casillero-backend/pkg/enums"
)

// OrderItemDTO is one frozen line of a placed order.
type OrderItemDTO struct {
	ProductID        uuid.UUID       `json:"product_id"`
	Name             string          `json:"name"`
	Quantity         int             `json:"quantity"`
	UnitPriceBase    decimal.Decimal `json:"unit_price_base"`
	UnitPriceFinal   decimal.Decimal `json:"unit_price_final"`
	LineTotal        decimal.Decimal `json:"line_total"`
	DisplayLineTotal string          `json:"display_line_total"`
}

// OrderDTO is the API shape of a placed order. Totals and percentages are
// the values frozen at placement, not the current store settings.
type OrderDTO struct {
	ID                   uuid.UUID         `json:"id"`
	Status               enums.OrderStatus `json:"status"`
	Items                []OrderItemDTO    `json:"items"`
	IVAPct               decimal.Decimal   `json:"iva_pct"`
	ServiceChargePct     decimal.Decimal   `json:"service_charge_pct"`
	Subtotal             decimal.Decimal   `json:"subtotal"`
	ServiceCharge        decimal.Decimal   `json:"service_charge"`
	Total                decimal.Decimal   `json:"total"`
	DisplaySubtotal      string            `json:"display_subtotal"`
	DisplayServiceCharge string            `json:"display_service_charge"`
	DisplayTotal         string            `json:"display_total"`
	PickupToken          string            `json:"pickup_token,omitempty"`
	LockerNumber         int               `json:"locker_number"`
	PlacedAt             time.Time         `json:"placed_at"`
	PickedUpAt           *time.Time        `json:"picked_up_at,omitempty"`
}
