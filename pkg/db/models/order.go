package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seralvarez/casillero-backend/pkg/enums"
)

// Order is a checkout snapshot awaiting locker pickup. Totals and the
// percentages in force are frozen at placement time.
type Order struct {
	ID               uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status           enums.OrderStatus `gorm:"column:status;type:text;not null;default:'awaiting_pickup'"`
	IVAPct           decimal.Decimal   `gorm:"column:iva_pct;type:numeric(5,2);not null"`
	ServiceChargePct decimal.Decimal   `gorm:"column:service_charge_pct;type:numeric(5,2);not null"`
	Subtotal         decimal.Decimal   `gorm:"column:subtotal;type:numeric(14,4);not null"`
	ServiceCharge    decimal.Decimal   `gorm:"column:service_charge;type:numeric(14,4);not null"`
	Total            decimal.Decimal   `gorm:"column:total;type:numeric(14,4);not null"`
	PickupToken      string            `gorm:"column:pickup_token;type:char(6);not null"`
	LockerNumber     int               `gorm:"column:locker_number;not null"`
	PickedUpAt       *time.Time        `gorm:"column:picked_up_at"`
	Items            []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem freezes one cart line at checkout. UnitPriceFinal is the
// IVA-inclusive price actually charged.
type OrderItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Name           string          `gorm:"type:text;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPriceBase  decimal.Decimal `gorm:"column:unit_price_base;type:numeric(12,2);not null"`
	UnitPriceFinal decimal.Decimal `gorm:"column:unit_price_final;type:numeric(14,4);not null"`
	LineTotal      decimal.Decimal `gorm:"column:line_total;type:numeric(14,4);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
