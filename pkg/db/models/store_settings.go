package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoreSettings is a single-row table carrying the configurable store
// percentages. Readers fall back to compiled defaults when the row is
// missing or unreadable.
type StoreSettings struct {
	ID               int             `gorm:"primaryKey"`
	IVAPct           decimal.Decimal `gorm:"column:iva_pct;type:numeric(5,2);not null"`
	ServiceChargePct decimal.Decimal `gorm:"column:service_charge_pct;type:numeric(5,2);not null"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
