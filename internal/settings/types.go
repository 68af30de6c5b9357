package settings

import (
	"github.com/shopspring/decimal"
)

// StoreSettingsDTO is the public settings projection served to the storefront.
type StoreSettingsDTO struct {
	IVAPct           decimal.Decimal `json:"iva_pct"`
	ServiceChargePct decimal.Decimal `json:"service_charge_pct"`
}

// UpdateSettingsInput carries the admin update payload.
type UpdateSettingsInput struct {
	IVAPct           decimal.Decimal `json:"iva_pct"`
	ServiceChargePct decimal.Decimal `json:"service_charge_pct"`
}
