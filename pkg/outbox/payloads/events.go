package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderPlacedEvent tells the locker controller to reserve a compartment
// and stage the order for pickup.
type OrderPlacedEvent struct {
	OrderID      uuid.UUID       `json:"orderId"`
	UserID       uuid.UUID       `json:"userId"`
	LockerNumber int             `json:"lockerNumber"`
	Total        decimal.Decimal `json:"total"`
	ItemCount    int             `json:"itemCount"`
	PlacedAt     time.Time       `json:"placedAt"`
}

// CartExpiredEvent is emitted when the sweeper expires an inactive cart.
type CartExpiredEvent struct {
	CartID    uuid.UUID `json:"cartId"`
	UserID    uuid.UUID `json:"userId"`
	ItemCount int       `json:"itemCount"`
	ExpiredAt time.Time `json:"expiredAt"`
}

// PickupVerifiedEvent signals the locker to open after a successful token check.
type PickupVerifiedEvent struct {
	OrderID      uuid.UUID `json:"orderId"`
	UserID       uuid.UUID `json:"userId"`
	LockerNumber int       `json:"lockerNumber"`
	VerifiedAt   time.Time `json:"verifiedAt"`
}
