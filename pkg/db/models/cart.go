package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/seralvarez/casillero-backend/pkg/enums"
)

// Cart is the single active cart owned by a user. LastActivityAt is
// refreshed on every read or mutation and drives inactivity expiration.
type Cart struct {
	ID             uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	Status         enums.CartStatus `gorm:"column:status;type:text;not null;default:'active'"`
	LastActivityAt time.Time        `gorm:"column:last_activity_at;not null"`
	ExpiredAt      *time.Time       `gorm:"column:expired_at"`
	Items          []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
