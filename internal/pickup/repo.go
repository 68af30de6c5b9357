package pickup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seralvarez/casillero-backend/pkg/db/models"
	"github.com/seralvarez/casillero-backend/pkg/enums"
)

// Repository covers the order reads and transitions the pickup flow needs.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a pickup repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository scoped to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads one order.
func (r *Repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var row models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// MarkPickedUp transitions an awaiting order to picked_up. Zero rows
// affected means the order was not awaiting pickup, so the transition
// already happened or the order was canceled.
func (r *Repository) MarkPickedUp(ctx context.Context, orderID uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusAwaitingPickup).
		Updates(map[string]any{
			"status":       enums.OrderStatusPickedUp,
			"picked_up_at": at,
			"updated_at":   at,
		})
	return result.RowsAffected, result.Error
}
