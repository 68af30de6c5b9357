package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seralvarez/casillero-backend/pkg/db"
	"github.com/seralvarez/casillero-backend/pkg/db/models"
	"github.com/seralvarez/casillero-backend/pkg/enums"
)

// Repository encapsulates cart persistence. Mutations are expected to run
// inside a transaction scoped via WithTx so the cart row lock serializes
// concurrent changes to the same cart.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindActiveByUser returns the user's active cart with items.
func (r *Repository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var record models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ? AND status = ?", userID, enums.CartStatusActive).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// LockActiveByUser loads and row-locks the user's active cart. Two
// concurrent mutations on the same cart serialize on this lock.
func (r *Repository) LockActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var record models.Cart
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND status = ?", userID, enums.CartStatusActive).
		First(&record).Error
	if err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", record.ID).
		Order("created_at ASC").
		Find(&record.Items).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// LockOrCreateActiveByUser returns the locked active cart, creating an empty
// one when the user has none yet.
func (r *Repository) LockOrCreateActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	record, err := r.LockActiveByUser(ctx, userID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := models.Cart{
		UserID:         userID,
		Status:         enums.CartStatusActive,
		LastActivityAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&fresh).Error; err != nil {
		// A concurrent first mutation may have created the cart between
		// the lookup and the insert; merge into that row instead.
		if db.IsUniqueViolation(err, "") {
			return r.LockActiveByUser(ctx, userID)
		}
		return nil, err
	}
	return &fresh, nil
}

// UpsertItem inserts a cart line or overwrites the mutable columns of an
// existing one.
func (r *Repository) UpsertItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "image", "unit_price_base", "quantity", "stock", "updated_at"}),
		}).
		Create(item).Error
}

// DeleteItem removes one cart line.
func (r *Repository) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&models.CartItem{})
	return result.RowsAffected, result.Error
}

// DeleteItems removes every line in the cart.
func (r *Repository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}

// Touch refreshes the activity timestamp that drives inactivity expiration.
func (r *Repository) Touch(ctx context.Context, cartID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("last_activity_at", at).Error
}

// UpdateStatus transitions the cart, guarded on the current status so a
// terminal transition applies at most once.
func (r *Repository) UpdateStatus(ctx context.Context, cartID uuid.UUID, from, to enums.CartStatus) (int64, error) {
	updates := map[string]any{"status": to}
	if to == enums.CartStatusExpired {
		updates["expired_at"] = time.Now()
	}
	result := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", cartID, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// FindInactiveSince returns active carts whose last activity predates the
// cutoff, oldest first, capped at limit.
func (r *Repository) FindInactiveSince(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	var rows []models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND last_activity_at < ?", enums.CartStatusActive, cutoff).
		Order("last_activity_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
