package settings

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seralvarez/casillero-backend/pkg/db/models"
)

const settingsRowID = 1

// Repository encapsulates store_settings persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a settings repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Fetch loads the singleton settings row.
func (r *Repository) Fetch(ctx context.Context) (models.StoreSettings, error) {
	var row models.StoreSettings
	err := r.db.WithContext(ctx).
		Where("id = ?", settingsRowID).
		First(&row).Error
	return row, err
}

// Upsert writes the singleton settings row.
func (r *Repository) Upsert(ctx context.Context, row models.StoreSettings) error {
	row.ID = settingsRowID
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"iva_pct", "service_charge_pct", "updated_at"}),
		}).
		Create(&row).Error
}
