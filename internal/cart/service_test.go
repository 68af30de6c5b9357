package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/seralvarez/casillero-backend/internal/catalog"
	"github.com/seralvarez/casillero-backend/internal/settings"
	"github.com/seralvarez/casillero-backend/pkg/db/models"
	"github.com/seralvarez/casillero-backend/pkg/enums"
	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type stubWindows struct {
	started  int
	refreshs int
	releases int
}

func (s *stubWindows) EnsureStarted(context.Context, uuid.UUID) error {
	s.started++
	return nil
}

func (s *stubWindows) Refresh(context.Context, uuid.UUID) error {
	s.refreshs++
	return nil
}

func (s *stubWindows) Release(context.Context, uuid.UUID) error {
	s.releases++
	return nil
}

type staticSettings struct{}

func (staticSettings) Get(context.Context) settings.StoreSettingsDTO {
	return settings.StoreSettingsDTO{
		IVAPct:           decimal.NewFromInt(21),
		ServiceChargePct: decimal.NewFromInt(1),
	}
}

func (staticSettings) Update(context.Context, settings.UpdateSettingsInput) (settings.StoreSettingsDTO, error) {
	return settings.StoreSettingsDTO{}, nil
}

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schemas := []string{
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  category_id TEXT,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  image TEXT NOT NULL DEFAULT '',
  unit_price_base TEXT NOT NULL,
  sale_pct TEXT,
  rating TEXT,
  stock INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  last_activity_at DATETIME NOT NULL,
  expired_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  image TEXT NOT NULL DEFAULT '',
  unit_price_base TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  stock INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (cart_id, product_id)
);`,
	}
	for _, schema := range schemas {
		require.NoError(t, db.Exec(schema).Error)
	}
	return db
}

func newCartService(t *testing.T, db *gorm.DB) (Service, *stubWindows) {
	t.Helper()

	windows := &stubWindows{}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(db),
		Tx:       gormTxRunner{db: db},
		Products: catalog.NewRepository(db),
		Windows:  windows,
		Settings: staticSettings{},
	})
	require.NoError(t, err)
	return svc, windows
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price string, stock int) models.Product {
	t.Helper()

	row := models.Product{
		ID:            uuid.New(),
		Name:          name,
		UnitPriceBase: decimal.RequireFromString(price),
		Stock:         stock,
		IsActive:      true,
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func TestAddItemCreatesCartAndLine(t *testing.T) {
	db := setupCartTestDB(t)
	svc, windows := newCartService(t, db)
	userID := uuid.New()
	product := seedProduct(t, db, "Yerba Mate 1kg", "1000", 10)

	dto, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID})
	require.NoError(t, err)
	require.Len(t, dto.Items, 1)

	item := dto.Items[0]
	assert.Equal(t, 1, item.Quantity)
	assert.True(t, item.UnitPriceFinal.Equal(decimal.NewFromInt(1210)), "UnitPriceFinal = %s", item.UnitPriceFinal)
	assert.Equal(t, 1, windows.started)
}

func TestAddItemMergesDuplicateProduct(t *testing.T) {
	db := setupCartTestDB(t)
	svc, _ := newCartService(t, db)
	userID := uuid.New()
	product := seedProduct(t, db, "Alfajor", "500", 10)

	_, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID})
	require.NoError(t, err)
	dto, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID})
	require.NoError(t, err)

	require.Len(t, dto.Items, 1, "double add must produce one line")
	assert.Equal(t, 2, dto.Items[0].Quantity)
}

func TestAddItemClampsToStock(t *testing.T) {
	db := setupCartTestDB(t)
	svc, _ := newCartService(t, db)
	userID := uuid.New()
	product := seedProduct(t, db, "Edicion limitada", "900", 3)

	dto, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID, Quantity: 10})
	require.NoError(t, err)
	require.Len(t, dto.Items, 1)
	assert.Equal(t, 3, dto.Items[0].Quantity)
}

func TestAddItemRejectsOutOfStock(t *testing.T) {
	db := setupCartTestDB(t)
	svc, _ := newCartService(t, db)
	product := seedProduct(t, db, "Agotado", "100", 0)

	_, err := svc.AddItem(context.Background(), uuid.New(), AddItemInput{ProductID: product.ID})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestSetQuantityRejectsBelowOneAndKeepsCart(t *testing.T) {
	db := setupCartTestDB(t)
	svc, _ := newCartService(t, db)
	userID := uuid.New()
	product := seedProduct(t, db, "Cafe", "800", 5)

	_, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	for _, qty := range []int{0, -3} {
		_, err := svc.SetQuantity(context.Background(), userID, product.ID, qty)
		require.Error(t, err)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	}

	dto, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, dto.Items, 1)
	assert.Equal(t, 2, dto.Items[0].Quantity, "rejected update must leave quantity unchanged")
}

func TestSetQuantityClampsToStock(t *testing.T) {
	db := setupCartTestDB(t)
	svc, _ := newCartService(t, db)
	userID := uuid.New()
	product := seedProduct(t, db, "Te", "400", 4)

	_, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID})
	require.NoError(t, err)

	dto, err := svc.SetQuantity(context.Background(), userID, product.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, 4, dto.Items[0].Quantity)
}

func TestSetQuantityUnknownItem(t *testing.T) {
	db := setupCartTestDB(t)
	svc, _ := newCartService(t, db)
	userID := uuid.New()
	product := seedProduct(t, db, "Cafe", "800", 5)

	_, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID})
	require.NoError(t, err)

	_, err = svc.SetQuantity(context.Background(), userID, uuid.New(), 2)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRemoveItemReleasesWindowWhenCartEmpties(t *testing.T) {
	db := setupCartTestDB(t)
	svc, windows := newCartService(t, db)
	userID := uuid.New()
	product := seedProduct(t, db, "Unico", "100", 5)

	_, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID})
	require.NoError(t, err)

	dto, err := svc.RemoveItem(context.Background(), userID, product.ID)
	require.NoError(t, err)
	assert.Empty(t, dto.Items)
	assert.Equal(t, 1, windows.releases)
	assert.True(t, dto.Totals.Total.IsZero())
}

func TestClearIsIdempotent(t *testing.T) {
	db := setupCartTestDB(t)
	svc, _ := newCartService(t, db)
	userID := uuid.New()
	product := seedProduct(t, db, "Mix", "100", 5)

	_, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID})
	require.NoError(t, err)

	require.NoError(t, svc.Clear(context.Background(), userID))
	require.NoError(t, svc.Clear(context.Background(), userID), "clearing an empty cart is a no-op")

	dto, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, dto.Items)
}

func TestGetComputesTotals(t *testing.T) {
	db := setupCartTestDB(t)
	svc, _ := newCartService(t, db)
	userID := uuid.New()
	a := seedProduct(t, db, "Producto A", "1000", 10)
	b := seedProduct(t, db, "Producto B", "250.50", 10)

	_, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: a.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), userID, AddItemInput{ProductID: b.ID, Quantity: 1})
	require.NoError(t, err)

	dto, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)

	// subtotal = 1000*1.21*2 + 250.50*1.21 = 2420 + 303.105 = 2723.105
	wantSubtotal := decimal.RequireFromString("2723.105")
	assert.True(t, dto.Totals.Subtotal.Equal(wantSubtotal), "Subtotal = %s", dto.Totals.Subtotal)
	wantCharge := wantSubtotal.Div(decimal.NewFromInt(100))
	assert.True(t, dto.Totals.ServiceCharge.Equal(wantCharge), "ServiceCharge = %s", dto.Totals.ServiceCharge)
	assert.True(t, dto.Totals.Total.Equal(wantSubtotal.Add(wantCharge)))
}

func TestGetTouchesActivity(t *testing.T) {
	db := setupCartTestDB(t)
	svc, _ := newCartService(t, db)
	userID := uuid.New()
	product := seedProduct(t, db, "Actividad", "100", 5)

	_, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID})
	require.NoError(t, err)

	stale := time.Now().Add(-20 * time.Minute)
	require.NoError(t, db.Model(&models.Cart{}).
		Where("user_id = ? AND status = ?", userID, enums.CartStatusActive).
		Update("last_activity_at", stale).Error)

	dto, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), dto.LastActivityAt, 5*time.Second)
}

func TestAddItemMintsCartIDWithoutDatabaseDefault(t *testing.T) {
	db := setupCartTestDB(t)
	svc, _ := newCartService(t, db)
	userID := uuid.New()
	product := seedProduct(t, db, "Mate listo", "750", 5)

	_, err := svc.AddItem(context.Background(), userID, AddItemInput{ProductID: product.ID})
	require.NoError(t, err)

	// sqlite has no gen_random_uuid(); the hook must have minted the id
	// or the item row below would be orphaned under a zero cart_id.
	var row models.Cart
	require.NoError(t, db.Where("user_id = ?", userID).First(&row).Error)
	require.NotEqual(t, uuid.Nil, row.ID)

	var count int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("cart_id = ?", row.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestLockOrCreateMergesIntoConcurrentlyCreatedCart(t *testing.T) {
	db := setupCartTestDB(t)
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_user_active ON carts (user_id) WHERE status = 'active'`,
	).Error)

	userID := uuid.New()
	rivalID := uuid.New()
	raced := false
	// Slip a rival active cart in between the lookup and the insert.
	err := db.Callback().Create().Before("gorm:create").Register("rival_cart", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "carts" {
			return
		}
		raced = true
		rival := models.Cart{
			ID:             rivalID,
			UserID:         userID,
			Status:         enums.CartStatusActive,
			LastActivityAt: time.Now(),
		}
		if err := tx.Session(&gorm.Session{NewDB: true}).Create(&rival).Error; err != nil {
			t.Errorf("seed rival cart: %v", err)
		}
	})
	require.NoError(t, err)

	record, err := NewRepository(db).LockOrCreateActiveByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, rivalID, record.ID, "loser of the create race must adopt the winner's cart")

	var count int64
	require.NoError(t, db.Model(&models.Cart{}).
		Where("user_id = ? AND status = ?", userID, enums.CartStatusActive).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
