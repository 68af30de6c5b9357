package pickup

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/seralvarez/casillero-backend/pkg/config"
	"github.com/seralvarez/casillero-backend/pkg/db/models"
	"github.com/seralvarez/casillero-backend/pkg/enums"
	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
	"github.com/seralvarez/casillero-backend/pkg/logger"
	"github.com/seralvarez/casillero-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		panic("emit called without a transaction")
	}
	r.events = append(r.events, event)
	return nil
}

type fixedWindowStub struct {
	counts map[string]int64
	limit  int64
	calls  int
}

func (f *fixedWindowStub) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.calls++
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func setupPickupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'awaiting_pickup',
  iva_pct TEXT NOT NULL,
  service_charge_pct TEXT NOT NULL,
  subtotal TEXT NOT NULL,
  service_charge TEXT NOT NULL,
  total TEXT NOT NULL,
  pickup_token TEXT NOT NULL,
  locker_number INTEGER NOT NULL,
  picked_up_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, token string) models.Order {
	t.Helper()

	row := models.Order{
		ID:               uuid.New(),
		UserID:           userID,
		Status:           enums.OrderStatusAwaitingPickup,
		IVAPct:           decimal.NewFromInt(21),
		ServiceChargePct: decimal.NewFromInt(1),
		Subtotal:         decimal.NewFromInt(1210),
		ServiceCharge:    decimal.NewFromFloat(12.10),
		Total:            decimal.NewFromFloat(1222.10),
		PickupToken:      token,
		LockerNumber:     7,
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func newPickupService(t *testing.T, db *gorm.DB) (Service, *recordingEmitter, *fixedWindowStub) {
	t.Helper()

	emitter := &recordingEmitter{}
	limiter := &fixedWindowStub{}
	svc, err := NewService(ServiceParams{
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Orders:  NewRepository(db),
		Tx:      gormTxRunner{db: db},
		Outbox:  emitter,
		Limiter: limiter,
		Config:  config.PickupRateLimitConfig{Window: 5 * time.Minute, Attempts: 3},
	})
	require.NoError(t, err)
	return svc, emitter, limiter
}

func TestVerifySuccessIsTerminal(t *testing.T) {
	db := setupPickupDB(t)
	svc, emitter, _ := newPickupService(t, db)
	userID := uuid.New()
	order := seedOrder(t, db, userID, "A1B2C3")

	result, err := svc.Verify(context.Background(), userID, order.ID, "a1b2c3")
	require.NoError(t, err)
	assert.Equal(t, order.ID, result.OrderID)
	assert.Equal(t, 7, result.LockerNumber)
	assert.False(t, result.VerifiedAt.IsZero())

	var after models.Order
	require.NoError(t, db.First(&after, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusPickedUp, after.Status)
	require.NotNil(t, after.PickedUpAt)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, enums.EventPickupVerified, emitter.events[0].EventType)
	assert.Equal(t, order.ID, emitter.events[0].AggregateID)

	// second verify with the right code is a state conflict, not a replay
	_, err = svc.Verify(context.Background(), userID, order.ID, "A1B2C3")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	assert.Len(t, emitter.events, 1)
}

func TestVerifyFormatErrorsPrecedeLookup(t *testing.T) {
	db := setupPickupDB(t)
	svc, _, limiter := newPickupService(t, db)

	_, err := svc.Verify(context.Background(), uuid.New(), uuid.New(), "AB!")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.Zero(t, limiter.calls, "malformed codes must not consume attempts")
}

func TestVerifyWrongCodeIsUnauthorized(t *testing.T) {
	db := setupPickupDB(t)
	svc, emitter, _ := newPickupService(t, db)
	userID := uuid.New()
	order := seedOrder(t, db, userID, "A1B2C3")

	_, err := svc.Verify(context.Background(), userID, order.ID, "ZZZZZZ")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
	assert.Empty(t, emitter.events)

	var after models.Order
	require.NoError(t, db.First(&after, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusAwaitingPickup, after.Status)
}

func TestVerifyRateLimitsPerOrder(t *testing.T) {
	db := setupPickupDB(t)
	svc, _, _ := newPickupService(t, db)
	userID := uuid.New()
	order := seedOrder(t, db, userID, "A1B2C3")

	for i := 0; i < 3; i++ {
		_, err := svc.Verify(context.Background(), userID, order.ID, "ZZZZZZ")
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
	}

	_, err := svc.Verify(context.Background(), userID, order.ID, "A1B2C3")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeRateLimit, pkgerrors.As(err).Code(), "even the right code is refused once the window is spent")
}

func TestVerifyHidesForeignOrders(t *testing.T) {
	db := setupPickupDB(t)
	svc, _, _ := newPickupService(t, db)
	order := seedOrder(t, db, uuid.New(), "A1B2C3")

	_, err := svc.Verify(context.Background(), uuid.New(), order.ID, "A1B2C3")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
