package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/seralvarez/casillero-backend/internal/cart"
	"github.com/seralvarez/casillero-backend/pkg/config"
	"github.com/seralvarez/casillero-backend/pkg/db/models"
	"github.com/seralvarez/casillero-backend/pkg/enums"
	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
	"github.com/seralvarez/casillero-backend/pkg/logger"
	"github.com/seralvarez/casillero-backend/pkg/metrics"
	"github.com/seralvarez/casillero-backend/pkg/outbox"
	"github.com/seralvarez/casillero-backend/pkg/outbox/payloads"
)

const sweeperJobName = "cart-sweeper"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type windowReleaser interface {
	Release(ctx context.Context, userID uuid.UUID) error
}

// SweeperParams configure the inactivity sweep.
type SweeperParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Carts   *cart.Repository
	Outbox  outboxEmitter
	Windows windowReleaser
	Metrics *metrics.WorkerMetrics
	Config  config.ReservationConfig
}

// Sweeper expires carts whose last activity predates the inactivity window.
// The status transition is guarded, so each cart expires exactly once even
// with overlapping sweeps.
type Sweeper struct {
	logg      *logger.Logger
	db        txRunner
	carts     *cart.Repository
	outbox    outboxEmitter
	windows   windowReleaser
	metrics   *metrics.WorkerMetrics
	timeout   time.Duration
	batchSize int
	now       func() time.Time
}

// NewSweeper constructs the cart inactivity sweeper job.
func NewSweeper(params SweeperParams) (*Sweeper, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction runner is required")
	}
	if params.Carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart repository is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbox service is required")
	}
	if params.Windows == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation windows are required")
	}
	timeout := params.Config.InactivityTimeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	batchSize := params.Config.SweepBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{
		logg:      params.Logger,
		db:        params.DB,
		carts:     params.Carts,
		outbox:    params.Outbox,
		windows:   params.Windows,
		metrics:   params.Metrics,
		timeout:   timeout,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

// Name identifies the job in logs and metrics.
func (s *Sweeper) Name() string {
	return sweeperJobName
}

// Run performs one sweep cycle. Per-cart failures are aggregated so one bad
// row cannot stall the rest of the batch.
func (s *Sweeper) Run(ctx context.Context) error {
	cutoff := s.now().Add(-s.timeout)
	rows, err := s.carts.FindInactiveSince(ctx, cutoff, s.batchSize)
	if err != nil {
		return fmt.Errorf("find inactive carts: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	var errs error
	expired := 0
	for _, row := range rows {
		if err := s.expireCart(ctx, row); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cart %s: %w", row.ID, err))
			continue
		}
		expired++
	}

	if expired > 0 {
		s.metrics.AddProcessed(sweeperJobName, expired)
		s.logg.Info(s.logg.WithField(ctx, "expired", expired), "inactive carts expired")
	}
	return errs
}

func (s *Sweeper) expireCart(ctx context.Context, row models.Cart) error {
	var transitioned bool
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.carts.WithTx(tx)

		affected, err := repo.UpdateStatus(ctx, row.ID, enums.CartStatusActive, enums.CartStatusExpired)
		if err != nil {
			return err
		}
		if affected == 0 {
			// another sweep already expired it
			return nil
		}
		transitioned = true

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartExpired,
			AggregateType: enums.AggregateCart,
			AggregateID:   row.ID,
			Data: payloads.CartExpiredEvent{
				CartID:    row.ID,
				UserID:    row.UserID,
				ItemCount: len(row.Items),
				ExpiredAt: s.now(),
			},
			Version: 1,
		})
	})
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}

	if err := s.windows.Release(ctx, row.UserID); err != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, row.UserID.String()), "failed to drop reservation window")
	}
	return nil
}
