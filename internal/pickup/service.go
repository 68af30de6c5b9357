package pickup

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seralvarez/casillero-backend/pkg/config"
	"github.com/seralvarez/casillero-backend/pkg/enums"
	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
	"github.com/seralvarez/casillero-backend/pkg/logger"
	"github.com/seralvarez/casillero-backend/pkg/outbox"
	"github.com/seralvarez/casillero-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type attemptLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// VerifyResult is returned on a successful pickup verification.
type VerifyResult struct {
	OrderID      uuid.UUID `json:"order_id"`
	LockerNumber int       `json:"locker_number"`
	VerifiedAt   time.Time `json:"verified_at"`
}

// Service verifies pickup codes and opens the locker flow.
type Service interface {
	Verify(ctx context.Context, userID, orderID uuid.UUID, code string) (VerifyResult, error)
}

// ServiceParams wires the pickup service dependencies.
type ServiceParams struct {
	Logger  *logger.Logger
	Orders  *Repository
	Tx      txRunner
	Outbox  outboxEmitter
	Limiter attemptLimiter
	Config  config.PickupRateLimitConfig
}

type service struct {
	logg    *logger.Logger
	orders  *Repository
	tx      txRunner
	outbox  outboxEmitter
	limiter attemptLimiter
	window  time.Duration
	limit   int64
	now     func() time.Time
}

// NewService validates dependencies and returns the pickup service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order repository is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbox service is required")
	}
	if params.Limiter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rate limiter is required")
	}
	window := params.Config.Window
	if window <= 0 {
		window = 5 * time.Minute
	}
	limit := int64(params.Config.Attempts)
	if limit <= 0 {
		limit = 5
	}
	return &service{
		logg:    params.Logger,
		orders:  params.Orders,
		tx:      params.Tx,
		outbox:  params.Outbox,
		limiter: params.Limiter,
		window:  window,
		limit:   limit,
		now:     time.Now,
	}, nil
}

// Verify checks a pickup code against the order. Malformed codes are
// rejected before any lookup or attempt counting. A correct code moves the
// order to picked_up exactly once; verifying an already collected order is
// a state conflict.
func (s *service) Verify(ctx context.Context, userID, orderID uuid.UUID, code string) (VerifyResult, error) {
	if userID == uuid.Nil || orderID == uuid.Nil {
		return VerifyResult{}, pkgerrors.New(pkgerrors.CodeValidation, "user id and order id are required")
	}
	if err := ValidateTokenFormat(code); err != nil {
		return VerifyResult{}, err
	}

	allowed, attempts, err := s.limiter.FixedWindowAllow(ctx, "pickup:"+orderID.String(), s.limit, s.window)
	if err != nil {
		return VerifyResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting pickup attempts")
	}
	if !allowed {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_id": orderID.String(),
			"attempts": attempts,
		}), "pickup verification rate limited")
		return VerifyResult{}, pkgerrors.New(pkgerrors.CodeRateLimit, "too many pickup attempts, try again later")
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return VerifyResult{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return VerifyResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order.UserID != userID {
		return VerifyResult{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	if !tokensMatch(code, order.PickupToken) {
		s.logg.Warn(s.logg.WithOrderID(ctx, orderID.String()), "pickup code mismatch")
		return VerifyResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "pickup code does not match")
	}

	verifiedAt := s.now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.orders.WithTx(tx).MarkPickedUp(ctx, orderID, verifiedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking order picked up")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order was already picked up")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPickupVerified,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.PickupVerifiedEvent{
				OrderID:      orderID,
				UserID:       userID,
				LockerNumber: order.LockerNumber,
				VerifiedAt:   verifiedAt,
			},
			Version: 1,
		})
	})
	if err != nil {
		return VerifyResult{}, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "pickup verified")
	return VerifyResult{
		OrderID:      orderID,
		LockerNumber: order.LockerNumber,
		VerifiedAt:   verifiedAt,
	}, nil
}
