package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seralvarez/casillero-backend/internal/cart"
	"github.com/seralvarez/casillero-backend/internal/catalog"
	"github.com/seralvarez/casillero-backend/internal/pickup"
	"github.com/seralvarez/casillero-backend/internal/settings"
	"github.com/seralvarez/casillero-backend/pkg/db"
	"github.com/seralvarez/casillero-backend/pkg/db/models"
	"github.com/seralvarez/casillero-backend/pkg/enums"
	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
	"github.com/seralvarez/casillero-backend/pkg/outbox"
	"github.com/seralvarez/casillero-backend/pkg/outbox/payloads"
	"github.com/seralvarez/casillero-backend/pkg/pricing"
)

// pickupTokenIndex is the partial unique index that keeps open pickup codes
// distinct. A collision on insert triggers a re-mint.
const pickupTokenIndex = "idx_orders_pickup_token_open"

const maxTokenMintAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type windowReleaser interface {
	Release(ctx context.Context, userID uuid.UUID) error
}

// Service places orders from active carts and serves order lookups.
type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID) (OrderDTO, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (OrderDTO, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error)
}

// ServiceParams wires the checkout service dependencies.
type ServiceParams struct {
	Orders   *Repository
	Carts    *cart.Repository
	Products *catalog.Repository
	Tx       txRunner
	Outbox   outboxEmitter
	Windows  windowReleaser
	Settings settings.Service
}

type service struct {
	orders   *Repository
	carts    *cart.Repository
	products *catalog.Repository
	tx       txRunner
	outbox   outboxEmitter
	windows  windowReleaser
	settings settings.Service
	now      func() time.Time
}

// NewService validates dependencies and returns the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order repository is required")
	}
	if params.Carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart repository is required")
	}
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product repository is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbox service is required")
	}
	if params.Windows == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation windows are required")
	}
	if params.Settings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settings service is required")
	}
	return &service{
		orders:   params.Orders,
		carts:    params.Carts,
		products: params.Products,
		tx:       params.Tx,
		outbox:   params.Outbox,
		windows:  params.Windows,
		settings: params.Settings,
		now:      time.Now,
	}, nil
}

// PlaceOrder converts the user's active cart into an order. Stock is
// re-validated and decremented inside the same transaction that snapshots
// the totals, so two checkouts cannot oversell a product.
func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID) (OrderDTO, error) {
	if userID == uuid.Nil {
		return OrderDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	current := s.settings.Get(ctx)
	placedAt := s.now().UTC()

	var placed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		products := s.products.WithTx(tx)
		orders := s.orders.WithTx(tx)

		row, err := carts.LockActiveByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart for checkout")
		}
		if len(row.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
		}

		items := make([]models.OrderItem, 0, len(row.Items))
		lines := make([]pricing.Line, 0, len(row.Items))
		for _, item := range row.Items {
			affected, err := products.DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserving stock")
			}
			if affected == 0 {
				return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock for "+item.Name)
			}

			unitFinal := pricing.FinalPrice(item.UnitPriceBase, &current.IVAPct)
			items = append(items, models.OrderItem{
				ProductID:      item.ProductID,
				Name:           item.Name,
				Quantity:       item.Quantity,
				UnitPriceBase:  item.UnitPriceBase,
				UnitPriceFinal: unitFinal,
				LineTotal:      pricing.LineTotal(unitFinal, item.Quantity),
			})
			lines = append(lines, pricing.Line{
				UnitPriceBase: item.UnitPriceBase,
				IVAPct:        &current.IVAPct,
				Quantity:      item.Quantity,
			})
		}

		totals := pricing.ComputeTotals(lines, current.ServiceChargePct)

		order, err := s.insertOrder(ctx, orders, userID, current, totals, items)
		if err != nil {
			return err
		}

		if affected, err := carts.UpdateStatus(ctx, row.ID, enums.CartStatusActive, enums.CartStatusConverted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "converting cart")
		} else if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is no longer active")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.OrderPlacedEvent{
				OrderID:      order.ID,
				UserID:       userID,
				LockerNumber: order.LockerNumber,
				Total:        order.Total,
				ItemCount:    len(order.Items),
				PlacedAt:     placedAt,
			},
			Version: 1,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queueing order event")
		}

		placed = order
		return nil
	})
	if err != nil {
		return OrderDTO{}, err
	}

	// best effort, the window has served its purpose
	_ = s.windows.Release(ctx, userID)

	return toOrderDTO(placed, true), nil
}

func (s *service) insertOrder(
	ctx context.Context,
	orders *Repository,
	userID uuid.UUID,
	current settings.StoreSettingsDTO,
	totals pricing.Totals,
	items []models.OrderItem,
) (*models.Order, error) {
	for attempt := 0; attempt < maxTokenMintAttempts; attempt++ {
		token, err := pickup.MintToken()
		if err != nil {
			return nil, err
		}
		locker, err := pickup.AssignLocker()
		if err != nil {
			return nil, err
		}

		order := &models.Order{
			ID:               uuid.New(),
			UserID:           userID,
			Status:           enums.OrderStatusAwaitingPickup,
			IVAPct:           current.IVAPct,
			ServiceChargePct: current.ServiceChargePct,
			Subtotal:         totals.Subtotal,
			ServiceCharge:    totals.ServiceCharge,
			Total:            totals.Total,
			PickupToken:      token,
			LockerNumber:     locker,
			Items:            items,
		}
		err = orders.Create(ctx, order)
		if err == nil {
			return order, nil
		}
		if !db.IsUniqueViolation(err, pickupTokenIndex) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "could not mint a unique pickup code")
}

// GetOrder returns a user's order. Another user's order id yields not found,
// never forbidden, so order ids cannot be probed.
func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (OrderDTO, error) {
	if userID == uuid.Nil || orderID == uuid.Nil {
		return OrderDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "user id and order id are required")
	}
	row, err := s.orders.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return OrderDTO{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return OrderDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return toOrderDTO(row, row.Status == enums.OrderStatusAwaitingPickup), nil
}

// ListOrders returns the user's order history, newest first.
func (s *service) ListOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, err := s.orders.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	dtos := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, toOrderDTO(&rows[i], rows[i].Status == enums.OrderStatusAwaitingPickup))
	}
	return dtos, nil
}

// toOrderDTO maps an order row to its API shape. The pickup token is only
// included while the order still awaits pickup and only for the owner.
func toOrderDTO(row *models.Order, includeToken bool) OrderDTO {
	items := make([]OrderItemDTO, 0, len(row.Items))
	for _, item := range row.Items {
		items = append(items, OrderItemDTO{
			ProductID:        item.ProductID,
			Name:             item.Name,
			Quantity:         item.Quantity,
			UnitPriceBase:    item.UnitPriceBase,
			UnitPriceFinal:   item.UnitPriceFinal,
			LineTotal:        item.LineTotal,
			DisplayLineTotal: pricing.FormatARS(item.LineTotal),
		})
	}

	dto := OrderDTO{
		ID:                   row.ID,
		Status:               row.Status,
		Items:                items,
		IVAPct:               row.IVAPct,
		ServiceChargePct:     row.ServiceChargePct,
		Subtotal:             row.Subtotal,
		ServiceCharge:        row.ServiceCharge,
		Total:                row.Total,
		DisplaySubtotal:      pricing.FormatARS(row.Subtotal),
		DisplayServiceCharge: pricing.FormatARS(row.ServiceCharge),
		DisplayTotal:         pricing.FormatARS(row.Total),
		LockerNumber:         row.LockerNumber,
		PlacedAt:             row.CreatedAt,
		PickedUpAt:           row.PickedUpAt,
	}
	if includeToken {
		dto.PickupToken = row.PickupToken
	}
	return dto
}
