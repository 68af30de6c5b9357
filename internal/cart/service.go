package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seralvarez/casillero-backend/internal/settings"
	"github.com/seralvarez/casillero-backend/pkg/db/models"
	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
	"github.com/seralvarez/casillero-backend/pkg/pricing"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (models.Product, error)
}

// windowKeeper maintains the server-side reservation window that mirrors
// cart activity. Failures here are logged by the reservation layer and must
// not fail the cart mutation.
type windowKeeper interface {
	EnsureStarted(ctx context.Context, userID uuid.UUID) error
	Refresh(ctx context.Context, userID uuid.UUID) error
	Release(ctx context.Context, userID uuid.UUID) error
}

// ServiceParams groups dependencies for the cart service.
type ServiceParams struct {
	Repo     *Repository
	Tx       txRunner
	Products productLoader
	Windows  windowKeeper
	Settings settings.Service
}

// Service exposes the single-active-cart operations.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (CartDTO, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (CartDTO, error)
	SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (CartDTO, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo     *Repository
	tx       txRunner
	products productLoader
	windows  windowKeeper
	settings settings.Service
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart repo is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction runner is required")
	}
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product loader is required")
	}
	if params.Windows == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation windows are required")
	}
	if params.Settings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settings service is required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		products: params.Products,
		windows:  params.Windows,
		settings: params.Settings,
	}, nil
}

// Get returns the cart with computed totals. Reading counts as activity.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (CartDTO, error) {
	if userID == uuid.Nil {
		return CartDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	record, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.emptyCart(ctx), nil
		}
		return CartDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	now := time.Now()
	if err := s.repo.Touch(ctx, record.ID, now); err != nil {
		return CartDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
	}
	record.LastActivityAt = now
	if len(record.Items) > 0 {
		_ = s.windows.Refresh(ctx, userID)
	}

	return s.toDTO(ctx, record), nil
}

// AddItem merges the product into the cart: an existing line gains quantity,
// a new line is appended. The read-modify-write runs inside a single
// row-locked transaction so two concurrent adds sum instead of clobbering.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (CartDTO, error) {
	if userID == uuid.Nil {
		return CartDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.ProductID == uuid.Nil {
		return CartDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	qty := input.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 1 {
		return CartDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := s.products.FindActiveByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CartDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return CartDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.Stock < 1 {
		return CartDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "product is out of stock")
	}

	var record *models.Cart
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.LockOrCreateActiveByUser(ctx, userID)
		if err != nil {
			return err
		}

		target := qty
		for _, item := range cart.Items {
			if item.ProductID == product.ID {
				target = item.Quantity + qty
				break
			}
		}
		if target > product.Stock {
			target = product.Stock
		}

		item := models.CartItem{
			CartID:        cart.ID,
			ProductID:     product.ID,
			Name:          product.Name,
			Image:         product.Image,
			UnitPriceBase: product.UnitPriceBase,
			Quantity:      target,
			Stock:         product.Stock,
		}
		if err := repo.UpsertItem(ctx, &item); err != nil {
			return err
		}
		if err := repo.Touch(ctx, cart.ID, time.Now()); err != nil {
			return err
		}

		record, err = repo.FindActiveByUser(ctx, userID)
		return err
	})
	if err != nil {
		return CartDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
	}

	_ = s.windows.EnsureStarted(ctx, userID)
	return s.toDTO(ctx, record), nil
}

// SetQuantity replaces a line's quantity. Values below 1 are rejected and
// leave the cart untouched; values above stock clamp to stock.
func (s *service) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (CartDTO, error) {
	if userID == uuid.Nil {
		return CartDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == uuid.Nil {
		return CartDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 1 {
		return CartDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var record *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.LockActiveByUser(ctx, userID)
		if err != nil {
			return err
		}

		var existing *models.CartItem
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				existing = &cart.Items[i]
				break
			}
		}
		if existing == nil {
			return gorm.ErrRecordNotFound
		}

		target := quantity
		if target > existing.Stock {
			target = existing.Stock
		}
		existing.Quantity = target
		if err := repo.UpsertItem(ctx, existing); err != nil {
			return err
		}
		if err := repo.Touch(ctx, cart.ID, time.Now()); err != nil {
			return err
		}

		record, err = repo.FindActiveByUser(ctx, userID)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CartDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "cart item not found")
		}
		return CartDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set cart quantity")
	}

	_ = s.windows.Refresh(ctx, userID)
	return s.toDTO(ctx, record), nil
}

// RemoveItem deletes one line. Removing the last line releases the
// reservation window.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (CartDTO, error) {
	if userID == uuid.Nil {
		return CartDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == uuid.Nil {
		return CartDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	var record *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.LockActiveByUser(ctx, userID)
		if err != nil {
			return err
		}

		affected, err := repo.DeleteItem(ctx, cart.ID, productID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := repo.Touch(ctx, cart.ID, time.Now()); err != nil {
			return err
		}

		record, err = repo.FindActiveByUser(ctx, userID)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CartDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "cart item not found")
		}
		return CartDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}

	if len(record.Items) == 0 {
		_ = s.windows.Release(ctx, userID)
	} else {
		_ = s.windows.Refresh(ctx, userID)
	}
	return s.toDTO(ctx, record), nil
}

// Clear drops every line and releases the reservation window. Clearing an
// empty or missing cart is a no-op.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.LockActiveByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := repo.DeleteItems(ctx, cart.ID); err != nil {
			return err
		}
		return repo.Touch(ctx, cart.ID, time.Now())
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}

	_ = s.windows.Release(ctx, userID)
	return nil
}

func (s *service) emptyCart(ctx context.Context) CartDTO {
	cfg := s.settings.Get(ctx)
	zero := pricing.Totals{}
	return CartDTO{
		Items:  []CartItemDTO{},
		Totals: toTotalsDTO(zero, cfg),
	}
}

func (s *service) toDTO(ctx context.Context, record *models.Cart) CartDTO {
	cfg := s.settings.Get(ctx)
	ivaPct := cfg.IVAPct

	lines := make([]pricing.Line, 0, len(record.Items))
	items := make([]CartItemDTO, 0, len(record.Items))
	for _, item := range record.Items {
		final := pricing.FinalPrice(item.UnitPriceBase, &ivaPct)
		lineTotal := pricing.LineTotal(final, item.Quantity)
		items = append(items, CartItemDTO{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Image:          item.Image,
			UnitPriceBase:  item.UnitPriceBase,
			UnitPriceFinal: final,
			Quantity:       item.Quantity,
			Stock:          item.Stock,
			LineTotal:      lineTotal,
			DisplayPrice:   pricing.FormatARS(final),
		})
		lines = append(lines, pricing.Line{
			UnitPriceBase: item.UnitPriceBase,
			IVAPct:        &ivaPct,
			Quantity:      item.Quantity,
		})
	}

	totals := pricing.ComputeTotals(lines, cfg.ServiceChargePct)
	return CartDTO{
		ID:             record.ID,
		Items:          items,
		Totals:         toTotalsDTO(totals, cfg),
		LastActivityAt: record.LastActivityAt,
	}
}

func toTotalsDTO(totals pricing.Totals, cfg settings.StoreSettingsDTO) CartTotalsDTO {
	return CartTotalsDTO{
		Subtotal:             totals.Subtotal,
		ServiceCharge:        totals.ServiceCharge,
		Total:                totals.Total,
		DisplaySubtotal:      pricing.FormatARS(totals.Subtotal),
		DisplayServiceCharge: pricing.FormatARS(totals.ServiceCharge),
		DisplayTotal:         pricing.FormatARS(totals.Total),
		IVAPct:               cfg.IVAPct,
		ServiceChargePct:     cfg.ServiceChargePct,
	}
}
