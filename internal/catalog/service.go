package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/seralvarez/casillero-backend/internal/settings"
	"github.com/seralvarez/casillero-backend/pkg/db/models"
	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
	"github.com/seralvarez/casillero-backend/pkg/pricing"
)

// ServiceParams groups dependencies for the catalog service.
type ServiceParams struct {
	Repo     *Repository
	Settings settings.Service
}

// Service exposes catalog reads for the storefront and admin CRUD.
type Service interface {
	List(ctx context.Context, params ListParams) (ProductPageDTO, error)
	GetByID(ctx context.Context, id uuid.UUID) (ProductDTO, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	Create(ctx context.Context, input UpsertProductInput) (ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpsertProductInput) (ProductDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo     *Repository
	settings settings.Service
}

// NewService builds a catalog service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog repo is required")
	}
	if params.Settings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settings service is required")
	}
	return &service{
		repo:     params.Repo,
		settings: params.Settings,
	}, nil
}

// List returns a page of active products with IVA-inclusive display prices.
func (s *service) List(ctx context.Context, params ListParams) (ProductPageDTO, error) {
	rows, nextCursor, err := s.repo.List(ctx, params)
	if err != nil {
		return ProductPageDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	ivaPct := s.settings.Get(ctx).IVAPct
	items := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, toProductDTO(row, ivaPct))
	}
	return ProductPageDTO{
		Items:      items,
		NextCursor: nextCursor,
	}, nil
}

// GetByID returns one product.
func (s *service) GetByID(ctx context.Context, id uuid.UUID) (ProductDTO, error) {
	if id == uuid.Nil {
		return ProductDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProductDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return ProductDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return toProductDTO(row, s.settings.Get(ctx).IVAPct), nil
}

// ListCategories returns the category directory.
func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	items := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, CategoryDTO{
			ID:   row.ID,
			Name: row.Name,
			Slug: row.Slug,
		})
	}
	return items, nil
}

// Create inserts a catalog row from the admin payload.
func (s *service) Create(ctx context.Context, input UpsertProductInput) (ProductDTO, error) {
	if err := validateUpsert(input); err != nil {
		return ProductDTO{}, err
	}

	row := models.Product{
		CategoryID:    input.CategoryID,
		Name:          strings.TrimSpace(input.Name),
		Description:   input.Description,
		Image:         input.Image,
		UnitPriceBase: input.UnitPriceBase,
		SalePct:       input.SalePct,
		Stock:         input.Stock,
		IsActive:      true,
	}
	if input.IsActive != nil {
		row.IsActive = *input.IsActive
	}
	if err := s.repo.Create(ctx, &row); err != nil {
		return ProductDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return toProductDTO(row, s.settings.Get(ctx).IVAPct), nil
}

// Update overwrites the mutable columns of an existing row.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpsertProductInput) (ProductDTO, error) {
	if id == uuid.Nil {
		return ProductDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := validateUpsert(input); err != nil {
		return ProductDTO{}, err
	}

	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProductDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return ProductDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	row.CategoryID = input.CategoryID
	row.Name = strings.TrimSpace(input.Name)
	row.Description = input.Description
	row.Image = input.Image
	row.UnitPriceBase = input.UnitPriceBase
	row.SalePct = input.SalePct
	row.Stock = input.Stock
	if input.IsActive != nil {
		row.IsActive = *input.IsActive
	}
	row.Category = nil

	if err := s.repo.Update(ctx, &row); err != nil {
		return ProductDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return toProductDTO(row, s.settings.Get(ctx).IVAPct), nil
}

// Delete removes a catalog row.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func validateUpsert(input UpsertProductInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.UnitPriceBase.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit_price_base must not be negative")
	}
	if input.Stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
	}
	if input.SalePct != nil && input.SalePct.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale_pct must not be negative")
	}
	return nil
}

func toProductDTO(row models.Product, ivaPct decimal.Decimal) ProductDTO {
	final := pricing.FinalPrice(row.UnitPriceBase, &ivaPct)
	dto := ProductDTO{
		ID:             row.ID,
		CategoryID:     row.CategoryID,
		Name:           row.Name,
		Description:    row.Description,
		Image:          row.Image,
		UnitPriceBase:  row.UnitPriceBase,
		UnitPriceFinal: final,
		DisplayPrice:   pricing.FormatARS(final),
		SalePct:        row.SalePct,
		Rating:         row.Rating,
		Stock:          row.Stock,
		IsActive:       row.IsActive,
		CreatedAt:      row.CreatedAt,
	}
	if row.Category != nil {
		dto.CategoryName = row.Category.Name
	}
	return dto
}
