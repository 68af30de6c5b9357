package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/seralvarez/casillero-backend/internal/catalog"
	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
	"github.com/seralvarez/casillero-backend/pkg/logger"
)

type stubCatalog struct {
	listFn       func(ctx context.Context, params catalog.ListParams) (catalog.ProductPageDTO, error)
	getFn        func(ctx context.Context, id uuid.UUID) (catalog.ProductDTO, error)
	categoriesFn func(ctx context.Context) ([]catalog.CategoryDTO, error)
	createFn     func(ctx context.Context, input catalog.UpsertProductInput) (catalog.ProductDTO, error)
	updateFn     func(ctx context.Context, id uuid.UUID, input catalog.UpsertProductInput) (catalog.ProductDTO, error)
	deleteFn     func(ctx context.Context, id uuid.UUID) error
}

func (s stubCatalog) List(ctx context.Context, params catalog.ListParams) (catalog.ProductPageDTO, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return catalog.ProductPageDTO{}, nil
}

func (s stubCatalog) GetByID(ctx context.Context, id uuid.UUID) (catalog.ProductDTO, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return catalog.ProductDTO{}, nil
}

func (s stubCatalog) ListCategories(ctx context.Context) ([]catalog.CategoryDTO, error) {
	if s.categoriesFn != nil {
		return s.categoriesFn(ctx)
	}
	return nil, nil
}

func (s stubCatalog) Create(ctx context.Context, input catalog.UpsertProductInput) (catalog.ProductDTO, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return catalog.ProductDTO{}, nil
}

func (s stubCatalog) Update(ctx context.Context, id uuid.UUID, input catalog.UpsertProductInput) (catalog.ProductDTO, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, id, input)
	}
	return catalog.ProductDTO{}, nil
}

func (s stubCatalog) Delete(ctx context.Context, id uuid.UUID) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func jsonBody(payload string) io.Reader {
	return strings.NewReader(payload)
}

func TestListProductsPassesQueryParams(t *testing.T) {
	svc := stubCatalog{
		listFn: func(ctx context.Context, params catalog.ListParams) (catalog.ProductPageDTO, error) {
			if params.Query != "yerba" {
				t.Fatalf("unexpected query %q", params.Query)
			}
			if params.CategorySlug != "bebidas" {
				t.Fatalf("unexpected category %q", params.CategorySlug)
			}
			if params.Limit != 5 {
				t.Fatalf("unexpected limit %d", params.Limit)
			}
			return catalog.ProductPageDTO{NextCursor: "abc"}, nil
		},
	}

	handler := ListProducts(svc, testLogger())
	req := httptest.NewRequest(http.MethodGet, "/?q=yerba&category=bebidas&limit=5", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data catalog.ProductPageDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.NextCursor != "abc" {
		t.Fatalf("unexpected cursor %q", envelope.Data.NextCursor)
	}
}

func TestListProductsRejectsBadLimit(t *testing.T) {
	handler := ListProducts(stubCatalog{}, testLogger())
	req := httptest.NewRequest(http.MethodGet, "/?limit=nope", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGetProductNotFound(t *testing.T) {
	svc := stubCatalog{
		getFn: func(ctx context.Context, id uuid.UUID) (catalog.ProductDTO, error) {
			return catalog.ProductDTO{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		},
	}

	router := chi.NewRouter()
	router.Get("/products/{id}", GetProduct(svc, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/products/"+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Message != "product not found" {
		t.Fatalf("unexpected message %q", envelope.Error.Message)
	}
}

func TestGetProductRejectsMalformedID(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/products/{id}", GetProduct(stubCatalog{}, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/products/not-a-uuid", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCreateProductReturnsCreated(t *testing.T) {
	productID := uuid.New()
	svc := stubCatalog{
		createFn: func(ctx context.Context, input catalog.UpsertProductInput) (catalog.ProductDTO, error) {
			if input.Name != "Yerba Mate 1kg" {
				t.Fatalf("unexpected name %q", input.Name)
			}
			return catalog.ProductDTO{ID: productID, Name: input.Name}, nil
		},
	}

	handler := CreateProduct(svc, testLogger())
	body := `{"name":"Yerba Mate 1kg","unit_price_base":"1000","stock":10}`
	req := httptest.NewRequest(http.MethodPost, "/products", jsonBody(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}

	var envelope struct {
		Data catalog.ProductDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != productID {
		t.Fatalf("unexpected product id %s", envelope.Data.ID)
	}
}
