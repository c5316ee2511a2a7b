// Package controlplane serves catalog management: creating, updating and
// deleting products, categories and brands.
package controlplane

import (
	"context"
	"net/http"

	"github.com/Koalla18/TakeSmart/internal/api/httpx"
	"github.com/Koalla18/TakeSmart/internal/domain"
	"github.com/Koalla18/TakeSmart/internal/logging"
)

// Writer is the part of the catalog the management routes mutate.
type Writer interface {
	CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, u *domain.ProductUpdate) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id int64, u *domain.CategoryUpdate) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	CreateBrand(ctx context.Context, b *domain.Brand) (*domain.Brand, error)
	UpdateBrand(ctx context.Context, id int64, u *domain.BrandUpdate) (*domain.Brand, error)
	DeleteBrand(ctx context.Context, id int64) error
}

// Handler handles catalog management requests.
type Handler struct {
	Store Writer
}

// RegisterRoutes registers all management routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Products
	mux.HandleFunc("POST /api/products", h.CreateProduct)
	mux.HandleFunc("PATCH /api/products/{id}", h.UpdateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", h.DeleteProduct)

	// Categories
	mux.HandleFunc("POST /api/categories", h.CreateCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", h.UpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", h.DeleteCategory)

	// Brands
	mux.HandleFunc("POST /api/brands", h.CreateBrand)
	mux.HandleFunc("PATCH /api/brands/{id}", h.UpdateBrand)
	mux.HandleFunc("DELETE /api/brands/{id}", h.DeleteBrand)
}

type createProductRequest struct {
	Name          string                `json:"name"`
	Slug          string                `json:"slug"`
	Description   *string               `json:"description"`
	Price         float64               `json:"price"`
	Currency      string                `json:"currency"`
	Stock         int                   `json:"stock"`
	IsActive      *bool                 `json:"is_active"`
	BrandID       *int64                `json:"brand_id"`
	CategoryID    *int64                `json:"category_id"`
	NameEmbedding []float32             `json:"name_embedding"`
	Images        []domain.ProductImage `json:"images"`
	Specs         []domain.ProductSpec  `json:"specs"`
}

func (req createProductRequest) product() *domain.Product {
	p := &domain.Product{
		Name:          req.Name,
		Slug:          req.Slug,
		Description:   req.Description,
		Price:         req.Price,
		Currency:      req.Currency,
		Stock:         req.Stock,
		IsActive:      true,
		BrandID:       req.BrandID,
		CategoryID:    req.CategoryID,
		NameEmbedding: req.NameEmbedding,
		Images:        req.Images,
		Specs:         req.Specs,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	return p
}

// CreateProduct handles POST /api/products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	p, err := h.Store.CreateProduct(r.Context(), req.product())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("product created", "id", p.ID, "slug", p.Slug)
	httpx.WriteJSON(w, http.StatusCreated, p)
}

// UpdateProduct handles PATCH /api/products/{id}
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var u domain.ProductUpdate
	if err := httpx.DecodeJSON(r, &u); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	p, err := h.Store.UpdateProduct(r.Context(), id, &u)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// DeleteProduct handles DELETE /api/products/{id}
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.Store.DeleteProduct(r.Context(), id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("product deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}
