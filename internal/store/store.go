// Package store is the persistence boundary of the catalog: products,
// categories and brands in PostgreSQL, with full-text and pgvector search.
package store

import (
	"context"
	"errors"

	"github.com/Koalla18/TakeSmart/internal/domain"
)

// Default page sizes used when a caller passes limit <= 0.
const (
	DefaultProductLimit = 20
	DefaultListLimit    = 100
)

// ProductFilter selects a page of active products.
type ProductFilter struct {
	Offset     int
	Limit      int
	CategoryID *int64
	BrandID    *int64
}

// Normalize applies the default page size and clamps a negative offset.
func (f ProductFilter) Normalize() ProductFilter {
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultProductLimit
	}
	return f
}

// Page is an offset/limit window over categories or brands.
type Page struct {
	Offset int
	Limit  int
}

// Normalize applies the default page size and clamps a negative offset.
func (p Page) Normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultListLimit
	}
	return p
}

// ErrMaybeCommitted marks a write error raised after the change may already
// be durable: a failed commit, or a failed read-back of a committed row.
var ErrMaybeCommitted = errors.New("write may have committed")

// CatalogStore is the durable catalog. Lookups return domain.ErrNotFound for
// missing rows; writes return domain.ErrConflict on a duplicate slug or name.
type CatalogStore interface {
	Close() error
	Ping(ctx context.Context) error

	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, u *domain.ProductUpdate) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	// Search
	LexicalSearch(ctx context.Context, text string, limit int) ([]domain.SearchResult, error)
	VectorSearch(ctx context.Context, embedding []float32, limit int) ([]domain.SearchResult, error)

	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error)
	ListCategories(ctx context.Context, p Page) ([]domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id int64, u *domain.CategoryUpdate) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	GetBrand(ctx context.Context, id int64) (*domain.Brand, error)
	GetBrandBySlug(ctx context.Context, slug string) (*domain.Brand, error)
	ListBrands(ctx context.Context, p Page) ([]domain.Brand, error)
	CreateBrand(ctx context.Context, b *domain.Brand) (*domain.Brand, error)
	UpdateBrand(ctx context.Context, id int64, u *domain.BrandUpdate) (*domain.Brand, error)
	DeleteBrand(ctx context.Context, id int64) error
}
