package store

import (
	"context"
	"errors"

	"github.com/Koalla18/TakeSmart/internal/cacheaside"
	"github.com/Koalla18/TakeSmart/internal/cachekey"
	"github.com/Koalla18/TakeSmart/internal/domain"
	"github.com/Koalla18/TakeSmart/internal/search"
)

// CachedStore wraps a CatalogStore and serves hot reads (product pages,
// product lookups, category and brand lists, search) through the shared
// cache. Writes commit on the underlying store first, then purge every key
// family derived from the written entity before returning, so a read issued
// after a write returns sees the new data.
type CachedStore struct {
	CatalogStore // uncached methods delegate here

	aside  *cacheaside.Aside
	coord  *cacheaside.Coordinator
	router *search.Router
}

// NewCachedStore returns a CatalogStore that caches reads in aside and
// invalidates through coord. Searches run on router, which should be backed
// by underlying rather than by the CachedStore itself.
func NewCachedStore(underlying CatalogStore, aside *cacheaside.Aside, coord *cacheaside.Coordinator, router *search.Router) *CachedStore {
	return &CachedStore{
		CatalogStore: underlying,
		aside:        aside,
		coord:        coord,
		router:       router,
	}
}

// Underlying exposes the wrapped store.
func (c *CachedStore) Underlying() CatalogStore {
	return c.CatalogStore
}

// ─── cached reads ────────────────────────────────────────────────────────────

func (c *CachedStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	key := cachekey.Encode(cachekey.ProductByID{ID: id})
	return cacheaside.GetOrFetch(ctx, c.aside, key, 0, func(ctx context.Context) (*domain.Product, error) {
		return c.CatalogStore.GetProduct(ctx, id)
	})
}

func (c *CachedStore) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	key := cachekey.Encode(cachekey.ProductBySlug{Slug: slug})
	return cacheaside.GetOrFetch(ctx, c.aside, key, 0, func(ctx context.Context) (*domain.Product, error) {
		return c.CatalogStore.GetProductBySlug(ctx, slug)
	})
}

func (c *CachedStore) ListProducts(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	f = f.Normalize()
	key := cachekey.Encode(cachekey.ProductList{
		Offset:     f.Offset,
		Limit:      f.Limit,
		CategoryID: f.CategoryID,
		BrandID:    f.BrandID,
	})
	return cacheaside.GetOrFetch(ctx, c.aside, key, 0, func(ctx context.Context) ([]domain.Product, error) {
		return c.CatalogStore.ListProducts(ctx, f)
	})
}

func (c *CachedStore) ListCategories(ctx context.Context, p Page) ([]domain.Category, error) {
	p = p.Normalize()
	key := cachekey.Encode(cachekey.CategoryList{Offset: p.Offset, Limit: p.Limit})
	return cacheaside.GetOrFetch(ctx, c.aside, key, 0, func(ctx context.Context) ([]domain.Category, error) {
		return c.CatalogStore.ListCategories(ctx, p)
	})
}

func (c *CachedStore) ListBrands(ctx context.Context, p Page) ([]domain.Brand, error) {
	p = p.Normalize()
	key := cachekey.Encode(cachekey.BrandList{Offset: p.Offset, Limit: p.Limit})
	return cacheaside.GetOrFetch(ctx, c.aside, key, 0, func(ctx context.Context) ([]domain.Brand, error) {
		return c.CatalogStore.ListBrands(ctx, p)
	})
}

// Search validates spec, then serves it from the cache or the router.
// Invalid input is rejected before the cache is consulted.
func (c *CachedStore) Search(ctx context.Context, spec search.Spec) ([]domain.SearchResult, error) {
	spec, err := c.router.Normalize(spec)
	if err != nil {
		return nil, err
	}

	var key cachekey.Key
	switch s := spec.(type) {
	case search.Lexical:
		key = cachekey.Encode(cachekey.LexicalSearch{Text: s.Text, Limit: s.Limit})
	case search.Vector:
		key = cachekey.Encode(cachekey.VectorSearch{Embedding: s.Embedding, Limit: s.Limit})
	}
	return cacheaside.GetOrFetch(ctx, c.aside, key, 0, func(ctx context.Context) ([]domain.SearchResult, error) {
		return c.router.Search(ctx, spec)
	})
}

// ─── writes (commit, then invalidate) ────────────────────────────────────────

// mayHaveWritten reports whether a failed write could still have changed the
// catalog. Validation, conflict and not-found errors are raised before
// anything is written; anything else (a dropped connection, a cancelled
// context, a failed commit or read-back) leaves the outcome unknown.
func mayHaveWritten(err error) bool {
	if errors.Is(err, ErrMaybeCommitted) {
		return true
	}
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrSearchInputInvalid),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrNotFound):
		return false
	}
	return true
}

// afterWrite purges the entity's families unless err proves nothing changed.
func (c *CachedStore) afterWrite(ctx context.Context, e cachekey.Entity, err error) {
	if err == nil || mayHaveWritten(err) {
		c.coord.InvalidateEntity(ctx, e)
	}
}

func (c *CachedStore) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	out, err := c.CatalogStore.CreateProduct(ctx, p)
	c.afterWrite(ctx, cachekey.EntityProduct, err)
	return out, err
}

func (c *CachedStore) UpdateProduct(ctx context.Context, id int64, u *domain.ProductUpdate) (*domain.Product, error) {
	out, err := c.CatalogStore.UpdateProduct(ctx, id, u)
	c.afterWrite(ctx, cachekey.EntityProduct, err)
	return out, err
}

func (c *CachedStore) DeleteProduct(ctx context.Context, id int64) error {
	err := c.CatalogStore.DeleteProduct(ctx, id)
	c.afterWrite(ctx, cachekey.EntityProduct, err)
	return err
}

func (c *CachedStore) CreateCategory(ctx context.Context, cat *domain.Category) (*domain.Category, error) {
	out, err := c.CatalogStore.CreateCategory(ctx, cat)
	c.afterWrite(ctx, cachekey.EntityCategory, err)
	return out, err
}

func (c *CachedStore) UpdateCategory(ctx context.Context, id int64, u *domain.CategoryUpdate) (*domain.Category, error) {
	out, err := c.CatalogStore.UpdateCategory(ctx, id, u)
	c.afterWrite(ctx, cachekey.EntityCategory, err)
	return out, err
}

func (c *CachedStore) DeleteCategory(ctx context.Context, id int64) error {
	err := c.CatalogStore.DeleteCategory(ctx, id)
	c.afterWrite(ctx, cachekey.EntityCategory, err)
	return err
}

func (c *CachedStore) CreateBrand(ctx context.Context, b *domain.Brand) (*domain.Brand, error) {
	out, err := c.CatalogStore.CreateBrand(ctx, b)
	c.afterWrite(ctx, cachekey.EntityBrand, err)
	return out, err
}

func (c *CachedStore) UpdateBrand(ctx context.Context, id int64, u *domain.BrandUpdate) (*domain.Brand, error) {
	out, err := c.CatalogStore.UpdateBrand(ctx, id, u)
	c.afterWrite(ctx, cachekey.EntityBrand, err)
	return out, err
}

func (c *CachedStore) DeleteBrand(ctx context.Context, id int64) error {
	err := c.CatalogStore.DeleteBrand(ctx, id)
	c.afterWrite(ctx, cachekey.EntityBrand, err)
	return err
}
