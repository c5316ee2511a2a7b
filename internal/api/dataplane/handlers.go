// Package dataplane serves the catalog read path: product pages and
// lookups, category and brand listings, search, health and metrics.
package dataplane

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Koalla18/TakeSmart/internal/api/httpx"
	"github.com/Koalla18/TakeSmart/internal/cache"
	"github.com/Koalla18/TakeSmart/internal/domain"
	"github.com/Koalla18/TakeSmart/internal/logging"
	"github.com/Koalla18/TakeSmart/internal/metrics"
	"github.com/Koalla18/TakeSmart/internal/search"
	"github.com/Koalla18/TakeSmart/internal/store"
)

// Reader is the part of the catalog the read routes need. store.CachedStore
// implements it.
type Reader interface {
	Ping(ctx context.Context) error

	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	ListProducts(ctx context.Context, f store.ProductFilter) ([]domain.Product, error)
	Search(ctx context.Context, spec search.Spec) ([]domain.SearchResult, error)

	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	ListCategories(ctx context.Context, p store.Page) ([]domain.Category, error)
	GetBrand(ctx context.Context, id int64) (*domain.Brand, error)
	ListBrands(ctx context.Context, p store.Page) ([]domain.Brand, error)
}

// Handler handles catalog read requests.
type Handler struct {
	Store Reader
	Cache cache.Cache // optional; reported by readiness
}

// RegisterRoutes registers all read routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Products
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("GET /api/products/slug/{slug}", h.GetProductBySlug)
	mux.HandleFunc("GET /api/products/search", h.SearchLexical)
	mux.HandleFunc("POST /api/products/search/vector", h.SearchVector)

	// Categories and brands
	mux.HandleFunc("GET /api/categories", h.ListCategories)
	mux.HandleFunc("GET /api/categories/{id}", h.GetCategory)
	mux.HandleFunc("GET /api/brands", h.ListBrands)
	mux.HandleFunc("GET /api/brands/{id}", h.GetBrand)

	// Health
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", h.Health)
	mux.HandleFunc("GET /health/ready", h.HealthReady)

	// Observability
	mux.Handle("GET /metrics", metrics.PrometheusHandler())
	mux.Handle("GET /api/cache/stats", metrics.Global().JSONHandler())
}

// ListProducts handles GET /api/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := httpx.Page(r, store.DefaultProductLimit)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	categoryID, err := httpx.QueryID(r, "category_id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	brandID, err := httpx.QueryID(r, "brand_id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	products, err := h.Store.ListProducts(r.Context(), store.ProductFilter{
		Offset:     offset,
		Limit:      limit,
		CategoryID: categoryID,
		BrandID:    brandID,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, products)
}

// GetProduct handles GET /api/products/{id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	p, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// GetProductBySlug handles GET /api/products/slug/{slug}
func (h *Handler) GetProductBySlug(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProductBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// SearchLexical handles GET /api/products/search?q=&limit=
func (h *Handler) SearchLexical(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		httpx.BadRequest(w, r, "query is required")
		return
	}
	limit, err := httpx.QueryInt(r, "limit", 0)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	results, err := h.Store.Search(r.Context(), search.Lexical{Text: q, Limit: limit})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, results)
}

// SearchVector handles POST /api/products/search/vector
func (h *Handler) SearchVector(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Vector []float32 `json:"vector"`
		Limit  int       `json:"limit"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	results, err := h.Store.Search(r.Context(), search.Vector{Embedding: req.Vector, Limit: req.Limit})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, results)
}

// ListCategories handles GET /api/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := httpx.Page(r, store.DefaultListLimit)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	cats, err := h.Store.ListCategories(r.Context(), store.Page{Offset: offset, Limit: limit})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cats)
}

// GetCategory handles GET /api/categories/{id}
func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	c, err := h.Store.GetCategory(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

// ListBrands handles GET /api/brands
func (h *Handler) ListBrands(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := httpx.Page(r, store.DefaultListLimit)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	brands, err := h.Store.ListBrands(r.Context(), store.Page{Offset: offset, Limit: limit})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, brands)
}

// GetBrand handles GET /api/brands/{id}
func (h *Handler) GetBrand(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	b, err := h.Store.GetBrand(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

// Health handles GET /health - liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// HealthReady handles GET /health/ready. The store must answer; a cache
// failure only degrades the report since reads fall through to the store.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := map[string]string{}
	if err := h.Store.Ping(ctx); err != nil {
		logging.FromContext(ctx).Warn("readiness: store ping failed", "error", err)
		components["postgres"] = "unavailable"
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":     "not_ready",
			"components": components,
		})
		return
	}
	components["postgres"] = "ok"

	status := "ready"
	if h.Cache != nil {
		if err := h.Cache.Ping(ctx); err != nil {
			logging.FromContext(ctx).Warn("readiness: cache ping failed", "error", err)
			components["cache"] = "unavailable"
			status = "degraded"
		} else {
			components["cache"] = "ok"
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"components": components,
	})
}
