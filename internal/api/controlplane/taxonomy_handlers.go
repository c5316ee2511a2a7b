package controlplane

import (
	"net/http"

	"github.com/Koalla18/TakeSmart/internal/api/httpx"
	"github.com/Koalla18/TakeSmart/internal/domain"
)

// CreateCategory handles POST /api/categories
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Slug     string `json:"slug"`
		ParentID *int64 `json:"parent_id"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	c, err := h.Store.CreateCategory(r.Context(), &domain.Category{
		Name:     req.Name,
		Slug:     req.Slug,
		ParentID: req.ParentID,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, c)
}

// UpdateCategory handles PATCH /api/categories/{id}
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var u domain.CategoryUpdate
	if err := httpx.DecodeJSON(r, &u); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	c, err := h.Store.UpdateCategory(r.Context(), id, &u)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

// DeleteCategory handles DELETE /api/categories/{id}
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.Store.DeleteCategory(r.Context(), id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateBrand handles POST /api/brands
func (h *Handler) CreateBrand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	b, err := h.Store.CreateBrand(r.Context(), &domain.Brand{Name: req.Name, Slug: req.Slug})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, b)
}

// UpdateBrand handles PATCH /api/brands/{id}
func (h *Handler) UpdateBrand(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var u domain.BrandUpdate
	if err := httpx.DecodeJSON(r, &u); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	b, err := h.Store.UpdateBrand(r.Context(), id, &u)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

// DeleteBrand handles DELETE /api/brands/{id}
func (h *Handler) DeleteBrand(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.Store.DeleteBrand(r.Context(), id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
