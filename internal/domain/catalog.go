package domain

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// DefaultCurrency is applied to products created without an explicit currency.
const DefaultCurrency = "RUB"

// Category groups products; categories may nest through ParentID.
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	ParentID *int64 `json:"parent_id"`
}

// CategoryUpdate carries the optional fields of a PATCH.
type CategoryUpdate struct {
	Name     *string `json:"name"`
	Slug     *string `json:"slug"`
	ParentID *int64  `json:"parent_id"`
}

type Brand struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type BrandUpdate struct {
	Name *string `json:"name"`
	Slug *string `json:"slug"`
}

type ProductImage struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	IsMain    bool   `json:"is_main"`
	SortOrder int    `json:"sort_order"`
}

type ProductSpec struct {
	ID    int64  `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Product is the catalog item as served to callers and stored in the cache.
// The weighted lexical document lives only in the database (generated column).
type Product struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Slug          string         `json:"slug"`
	Description   *string        `json:"description"`
	Price         float64        `json:"price"`
	Currency      string         `json:"currency"`
	Stock         int            `json:"stock"`
	IsActive      bool           `json:"is_active"`
	BrandID       *int64         `json:"brand_id"`
	CategoryID    *int64         `json:"category_id"`
	NameEmbedding []float32      `json:"name_embedding"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Images        []ProductImage `json:"images"`
	Specs         []ProductSpec  `json:"specs"`
}

// ProductUpdate carries the optional fields of a product PATCH. Images and
// Specs replace the existing collections when non-nil.
type ProductUpdate struct {
	Name          *string         `json:"name"`
	Slug          *string         `json:"slug"`
	Description   *string         `json:"description"`
	Price         *float64        `json:"price"`
	Currency      *string         `json:"currency"`
	Stock         *int            `json:"stock"`
	IsActive      *bool           `json:"is_active"`
	BrandID       *int64          `json:"brand_id"`
	CategoryID    *int64          `json:"category_id"`
	NameEmbedding []float32       `json:"name_embedding"`
	Images        *[]ProductImage `json:"images"`
	Specs         *[]ProductSpec  `json:"specs"`
}

// ValidateSlug enforces lowercase, hyphen separated slugs.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: slug is required", ErrInvalidInput)
	}
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("%w: invalid slug %q", ErrInvalidInput, slug)
	}
	return nil
}

// ValidateEmbedding checks that an embedding has the configured dimension and
// only finite components.
func ValidateEmbedding(v []float32, dim int) error {
	if len(v) != dim {
		return fmt.Errorf("embedding has %d dimensions, want %d", len(v), dim)
	}
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("embedding component %d is not finite", i)
		}
	}
	return nil
}

// Validate checks a category before it is written.
func (c *Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return ValidateSlug(c.Slug)
}

func (b *Brand) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return ValidateSlug(b.Slug)
}

// Validate checks a product before it is written and fills defaults.
// dim is the configured embedding dimension.
func (p *Product) Validate(dim int) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := ValidateSlug(p.Slug); err != nil {
		return err
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	if p.NameEmbedding != nil {
		if err := ValidateEmbedding(p.NameEmbedding, dim); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return nil
}

// Validate checks the fields present in a product PATCH.
func (u *ProductUpdate) Validate(dim int) error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}
	if u.Slug != nil {
		if err := ValidateSlug(*u.Slug); err != nil {
			return err
		}
	}
	if u.Price != nil && *u.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if u.Stock != nil && *u.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	}
	if u.NameEmbedding != nil {
		if err := ValidateEmbedding(u.NameEmbedding, dim); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return nil
}
