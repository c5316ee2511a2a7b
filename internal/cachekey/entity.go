package cachekey

import "strings"

// Entity is a mutable catalog entity type.
type Entity string

const (
	EntityProduct  Entity = "product"
	EntityCategory Entity = "category"
	EntityBrand    Entity = "brand"
)

// productDerived are the families whose payloads embed product rows.
var productDerived = []Family{FamilyProducts, FamilyProduct, FamilyLexical, FamilyVector}

// PrefixesFor returns every family that may hold results derived from entity.
// Category and brand writes also purge product families because product
// payloads carry category_id and brand_id, and deleting a parent nulls them.
func PrefixesFor(e Entity) []string {
	var fams []Family
	switch e {
	case EntityProduct:
		fams = productDerived
	case EntityCategory:
		fams = append([]Family{FamilyCategories}, productDerived...)
	case EntityBrand:
		fams = append([]Family{FamilyBrands}, productDerived...)
	default:
		return nil
	}
	out := make([]string, len(fams))
	for i, f := range fams {
		out[i] = string(f)
	}
	return out
}

// ParseEntity maps a CLI/config name to an Entity.
func ParseEntity(s string) (Entity, bool) {
	switch Entity(strings.ToLower(strings.TrimSpace(s))) {
	case EntityProduct, "products":
		return EntityProduct, true
	case EntityCategory, "categories":
		return EntityCategory, true
	case EntityBrand, "brands":
		return EntityBrand, true
	}
	return "", false
}

// Namespaces maps HTTP route namespaces to the entity they mutate. The
// post-mutation sweep relies on this table staying aligned with the routes.
var Namespaces = map[string]Entity{
	"/api/products":   EntityProduct,
	"/api/categories": EntityCategory,
	"/api/brands":     EntityBrand,
}

// QueryPaths are read-only endpoints that accept a request body. Requests
// under them never trigger a sweep.
var QueryPaths = []string{
	"/api/products/search",
}

// PrefixesForPath returns the prefixes to sweep after a mutating request to
// path, and false when the path is outside every catalog namespace or is a
// query endpoint.
func PrefixesForPath(path string) ([]string, bool) {
	for _, q := range QueryPaths {
		if path == q || strings.HasPrefix(path, q+"/") {
			return nil, false
		}
	}
	for ns, e := range Namespaces {
		if path == ns || strings.HasPrefix(path, ns+"/") {
			return PrefixesFor(e), true
		}
	}
	return nil, false
}
