// Package cachekey is the single place where catalog cache keys are built.
// Readers encode a typed Signature into a Key; writers purge the Family
// prefixes returned by PrefixesFor. Both sides share the same constants, so
// the prefixes a mutation purges always cover the keys readers populate.
package cachekey

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key is a canonical cache key. Build it with Encode only.
type Key string

func (k Key) String() string { return string(k) }

// Family is a literal key prefix shared by a group of related queries.
type Family string

const (
	FamilyProducts   Family = "catalog:products:"
	FamilyProduct    Family = "catalog:product:"
	FamilyCategories Family = "catalog:categories:"
	FamilyBrands     Family = "catalog:brands:"
	FamilyLexical    Family = "catalog:search:tsv:"
	FamilyVector     Family = "catalog:search:vec:"
)

// Families lists every family in a stable order.
var Families = []Family{
	FamilyProducts,
	FamilyProduct,
	FamilyCategories,
	FamilyBrands,
	FamilyLexical,
	FamilyVector,
}

// Name returns a short label for the family, used in metrics.
func (f Family) Name() string {
	s := strings.TrimPrefix(string(f), "catalog:")
	return strings.TrimSuffix(strings.ReplaceAll(s, ":", "_"), "_")
}

// absent encodes an unset optional value.
const absent = "-"

// Signature is the typed description of a cached read.
type Signature interface {
	Family() Family
	parts() []string
}

// Encode returns the canonical key for sig. Logically identical signatures
// always encode to the same bytes.
func Encode(sig Signature) Key {
	return Key(string(sig.Family()) + strings.Join(sig.parts(), ":"))
}

// FamilyOf returns the family a key belongs to, or "" for foreign keys.
func FamilyOf(k Key) Family {
	var best Family
	for _, f := range Families {
		if strings.HasPrefix(string(k), string(f)) && len(f) > len(best) {
			best = f
		}
	}
	return best
}

// ProductList is a page of active products with optional filters.
type ProductList struct {
	Offset     int
	Limit      int
	CategoryID *int64
	BrandID    *int64
}

func (ProductList) Family() Family { return FamilyProducts }

func (s ProductList) parts() []string {
	return []string{strconv.Itoa(s.Offset), strconv.Itoa(s.Limit), optID(s.CategoryID), optID(s.BrandID)}
}

type ProductByID struct {
	ID int64
}

func (ProductByID) Family() Family { return FamilyProduct }

func (s ProductByID) parts() []string { return []string{strconv.FormatInt(s.ID, 10)} }

type ProductBySlug struct {
	Slug string
}

func (ProductBySlug) Family() Family { return FamilyProduct }

func (s ProductBySlug) parts() []string { return []string{"slug", url.QueryEscape(s.Slug)} }

type CategoryList struct {
	Offset int
	Limit  int
}

func (CategoryList) Family() Family { return FamilyCategories }

func (s CategoryList) parts() []string {
	return []string{strconv.Itoa(s.Offset), strconv.Itoa(s.Limit)}
}

type BrandList struct {
	Offset int
	Limit  int
}

func (BrandList) Family() Family { return FamilyBrands }

func (s BrandList) parts() []string {
	return []string{strconv.Itoa(s.Offset), strconv.Itoa(s.Limit)}
}

// LexicalSearch is a full-text query. Text is normalized (case folded,
// whitespace collapsed) and escaped so it can never forge another key.
type LexicalSearch struct {
	Text  string
	Limit int
}

func (LexicalSearch) Family() Family { return FamilyLexical }

func (s LexicalSearch) parts() []string {
	return []string{url.QueryEscape(NormalizeText(s.Text)), strconv.Itoa(s.Limit)}
}

// VectorSearch is a nearest-neighbour query. The embedding is folded into its
// dimension, an xxhash64 of its IEEE-754 bits and the bits themselves in
// unpadded base64url, so distinct embeddings never share a key.
type VectorSearch struct {
	Embedding []float32
	Limit     int
}

func (VectorSearch) Family() Family { return FamilyVector }

func (s VectorSearch) parts() []string {
	bits := embeddingBits(s.Embedding)
	return []string{
		strconv.Itoa(len(s.Embedding)),
		strconv.FormatUint(xxhash.Sum64(bits), 16),
		base64.RawURLEncoding.EncodeToString(bits),
		strconv.Itoa(s.Limit),
	}
}

// NormalizeText folds case and collapses runs of whitespace.
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func optID(id *int64) string {
	if id == nil {
		return absent
	}
	return strconv.FormatInt(*id, 10)
}

func embeddingBits(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		if x == 0 {
			x = 0 // fold -0
		}
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}
