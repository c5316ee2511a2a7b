package search

import (
	"context"
	"fmt"

	"github.com/Koalla18/TakeSmart/internal/domain"
)

// Searcher is the part of the catalog store the search strategies need.
type Searcher interface {
	LexicalSearch(ctx context.Context, text string, limit int) ([]domain.SearchResult, error)
	VectorSearch(ctx context.Context, embedding []float32, limit int) ([]domain.SearchResult, error)
}

// LexicalStrategy ranks with the store's full-text index.
type LexicalStrategy struct {
	Store Searcher
}

func (l LexicalStrategy) Search(ctx context.Context, spec Spec) ([]domain.SearchResult, error) {
	s, ok := spec.(Lexical)
	if !ok {
		return nil, fmt.Errorf("lexical strategy: unexpected spec %T", spec)
	}
	return l.Store.LexicalSearch(ctx, s.Text, s.Limit)
}

// VectorStrategy ranks with the store's embedding index.
type VectorStrategy struct {
	Store Searcher
}

func (v VectorStrategy) Search(ctx context.Context, spec Spec) ([]domain.SearchResult, error) {
	s, ok := spec.(Vector)
	if !ok {
		return nil, fmt.Errorf("vector strategy: unexpected spec %T", spec)
	}
	return v.Store.VectorSearch(ctx, s.Embedding, s.Limit)
}

// NewStoreRouter returns a router with both strategies backed by st.
func NewStoreRouter(st Searcher, cfg Config) *Router {
	r := NewRouter(cfg)
	r.Register(domain.SearchLexical, LexicalStrategy{Store: st})
	r.Register(domain.SearchVector, VectorStrategy{Store: st})
	return r
}
