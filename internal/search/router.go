// Package search routes catalog queries to a lexical (full-text) or vector
// (nearest-neighbour) strategy behind one validated entry point.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Koalla18/TakeSmart/internal/domain"
	"github.com/Koalla18/TakeSmart/internal/metrics"
	"github.com/Koalla18/TakeSmart/internal/observability"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Spec is a search request. It is either Lexical or Vector.
type Spec interface {
	Kind() domain.SearchKind
	limit() int
	withLimit(int) Spec
}

// Lexical ranks active products against free text.
type Lexical struct {
	Text  string
	Limit int
}

func (Lexical) Kind() domain.SearchKind { return domain.SearchLexical }
func (s Lexical) limit() int            { return s.Limit }
func (s Lexical) withLimit(n int) Spec  { s.Limit = n; return s }

// Vector ranks active products by cosine distance between Embedding and
// the product name embedding.
type Vector struct {
	Embedding []float32
	Limit     int
}

func (Vector) Kind() domain.SearchKind { return domain.SearchVector }
func (s Vector) limit() int            { return s.Limit }
func (s Vector) withLimit(n int) Spec  { s.Limit = n; return s }

// Strategy executes one kind of search. The spec it receives has already
// been validated and carries a bounded limit.
type Strategy interface {
	Search(ctx context.Context, spec Spec) ([]domain.SearchResult, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, spec Spec) ([]domain.SearchResult, error)

func (f StrategyFunc) Search(ctx context.Context, spec Spec) ([]domain.SearchResult, error) {
	return f(ctx, spec)
}

// Config bounds the router.
type Config struct {
	EmbeddingDim int
	DefaultLimit int
	MaxLimit     int
}

// Router validates search specs and dispatches them to the registered
// strategy for their kind.
type Router struct {
	cfg        Config
	strategies map[domain.SearchKind]Strategy
}

// NewRouter returns a router without strategies; see Register.
func NewRouter(cfg Config) *Router {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = MaxLimit
	}
	return &Router{cfg: cfg, strategies: make(map[domain.SearchKind]Strategy)}
}

// Register installs the strategy for kind, replacing any previous one.
func (r *Router) Register(kind domain.SearchKind, s Strategy) {
	r.strategies[kind] = s
}

// Normalize validates spec and applies the default limit. Callers that key
// caches on a spec must key on the normalized form.
func (r *Router) Normalize(spec Spec) (Spec, error) {
	switch s := spec.(type) {
	case Lexical:
		if strings.TrimSpace(s.Text) == "" {
			return nil, fmt.Errorf("%w: query text is blank", domain.ErrSearchInputInvalid)
		}
	case Vector:
		if err := domain.ValidateEmbedding(s.Embedding, r.cfg.EmbeddingDim); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrSearchInputInvalid, err)
		}
	case nil:
		return nil, fmt.Errorf("%w: empty search", domain.ErrSearchInputInvalid)
	default:
		return nil, fmt.Errorf("%w: unsupported search %T", domain.ErrSearchInputInvalid, spec)
	}

	limit := spec.limit()
	if limit == 0 {
		limit = r.cfg.DefaultLimit
	}
	if limit < 1 || limit > r.cfg.MaxLimit {
		return nil, fmt.Errorf("%w: limit %d outside 1..%d", domain.ErrSearchInputInvalid, limit, r.cfg.MaxLimit)
	}
	return spec.withLimit(limit), nil
}

// Search validates spec, runs the matching strategy and returns at most
// limit results in deterministic order. Fewer candidates than limit is not
// an error.
func (r *Router) Search(ctx context.Context, spec Spec) ([]domain.SearchResult, error) {
	spec, err := r.Normalize(spec)
	if err != nil {
		return nil, err
	}
	kind := spec.Kind()
	strategy, ok := r.strategies[kind]
	if !ok {
		return nil, fmt.Errorf("search: no strategy registered for %s", kind)
	}

	ctx, span := observability.StartSpan(ctx, "search."+string(kind),
		observability.AttrSearchKind.String(string(kind)),
		observability.AttrSearchLimit.Int(spec.limit()),
	)
	defer span.End()

	start := time.Now()
	results, err := strategy.Search(ctx, spec)
	if err != nil {
		observability.SetSpanError(span, err)
		return nil, err
	}

	domain.SortResults(kind, results)
	if len(results) > spec.limit() {
		results = results[:spec.limit()]
	}
	if results == nil {
		results = []domain.SearchResult{}
	}

	span.SetAttributes(observability.AttrSearchResults.Int(len(results)))
	metrics.RecordSearch(string(kind), time.Since(start), len(results))
	return results, nil
}
